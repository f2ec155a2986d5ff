// Package registry tracks the connections held by this process and which
// rooms each one has joined. State here is process-local and ephemeral;
// nothing survives a disconnect.
package registry

import (
	"sync"

	"chatcore/auth"
	"chatcore/protocol"
)

// Sink is where delivered events go for one connection. Send must not
// block; it reports whether the event was accepted.
type Sink interface {
	Send(env protocol.Envelope) bool
}

// Connection is one live socket's registry entry. Fields are fixed at Add
// time; the joined-room set is guarded by the owning Registry's lock.
type Connection struct {
	id       string
	identity auth.Identity
	sink     Sink
	rooms    map[string]struct{}
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) Identity() auth.Identity {
	return c.identity
}

func (c *Connection) Send(env protocol.Envelope) bool {
	return c.sink.Send(env)
}

// Registry is an injectable per-process connection table. Multiple
// registries can coexist in one process, which is how multi-instance
// topologies are exercised in tests.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*Connection
	rooms map[string]map[string]*Connection
}

func New() *Registry {
	return &Registry{
		conns: make(map[string]*Connection),
		rooms: make(map[string]map[string]*Connection),
	}
}

// Add registers a connection under its authenticated identity.
func (r *Registry) Add(connID string, identity auth.Identity, sink Sink) *Connection {
	conn := &Connection{
		id:       connID,
		identity: identity,
		sink:     sink,
		rooms:    make(map[string]struct{}),
	}
	r.mu.Lock()
	r.conns[connID] = conn
	r.mu.Unlock()
	return conn
}

// JoinRoom adds the connection to the room's local index. It reports whether
// the connection was admitted and whether it is the room's first local
// member, which is the signal to subscribe this process to the room's topic.
func (r *Registry) JoinRoom(connID, room string) (joined, first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return false, false
	}

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]*Connection)
		r.rooms[room] = members
		first = true
	}
	members[connID] = conn
	conn.rooms[room] = struct{}{}
	return true, first
}

// ForEachInRoom calls fn for every connection currently joined to the room.
// The registry lock is held across the iteration, so fn must only enqueue
// and never block; a connection mid-removal is never observed.
func (r *Registry) ForEachInRoom(room string, fn func(*Connection)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range r.rooms[room] {
		fn(conn)
	}
}

// Remove unregisters the connection from every room it joined and returns
// the rooms left with no local members, which this process should
// unsubscribe from. Safe to call for an unknown id.
func (r *Registry) Remove(connID string) (vacated []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return nil
	}
	for room := range conn.rooms {
		members, ok := r.rooms[room]
		if !ok {
			continue
		}
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, room)
			vacated = append(vacated, room)
		}
	}
	delete(r.conns, connID)
	return vacated
}

// LocalMembers returns how many local connections are joined to the room.
func (r *Registry) LocalMembers(room string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[room])
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
