// Package session ties the core together: it owns the per-connection state
// machine, routes join and send events through the store and the fan-out
// bus, and manages this process's topic subscriptions.
package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatcore/auth"
	"chatcore/bus"
	"chatcore/protocol"
	"chatcore/registry"
	"chatcore/store"
)

// ValidationError marks a malformed join or send event. The event is
// dropped; the connection stays open.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid event: " + e.Reason
}

// Storage is what the coordinator needs from the durable store.
type Storage interface {
	AppendMessage(ctx context.Context, room, sender, text string) (store.Message, error)
	RecentMessages(ctx context.Context, room string, n int) ([]store.Message, error)
	AddMembership(ctx context.Context, userID, room string) error
}

type Config struct {
	HistoryWindow  int
	StorageTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 50
	}
	if c.StorageTimeout <= 0 {
		c.StorageTimeout = 3 * time.Second
	}
	return c
}

// Coordinator runs the session state machine for every connection this
// process accepts. One coordinator per process instance; tests run several
// in one process, sharing a bus and a store, to exercise cross-instance
// fan-out.
type Coordinator struct {
	reg     *registry.Registry
	storage Storage
	bus     bus.Bus
	cfg     Config

	// topoMu serializes room-index changes against the matching bus
	// subscribe/unsubscribe, so a room's topic subscription always agrees
	// with whether it has local members.
	topoMu sync.Mutex
}

func NewCoordinator(reg *registry.Registry, storage Storage, b bus.Bus, cfg Config) *Coordinator {
	return &Coordinator{
		reg:     reg,
		storage: storage,
		bus:     b,
		cfg:     cfg.withDefaults(),
	}
}

// Connect registers an already-authenticated connection. The credential was
// verified before this point; a refused credential never reaches here.
func (co *Coordinator) Connect(identity auth.Identity, sink registry.Sink) *registry.Connection {
	return co.reg.Add(uuid.NewString(), identity, sink)
}

// Disconnect removes the connection from every room and drops topic
// subscriptions that lost their last local member. No durable state is
// touched.
func (co *Coordinator) Disconnect(conn *registry.Connection) {
	co.topoMu.Lock()
	vacated := co.reg.Remove(conn.ID())
	for _, room := range vacated {
		if err := co.bus.Unsubscribe(room); err != nil {
			log.Printf("session: unsubscribe %q failed: %v", room, err)
		}
	}
	co.topoMu.Unlock()
}

// Join places the connection in the room for routing, records durable
// membership, and replays the history window to the joining connection
// only. Storage trouble degrades to a join without history; it never aborts
// the join.
func (co *Coordinator) Join(conn *registry.Connection, room string) error {
	if room == "" {
		return &ValidationError{Reason: "room name required"}
	}

	co.topoMu.Lock()
	joined, first := co.reg.JoinRoom(conn.ID(), room)
	if joined && first {
		if err := co.bus.Subscribe(room, co.deliver); err != nil {
			log.Printf("session: subscribe %q failed: %v", room, err)
		}
	}
	co.topoMu.Unlock()
	if !joined {
		// Connection already gone; nothing to route to.
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), co.cfg.StorageTimeout)
	defer cancel()

	if err := co.storage.AddMembership(ctx, conn.Identity().UserID, room); err != nil {
		log.Printf("session: membership write for %q failed: %v", room, err)
	}

	msgs, err := co.storage.RecentMessages(ctx, room, co.cfg.HistoryWindow)
	if err != nil {
		log.Printf("session: history load for %q failed: %v", room, err)
		return nil
	}

	history := protocol.History{Room: room, Messages: make([]protocol.Message, 0, len(msgs))}
	for _, msg := range msgs {
		history.Messages = append(history.Messages, protocol.Message(msg))
	}
	conn.Send(protocol.Envelope{Type: protocol.TypeLoadHistory, Data: history})
	return nil
}

// SendMessage appends the message durably, then publishes it. The sender is
// always resolved from the connection's identity. If the append fails the
// publish never runs, so nothing undurable is ever delivered; if the
// publish fails the message is durable but possibly unseen by other
// instances, which is logged and left to operators.
func (co *Coordinator) SendMessage(conn *registry.Connection, room, text string) error {
	if room == "" || text == "" {
		return &ValidationError{Reason: "room and text required"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), co.cfg.StorageTimeout)
	defer cancel()

	msg, err := co.storage.AppendMessage(ctx, room, conn.Identity().Username, text)
	if err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := co.bus.Publish(ctx, room, data); err != nil {
		log.Printf("session: publish after persist failed: %v", err)
	}
	return nil
}

// deliver is the bus handler: fan a published message out to every local
// connection joined to its room, the sender's included.
func (co *Coordinator) deliver(room string, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("session: dropping undecodable bus payload for %q: %v", room, err)
		return
	}

	env := protocol.Envelope{Type: protocol.TypeReceiveMessage, Data: msg}
	co.reg.ForEachInRoom(room, func(c *registry.Connection) {
		c.Send(env)
	})
}
