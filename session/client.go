package session

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"chatcore/protocol"
)

// sendQueueSize bounds how far a slow reader can fall behind before events
// are dropped rather than stalling the room.
const sendQueueSize = 64

// Client wraps one websocket connection with a buffered send queue so that
// fan-out never blocks on a slow socket. All writes to the socket happen on
// the WritePump goroutine.
type Client struct {
	conn      *websocket.Conn
	SendQueue chan protocol.Envelope
	Done      chan struct{}
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		conn:      conn,
		SendQueue: make(chan protocol.Envelope, sendQueueSize),
		Done:      make(chan struct{}),
	}
}

// Send enqueues an event for delivery. It never blocks: a closed client or
// a full queue drops the event and reports false.
func (c *Client) Send(env protocol.Envelope) bool {
	select {
	case <-c.Done:
		return false
	default:
	}
	select {
	case c.SendQueue <- env:
		return true
	default:
		log.Printf("session: send queue full, dropping %s event", env.Type)
		return false
	}
}

// WritePump drains the send queue onto the socket until the client closes.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for {
		select {
		case env := <-c.SendQueue:
			if err := c.conn.WriteJSON(env); err != nil {
				log.Println("session: write error:", err)
				return
			}
		case <-c.Done:
			return
		}
	}
}

// Close stops the write pump. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.Done)
	})
}
