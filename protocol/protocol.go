// Package protocol defines the wire envelope and event payloads exchanged
// with clients. Payloads arrive untyped inside the envelope and are decoded
// into tagged structs at the boundary.
package protocol

import (
	"encoding/json"
	"time"
)

// Event types carried in Envelope.Type.
const (
	TypeJoinRoom       = "join_room"
	TypeSendMessage    = "send_message"
	TypeLoadHistory    = "load_history"
	TypeReceiveMessage = "receive_message"
	TypeError          = "error"
)

type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type JoinRoom struct {
	Room string `json:"room"`
}

type SendMessage struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

// Message is the durable record shape as delivered to clients. ID and
// Timestamp are server-assigned; a client-supplied sender is never trusted.
type Message struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// History carries the replay window for a join, ordered oldest to newest.
type History struct {
	Room     string    `json:"room"`
	Messages []Message `json:"messages"`
}

type Error struct {
	Content string `json:"error"`
}

// DecodeData re-marshals an envelope's untyped data into a concrete payload.
func DecodeData[T any](raw interface{}) (T, error) {
	var data T
	bytes, err := json.Marshal(raw)
	if err != nil {
		return data, err
	}
	err = json.Unmarshal(bytes, &data)
	return data, err
}
