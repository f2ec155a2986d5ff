package session

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chatcore/auth"
	"chatcore/protocol"
	"chatcore/registry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleSocket upgrades an authenticated request and runs the connection's
// read loop. Events for one connection are handled serially, in arrival
// order; auth.RequireAuth must have run first.
func (co *Coordinator) HandleSocket(c *gin.Context) {
	identityRaw, exists := c.Get("identity")
	if !exists {
		c.JSON(401, gin.H{"error": "Authentication required"})
		return
	}
	identity := identityRaw.(auth.Identity)

	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Println("WebSocket upgrade failed:", err)
		return
	}
	wsConn.SetReadLimit(256 * 1024)

	client := NewClient(wsConn)
	conn := co.Connect(identity, client)
	go client.WritePump()

	for {
		_, msgBytes, err := wsConn.ReadMessage()
		if err != nil {
			break
		}

		var env protocol.Envelope
		if err := json.Unmarshal(msgBytes, &env); err != nil {
			client.Send(errorEnvelope("Invalid message format"))
			continue
		}

		co.dispatch(conn, client, env)
	}

	co.Disconnect(conn)
	client.Close()
}

func (co *Coordinator) dispatch(conn *registry.Connection, client *Client, env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeJoinRoom:
		data, err := protocol.DecodeData[protocol.JoinRoom](env.Data)
		if err != nil {
			client.Send(errorEnvelope("Invalid join payload"))
			return
		}
		if err := co.Join(conn, data.Room); err != nil {
			client.Send(errorEnvelope(eventErrorText(err)))
		}

	case protocol.TypeSendMessage:
		data, err := protocol.DecodeData[protocol.SendMessage](env.Data)
		if err != nil {
			client.Send(errorEnvelope("Invalid message payload"))
			return
		}
		if err := co.SendMessage(conn, data.Room, data.Text); err != nil {
			client.Send(errorEnvelope(eventErrorText(err)))
		}

	default:
		client.Send(errorEnvelope("Unknown message type: " + env.Type))
	}
}

func errorEnvelope(content string) protocol.Envelope {
	return protocol.Envelope{Type: protocol.TypeError, Data: protocol.Error{Content: content}}
}

// eventErrorText maps an operation failure to what the sender is told.
// Validation problems name themselves; storage trouble is reported without
// internals.
func eventErrorText(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return "Failed to send message"
}
