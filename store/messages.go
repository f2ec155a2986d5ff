package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Message is one persisted chat message. Immutable once written.
type Message struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// AppendMessage writes a new message to the room's log and returns the
// stored record with its server-assigned id and timestamp. The timestamp is
// clamped to the room's last entry so it never decreases within a room.
func (s *Store) AppendMessage(ctx context.Context, room, sender, text string) (Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, &StorageError{Op: "append message", Err: err}
	}
	defer tx.Rollback()

	ts := time.Now().UTC()
	var last string
	err = tx.QueryRowContext(ctx,
		`SELECT timestamp FROM messages WHERE room = ? ORDER BY id DESC LIMIT 1`,
		room).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return Message{}, &StorageError{Op: "append message", Err: err}
	}
	if err == nil {
		if prev, perr := time.Parse(time.RFC3339Nano, last); perr == nil && prev.After(ts) {
			ts = prev
		}
	}

	msg := Message{
		ID:        uuid.NewString(),
		Room:      room,
		Sender:    sender,
		Text:      text,
		Timestamp: ts,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (uuid, room, sender, text, timestamp) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.Room, msg.Sender, msg.Text, msg.Timestamp.Format(time.RFC3339Nano))
	if err != nil {
		return Message{}, &StorageError{Op: "append message", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return Message{}, &StorageError{Op: "append message", Err: err}
	}
	return msg, nil
}

// RecentMessages returns at most n of the room's newest messages, ordered
// oldest to newest.
func (s *Store) RecentMessages(ctx context.Context, room string, n int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uuid, room, sender, text, timestamp FROM messages
		 WHERE room = ? ORDER BY id DESC LIMIT ?`,
		room, n)
	if err != nil {
		return nil, &StorageError{Op: "load history", Err: err}
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var ts string
		if err := rows.Scan(&msg.ID, &msg.Room, &msg.Sender, &msg.Text, &ts); err != nil {
			return nil, &StorageError{Op: "load history", Err: err}
		}
		msg.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, &StorageError{Op: "load history", Err: err}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "load history", Err: err}
	}

	// Rows came back newest-first; flip to replay order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
