package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestAppendAndRecentMessages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.AppendMessage(ctx, "lobby", "alice", fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	msgs, err := s.RecentMessages(ctx, "lobby", 50)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, msg := range msgs {
		if want := fmt.Sprintf("msg-%d", i); msg.Text != want {
			t.Fatalf("expected oldest-first order, got %q at index %d", msg.Text, i)
		}
		if msg.Sender != "alice" || msg.Room != "lobby" || msg.ID == "" {
			t.Fatalf("stored record incomplete: %+v", msg)
		}
	}
}

func TestRecentMessagesWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		if _, err := s.AppendMessage(ctx, "lobby", "alice", fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	msgs, err := s.RecentMessages(ctx, "lobby", 50)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(msgs) != 50 {
		t.Fatalf("expected window of 50, got %d", len(msgs))
	}
	if msgs[0].Text != "msg-10" || msgs[49].Text != "msg-59" {
		t.Fatalf("expected most recent 50 oldest-first, got %q..%q", msgs[0].Text, msgs[49].Text)
	}
}

func TestRecentMessagesEmptyRoom(t *testing.T) {
	s := openTestStore(t)

	msgs, err := s.RecentMessages(context.Background(), "nowhere", 50)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %d", len(msgs))
	}
}

func TestMessagesIsolatedPerRoom(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.AppendMessage(ctx, "lobby", "alice", "hello lobby")
	s.AppendMessage(ctx, "dev", "bob", "hello dev")

	msgs, err := s.RecentMessages(ctx, "lobby", 50)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "hello lobby" {
		t.Fatalf("expected lobby messages only, got %+v", msgs)
	}
}

func TestTimestampsNonDecreasingPerRoom(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := s.AppendMessage(ctx, "lobby", "alice", "tick"); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	msgs, err := s.RecentMessages(ctx, "lobby", 50)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	var prev time.Time
	for _, msg := range msgs {
		if msg.Timestamp.Before(prev) {
			t.Fatalf("timestamps decreased: %v after %v", msg.Timestamp, prev)
		}
		prev = msg.Timestamp
	}
}

func TestAddMembershipIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.AddMembership(ctx, "u1", "lobby"); err != nil {
			t.Fatalf("add membership failed: %v", err)
		}
	}
	if err := s.AddMembership(ctx, "u1", "dev"); err != nil {
		t.Fatalf("add membership failed: %v", err)
	}

	rooms, err := s.RoomsForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("rooms failed: %v", err)
	}
	if len(rooms) != 2 || rooms[0] != "lobby" || rooms[1] != "dev" {
		t.Fatalf("expected [lobby dev], got %v", rooms)
	}
}
