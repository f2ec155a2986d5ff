package bus

import (
	"context"
	"errors"
	"sync"
)

// MemoryBroker is an in-process stand-in for the external pub/sub medium.
// Several MemoryBus handles attached to one broker behave like several
// processes sharing one Redis: a publish on any handle reaches every handle
// subscribed to that room, in publish order.
type MemoryBroker struct {
	mu     sync.Mutex
	topics map[string]map[*MemoryBus]Handler
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{topics: make(map[string]map[*MemoryBus]Handler)}
}

// Bus returns a new handle on the broker, one per simulated process.
func (br *MemoryBroker) Bus() *MemoryBus {
	return &MemoryBus{broker: br}
}

func (br *MemoryBroker) publish(room string, data []byte) {
	// The broker lock is held across delivery so concurrent publishes to a
	// room cannot interleave; handlers only enqueue, so this stays short.
	br.mu.Lock()
	defer br.mu.Unlock()
	for _, h := range br.topics[room] {
		h(room, data)
	}
}

// MemoryBus is one process's handle on a MemoryBroker.
type MemoryBus struct {
	broker *MemoryBroker
}

func (b *MemoryBus) Publish(ctx context.Context, room string, data []byte) error {
	select {
	case <-ctx.Done():
		return &BusError{Op: "publish", Room: room, Err: ctx.Err()}
	default:
	}
	b.broker.publish(room, data)
	return nil
}

func (b *MemoryBus) Subscribe(room string, h Handler) error {
	if h == nil {
		return &BusError{Op: "subscribe", Room: room, Err: errors.New("nil handler")}
	}
	br := b.broker
	br.mu.Lock()
	defer br.mu.Unlock()
	subs, ok := br.topics[room]
	if !ok {
		subs = make(map[*MemoryBus]Handler)
		br.topics[room] = subs
	}
	subs[b] = h
	return nil
}

func (b *MemoryBus) Unsubscribe(room string) error {
	br := b.broker
	br.mu.Lock()
	defer br.mu.Unlock()
	subs, ok := br.topics[room]
	if !ok {
		return nil
	}
	delete(subs, b)
	if len(subs) == 0 {
		delete(br.topics, room)
	}
	return nil
}

func (b *MemoryBus) Close() error {
	br := b.broker
	br.mu.Lock()
	defer br.mu.Unlock()
	for room, subs := range br.topics {
		delete(subs, b)
		if len(subs) == 0 {
			delete(br.topics, room)
		}
	}
	return nil
}
