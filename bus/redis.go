package bus

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const topicPrefix = "chat.room."

// RedisBus fans out over Redis pub/sub, one channel per room. A single
// receive goroutine dispatches inbound payloads synchronously, preserving
// Redis's per-channel publish order.
type RedisBus struct {
	client *redis.Client
	pubsub *redis.PubSub

	mu       sync.Mutex
	handlers map[string]Handler
	closed   bool
}

func NewRedisBus(addr string) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, &BusError{Op: "connect", Err: err}
	}

	b := &RedisBus{
		client:   client,
		pubsub:   client.Subscribe(ctx),
		handlers: make(map[string]Handler),
	}
	go b.receive()
	return b, nil
}

func (b *RedisBus) receive() {
	for msg := range b.pubsub.Channel() {
		room := strings.TrimPrefix(msg.Channel, topicPrefix)

		b.mu.Lock()
		h := b.handlers[room]
		b.mu.Unlock()

		if h != nil {
			h(room, []byte(msg.Payload))
		}
	}
}

func (b *RedisBus) Publish(ctx context.Context, room string, data []byte) error {
	if err := b.client.Publish(ctx, topicPrefix+room, data).Err(); err != nil {
		return &BusError{Op: "publish", Room: room, Err: err}
	}
	return nil
}

func (b *RedisBus) Subscribe(room string, h Handler) error {
	b.mu.Lock()
	b.handlers[room] = h
	b.mu.Unlock()

	if err := b.pubsub.Subscribe(context.Background(), topicPrefix+room); err != nil {
		b.mu.Lock()
		delete(b.handlers, room)
		b.mu.Unlock()
		return &BusError{Op: "subscribe", Room: room, Err: err}
	}
	return nil
}

func (b *RedisBus) Unsubscribe(room string) error {
	b.mu.Lock()
	delete(b.handlers, room)
	b.mu.Unlock()

	if err := b.pubsub.Unsubscribe(context.Background(), topicPrefix+room); err != nil {
		return &BusError{Op: "unsubscribe", Room: room, Err: err}
	}
	return nil
}

func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if err := b.pubsub.Close(); err != nil {
		log.Println("bus: error closing pubsub:", err)
	}
	return b.client.Close()
}
