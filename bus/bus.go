// Package bus is the fan-out medium between instances. A process subscribes
// to exactly the room topics that have local members and publishes every
// send there; the bus, not local delivery, is the single delivery path, so
// semantics are identical whether a room spans one instance or many.
//
// Delivery is at-least-once to current subscribers, ordered per topic in
// publish order. There is no ordering across topics.
package bus

import (
	"context"
	"fmt"
)

// Handler receives one published payload for a subscribed room. Handlers for
// a given room are invoked in publish order; they must not block.
type Handler func(room string, data []byte)

type Bus interface {
	Publish(ctx context.Context, room string, data []byte) error
	Subscribe(room string, h Handler) error
	Unsubscribe(room string) error
	Close() error
}

// BusError wraps a publish or subscription failure. A publish failure after
// a successful append leaves the message durable but possibly undelivered
// to other instances; callers log it and move on.
type BusError struct {
	Op   string
	Room string
	Err  error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("bus: %s %q: %v", e.Op, e.Room, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}
