// Package eventbus abstracts the async queue between webhook intake and the
// workflow worker.
package eventbus

import (
	"context"

	"github.com/guildflow/guildflow/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	GenerateID() string
	Publish(ctx context.Context, key string, event Event) error
	// Handle registers the handler invoked for events of the given type.
	// Registration must happen before Subscribe.
	Handle(eventType events.EventType, handler EventHandler)
	Subscribe(ctx context.Context) error
	Close() error
}
