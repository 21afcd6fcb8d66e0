// Package pubsub carries in-process events: accepted deposits, queued user
// notifications and log lines for the serve command.
package pubsub

import (
	"context"
	"time"
)

// EventType names what happened.
type EventType string

const (
	DepositedEvent EventType = "deposited"
	NotifiedEvent  EventType = "notified"
	LoggedEvent    EventType = "logged"
)

// Event is one published payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber hands out event channels.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher accepts events.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
