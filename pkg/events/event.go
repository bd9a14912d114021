package events

import (
	"context"
	"time"

	"sms-transactions/pkg/transaction"

	"github.com/google/uuid"
)

// Kind identifies the mutation an Event describes.
type Kind string

const (
	KindCreated Kind = "transaction.created"
	KindUpdated Kind = "transaction.updated"
	KindDeleted Kind = "transaction.deleted"
)

// Event is a change notification for a single transaction.
type Event struct {
	ID          uuid.UUID               `json:"id"`
	Kind        Kind                    `json:"kind"`
	OccurredAt  time.Time               `json:"occurred_at"`
	Actor       string                  `json:"actor,omitempty"`
	Transaction transaction.Transaction `json:"transaction"`
}

// NewEvent creates an event stamped with a fresh id and the current UTC time.
func NewEvent(kind Kind, actor string, t transaction.Transaction) Event {
	return Event{
		ID:          uuid.New(),
		Kind:        kind,
		OccurredAt:  time.Now().UTC(),
		Actor:       actor,
		Transaction: t,
	}
}

// Publisher delivers events to an external system.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoOpPublisher discards every event.
type NoOpPublisher struct{}

// Publish does nothing.
func (NoOpPublisher) Publish(ctx context.Context, event Event) error { return nil }

// Close does nothing.
func (NoOpPublisher) Close() error { return nil }

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, event Event) error

// Publish calls f(ctx, event).
func (f PublisherFunc) Publish(ctx context.Context, event Event) error { return f(ctx, event) }

// Close does nothing.
func (f PublisherFunc) Close() error { return nil }
