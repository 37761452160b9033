package application

import (
	"context"

	"github.com/ema-residences/service-reservation/internal/platform/kafka"
	"github.com/google/uuid"
)

// EventPublisher publishes CloudEvents. *kafka.Producer satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// IdempotencyRecord is the outcome of reserving an idempotency key.
type IdempotencyRecord struct {
	// Reserved is true when the caller now owns the key and must Complete or Release it.
	Reserved bool
	// ReservationID is set when an earlier request with the key already completed.
	ReservationID uuid.UUID
}

// IdempotencyStore remembers client idempotency keys for reservation creation.
type IdempotencyStore interface {
	Reserve(ctx context.Context, scope, key string) (IdempotencyRecord, error)
	Complete(ctx context.Context, scope, key string, reservationID uuid.UUID) error
	Release(ctx context.Context, scope, key string) error
}

// EventDeduplicator records processed event ids.
type EventDeduplicator interface {
	// MarkProcessed returns false when id was already marked.
	MarkProcessed(ctx context.Context, consumer, id string) (bool, error)
	Forget(ctx context.Context, consumer, id string) error
}

// Mailer sends one email. Implementations must be safe for concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a rendered email.
type EmailMessage struct {
	ToEmail string
	ToName  string
	Subject string
	Text    string
	HTML    string
}
