package notification

import (
	"context"

	"github.com/google/uuid"
)

// NotificationRepository defines persistence operations for notifications.
type NotificationRepository interface {
	// Save persists a notification. Saving a second notification for the same source event and
	// recipient is a no-op that reports created=false.
	Save(ctx context.Context, n *Notification) (created bool, err error)
	FindLatestByRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]*Notification, error)
	CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error)
	// MarkRead marks one notification read; NotFound unless it belongs to recipientID.
	MarkRead(ctx context.Context, id, recipientID uuid.UUID) error
	MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error)
	MarkEmailSent(ctx context.Context, id uuid.UUID) error
}
