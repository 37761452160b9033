package notification

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NotificationType groups notifications for display.
type NotificationType string

const (
	TypeReservation  NotificationType = "reservation"
	TypeCancellation NotificationType = "cancellation"
	TypePayment      NotificationType = "payment"
	TypeReview       NotificationType = "review"
	TypeReminder     NotificationType = "reminder"
)

// IsValid returns true if the notification type is recognized.
func (t NotificationType) IsValid() bool {
	switch t {
	case TypeReservation, TypeCancellation, TypePayment, TypeReview, TypeReminder:
		return true
	}
	return false
}

// Notification is an in-app notice addressed to one user.
type Notification struct {
	id            uuid.UUID
	recipientID   uuid.UUID
	notifType     NotificationType
	title         string
	message       string
	reservationID *uuid.UUID
	listingID     *uuid.UUID
	actorID       *uuid.UUID
	sourceEventID string
	read          bool
	emailSent     bool
	createdAt     time.Time
	readAt        *time.Time
}

// NewNotification creates an unread notification. sourceEventID ties it to the event that
// produced it so redelivery does not create duplicates.
func NewNotification(
	recipientID uuid.UUID,
	notifType NotificationType,
	title, message string,
	reservationID, listingID, actorID *uuid.UUID,
	sourceEventID string,
) (*Notification, error) {
	if recipientID == uuid.Nil {
		return nil, fmt.Errorf("recipient ID is required")
	}
	if !notifType.IsValid() {
		return nil, fmt.Errorf("invalid notification type: %s", notifType)
	}
	if title == "" || message == "" {
		return nil, fmt.Errorf("title and message are required")
	}

	return &Notification{
		id:            uuid.New(),
		recipientID:   recipientID,
		notifType:     notifType,
		title:         title,
		message:       message,
		reservationID: reservationID,
		listingID:     listingID,
		actorID:       actorID,
		sourceEventID: sourceEventID,
		createdAt:     time.Now().UTC(),
	}, nil
}

// Reconstruct rebuilds a Notification from persistence.
func Reconstruct(
	id, recipientID uuid.UUID,
	notifType NotificationType,
	title, message string,
	reservationID, listingID, actorID *uuid.UUID,
	sourceEventID string,
	read, emailSent bool,
	createdAt time.Time,
	readAt *time.Time,
) *Notification {
	return &Notification{
		id:            id,
		recipientID:   recipientID,
		notifType:     notifType,
		title:         title,
		message:       message,
		reservationID: reservationID,
		listingID:     listingID,
		actorID:       actorID,
		sourceEventID: sourceEventID,
		read:          read,
		emailSent:     emailSent,
		createdAt:     createdAt,
		readAt:        readAt,
	}
}

// Getters.
func (n *Notification) ID() uuid.UUID             { return n.id }
func (n *Notification) RecipientID() uuid.UUID    { return n.recipientID }
func (n *Notification) Type() NotificationType    { return n.notifType }
func (n *Notification) Title() string             { return n.title }
func (n *Notification) Message() string           { return n.message }
func (n *Notification) ReservationID() *uuid.UUID { return n.reservationID }
func (n *Notification) ListingID() *uuid.UUID     { return n.listingID }
func (n *Notification) ActorID() *uuid.UUID       { return n.actorID }
func (n *Notification) SourceEventID() string     { return n.sourceEventID }
func (n *Notification) IsRead() bool              { return n.read }
func (n *Notification) EmailSent() bool           { return n.emailSent }
func (n *Notification) CreatedAt() time.Time      { return n.createdAt }
func (n *Notification) ReadAt() *time.Time        { return n.readAt }

// MarkEmailSent records a successful email delivery.
func (n *Notification) MarkEmailSent() {
	n.emailSent = true
}
