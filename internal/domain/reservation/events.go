package reservation

import (
	"time"

	"github.com/google/uuid"
)

// TopicReservationEvents carries every reservation lifecycle event.
const TopicReservationEvents = "reservation.events"

// CloudEvent types emitted by the reservation service.
const (
	EventCreated       = "reservation.created"
	EventStatusChanged = "reservation.status_changed"
	EventUpdated       = "reservation.updated"
	EventDeleted       = "reservation.deleted"
	EventReminder      = "reservation.reminder"
)

// CreatedEvent is emitted once a reservation is committed.
type CreatedEvent struct {
	ReservationID uuid.UUID `json:"reservationId"`
	ListingID     uuid.UUID `json:"listingId"`
	RenterID      uuid.UUID `json:"renterId"`
	HostID        uuid.UUID `json:"hostId"`
	StayStart     time.Time `json:"stayStart"`
	StayEnd       time.Time `json:"stayEnd"`
	TotalPrice    int64     `json:"totalPrice"`
	GuestCount    int       `json:"guestCount"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// StatusChangedEvent is emitted after a committed status transition.
type StatusChangedEvent struct {
	ReservationID uuid.UUID         `json:"reservationId"`
	ListingID     uuid.UUID         `json:"listingId"`
	RenterID      uuid.UUID         `json:"renterId"`
	HostID        uuid.UUID         `json:"hostId"`
	OldStatus     ReservationStatus `json:"oldStatus"`
	NewStatus     ReservationStatus `json:"newStatus"`
	ChangedBy     uuid.UUID         `json:"changedBy"`
	StayStart     time.Time         `json:"stayStart"`
	StayEnd       time.Time         `json:"stayEnd"`
	TotalPrice    int64             `json:"totalPrice"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

// UpdatedEvent is emitted after a committed field update.
type UpdatedEvent struct {
	ReservationID uuid.UUID `json:"reservationId"`
	ListingID     uuid.UUID `json:"listingId"`
	RenterID      uuid.UUID `json:"renterId"`
	HostID        uuid.UUID `json:"hostId"`
	Fields        []string  `json:"fields"`
	UpdatedBy     uuid.UUID `json:"updatedBy"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// DeletedEvent records a hard delete so the freed range stays auditable.
type DeletedEvent struct {
	ReservationID  uuid.UUID         `json:"reservationId"`
	ListingID      uuid.UUID         `json:"listingId"`
	RenterID       uuid.UUID         `json:"renterId"`
	HostID         uuid.UUID         `json:"hostId"`
	PreviousStatus ReservationStatus `json:"previousStatus"`
	StayStart      time.Time         `json:"stayStart"`
	StayEnd        time.Time         `json:"stayEnd"`
	DeletedBy      uuid.UUID         `json:"deletedBy"`
	OccurredAt     time.Time         `json:"occurredAt"`
}

// ReminderEvent announces a confirmed stay starting soon.
type ReminderEvent struct {
	ReservationID uuid.UUID `json:"reservationId"`
	ListingID     uuid.UUID `json:"listingId"`
	RenterID      uuid.UUID `json:"renterId"`
	HostID        uuid.UUID `json:"hostId"`
	StayStart     time.Time `json:"stayStart"`
	StayEnd       time.Time `json:"stayEnd"`
	CheckInTime   string    `json:"checkInTime"`
	OccurredAt    time.Time `json:"occurredAt"`
}
