package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// HostStats aggregates a host's reservations.
type HostStats struct {
	Total        int64
	Pending      int64
	Confirmed    int64
	Cancelled    int64
	TotalRevenue int64
}

// ReservationRepository defines the persistence contract for reservation aggregates.
type ReservationRepository interface {
	// FindByID retrieves a reservation by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)

	// FindOverlapping returns reservations of the listing whose range intersects stay and whose
	// status is one of statuses. exclude, when not uuid.Nil, is left out.
	FindOverlapping(ctx context.Context, listingID uuid.UUID, stay StayRange, statuses []ReservationStatus, exclude uuid.UUID) ([]*Reservation, error)

	// FindByRenterID retrieves a renter's reservations with pagination.
	FindByRenterID(ctx context.Context, renterID uuid.UUID, page, limit int) ([]*Reservation, int64, error)

	// FindByHostID retrieves reservations on a host's listings with pagination.
	FindByHostID(ctx context.Context, hostID uuid.UUID, page, limit int) ([]*Reservation, int64, error)

	// FindBookedRanges returns the date-blocking reservations of a listing within [from, to).
	FindBookedRanges(ctx context.Context, listingID uuid.UUID, from, to time.Time) ([]*Reservation, error)

	// FindConfirmedStartingBetween returns confirmed reservations whose stay starts in [from, to).
	FindConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]*Reservation, error)

	// HostStats aggregates reservation counts and confirmed revenue for a host.
	HostStats(ctx context.Context, hostID uuid.UUID) (HostStats, error)

	// ListAll retrieves all reservations with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Reservation, int64, error)

	// CountByStatus returns reservation counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new reservation.
	Save(ctx context.Context, r *Reservation) error

	// Update persists changes to an existing reservation with optimistic locking.
	Update(ctx context.Context, r *Reservation) error

	// Delete hard-deletes a reservation.
	Delete(ctx context.Context, id uuid.UUID) error

	// WithinListingLock runs fn in one transaction holding the listing's exclusive lock.
	// Every overlap check and the write it guards must go through the repository passed to fn.
	WithinListingLock(ctx context.Context, listingID uuid.UUID, fn func(repo ReservationRepository) error) error
}
