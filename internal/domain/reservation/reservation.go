package reservation

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/ema-residences/service-reservation/internal/platform/domain"
	"github.com/google/uuid"
)

const (
	MaxNotesLength      = 500
	DefaultGuestCount   = 1
	DefaultCheckInTime  = "15:00"
	DefaultCheckOutTime = "11:00"
)

// ListingTerms is what a reservation snapshots from its listing at booking time.
type ListingTerms struct {
	ListingID   uuid.UUID
	HostID      uuid.UUID
	NightlyRate int64
}

// Reservation is the aggregate root for the reservation domain.
type Reservation struct {
	id          uuid.UUID
	renterID    uuid.UUID
	listingID   uuid.UUID
	hostID      uuid.UUID
	stay        StayRange
	nightlyRate int64
	totalPrice  int64
	guestCount  int
	status      ReservationStatus

	notes         string
	paymentStatus PaymentStatus
	checkInTime   string
	checkOutTime  string

	confirmedAt *time.Time
	cancelledAt *time.Time

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewReservation creates a pending Reservation. totalPrice must already be computed from the
// listing terms.
func NewReservation(
	renterID uuid.UUID,
	terms ListingTerms,
	stay StayRange,
	totalPrice int64,
	guestCount int,
	notes string,
) (*Reservation, error) {
	if renterID == uuid.Nil {
		return nil, domain.NewValidationError("renter ID is required")
	}
	if terms.ListingID == uuid.Nil {
		return nil, domain.NewValidationError("listing ID is required")
	}
	if terms.HostID == renterID {
		return nil, domain.NewSelfBookingError()
	}
	if !stay.End.After(stay.Start) {
		return nil, domain.NewInvalidDateRangeError("stayEnd must be after stayStart")
	}
	if totalPrice <= 0 {
		return nil, domain.NewValidationError("total price must be positive")
	}
	if guestCount < 1 {
		return nil, domain.NewValidationError("guestCount must be at least 1")
	}
	if err := validateNotes(notes); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Reservation{
		id:            uuid.New(),
		renterID:      renterID,
		listingID:     terms.ListingID,
		hostID:        terms.HostID,
		stay:          stay,
		nightlyRate:   terms.NightlyRate,
		totalPrice:    totalPrice,
		guestCount:    guestCount,
		status:        StatusPending,
		notes:         notes,
		paymentStatus: PaymentPending,
		checkInTime:   DefaultCheckInTime,
		checkOutTime:  DefaultCheckOutTime,
		version:       1,
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

// ReconstructReservation rebuilds a Reservation from persistence data (no validation).
func ReconstructReservation(
	id uuid.UUID,
	renterID uuid.UUID,
	listingID uuid.UUID,
	hostID uuid.UUID,
	stay StayRange,
	nightlyRate int64,
	totalPrice int64,
	guestCount int,
	status ReservationStatus,
	notes string,
	paymentStatus PaymentStatus,
	checkInTime string,
	checkOutTime string,
	confirmedAt *time.Time,
	cancelledAt *time.Time,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Reservation {
	return &Reservation{
		id:            id,
		renterID:      renterID,
		listingID:     listingID,
		hostID:        hostID,
		stay:          stay,
		nightlyRate:   nightlyRate,
		totalPrice:    totalPrice,
		guestCount:    guestCount,
		status:        status,
		notes:         notes,
		paymentStatus: paymentStatus,
		checkInTime:   checkInTime,
		checkOutTime:  checkOutTime,
		confirmedAt:   confirmedAt,
		cancelledAt:   cancelledAt,
		version:       version,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

// --- Getters ---

func (r *Reservation) ID() uuid.UUID                { return r.id }
func (r *Reservation) RenterID() uuid.UUID          { return r.renterID }
func (r *Reservation) ListingID() uuid.UUID         { return r.listingID }
func (r *Reservation) HostID() uuid.UUID            { return r.hostID }
func (r *Reservation) Stay() StayRange              { return r.stay }
func (r *Reservation) NightlyRate() int64           { return r.nightlyRate }
func (r *Reservation) TotalPrice() int64            { return r.totalPrice }
func (r *Reservation) GuestCount() int              { return r.guestCount }
func (r *Reservation) Status() ReservationStatus    { return r.status }
func (r *Reservation) Notes() string                { return r.notes }
func (r *Reservation) PaymentStatus() PaymentStatus { return r.paymentStatus }
func (r *Reservation) CheckInTime() string          { return r.checkInTime }
func (r *Reservation) CheckOutTime() string         { return r.checkOutTime }
func (r *Reservation) ConfirmedAt() *time.Time      { return r.confirmedAt }
func (r *Reservation) CancelledAt() *time.Time      { return r.cancelledAt }
func (r *Reservation) Version() int64               { return r.version }
func (r *Reservation) CreatedAt() time.Time         { return r.createdAt }
func (r *Reservation) UpdatedAt() time.Time         { return r.updatedAt }

// --- Behavior ---

// PartyOf returns how callerID relates to the reservation.
func (r *Reservation) PartyOf(callerID uuid.UUID) Party {
	switch callerID {
	case r.hostID:
		return PartyHost
	case r.renterID:
		return PartyRenter
	default:
		return PartyNone
	}
}

// IsParty reports whether callerID is the renter or the host.
func (r *Reservation) IsParty(callerID uuid.UUID) bool {
	return r.PartyOf(callerID) != PartyNone
}

// Authorize fails with Forbidden unless callerID is a party to the reservation.
func (r *Reservation) Authorize(callerID uuid.UUID) (Party, error) {
	party := r.PartyOf(callerID)
	if party == PartyNone {
		return PartyNone, domain.NewForbiddenError("reservation does not belong to this user")
	}
	return party, nil
}

// TransitionTo moves the reservation to target on behalf of callerID. Checks run in order:
// caller is a party, the pair is in the state machine, the party may invoke the pair.
func (r *Reservation) TransitionTo(target ReservationStatus, callerID uuid.UUID) error {
	party, err := r.Authorize(callerID)
	if err != nil {
		return err
	}
	if !r.status.CanTransitionTo(target) {
		return domain.NewInvalidTransitionError(string(r.status), string(target))
	}
	if !r.status.AllowsParty(target, party) {
		return domain.NewForbiddenError(fmt.Sprintf("the %s cannot move a reservation from %s to %s", party, r.status, target))
	}

	now := time.Now().UTC()
	switch target {
	case StatusConfirmed:
		r.confirmedAt = &now
	case StatusCancelled:
		r.cancelledAt = &now
	}
	r.status = target
	r.updatedAt = now
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (r *Reservation) IncrementVersion() {
	r.version++
	r.updatedAt = time.Now().UTC()
}

// ConflictError builds the DateConflict failure that reports this reservation's range.
func (r *Reservation) ConflictError() *domain.AppError {
	return domain.NewDateConflictError(FormatStayTime(r.stay.Start), FormatStayTime(r.stay.End))
}

// EarliestConflict returns the reservation with the earliest stay start, or nil.
func EarliestConflict(conflicts []*Reservation) *Reservation {
	var earliest *Reservation
	for _, c := range conflicts {
		if earliest == nil || c.stay.Start.Before(earliest.stay.Start) {
			earliest = c
		}
	}
	return earliest
}

func validateNotes(notes string) error {
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return domain.NewValidationError(fmt.Sprintf("notes must be at most %d characters", MaxNotesLength))
	}
	return nil
}
