package reservation

import "fmt"

// ReservationStatus represents the current state of a reservation in its lifecycle.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
)

// Party is the relationship of a caller to a reservation.
type Party string

const (
	PartyNone   Party = ""
	PartyRenter Party = "renter"
	PartyHost   Party = "host"
)

type transition struct {
	from ReservationStatus
	to   ReservationStatus
}

// transitionActors lists, for every allowed transition, the parties that may invoke it.
var transitionActors = map[transition][]Party{
	{StatusPending, StatusConfirmed}:   {PartyHost},
	{StatusPending, StatusCancelled}:   {PartyHost, PartyRenter},
	{StatusConfirmed, StatusCancelled}: {PartyHost, PartyRenter},
}

// validTransitions defines the state machine for reservation status transitions.
var validTransitions = map[ReservationStatus][]ReservationStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled},
	StatusCancelled: {},
}

// IsValid returns true if the status is a recognized reservation status.
func (s ReservationStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s ReservationStatus) CanTransitionTo(target ReservationStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// AllowsParty reports whether party may move a reservation from s to target.
// It returns false for transitions outside the state machine.
func (s ReservationStatus) AllowsParty(target ReservationStatus, party Party) bool {
	for _, p := range transitionActors[transition{s, target}] {
		if p == party {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s ReservationStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// BlocksDates reports whether reservations in this status take part in overlap detection.
func (s ReservationStatus) BlocksDates() bool {
	return s != StatusCancelled
}

func (s ReservationStatus) String() string {
	return string(s)
}

// ParseReservationStatus converts a string to a ReservationStatus, returning an error if invalid.
func ParseReservationStatus(s string) (ReservationStatus, error) {
	status := ReservationStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid reservation status: %s", s)
	}
	return status, nil
}

// PaymentStatus is the payment marker, set by the parties and never by this service's logic.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// IsValid returns true if the payment status is recognized.
func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

// ParsePaymentStatus converts a string to a PaymentStatus.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	p := PaymentStatus(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid payment status: %s", s)
	}
	return p, nil
}
