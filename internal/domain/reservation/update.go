package reservation

import (
	"regexp"
	"sort"
	"time"

	"github.com/ema-residences/service-reservation/internal/platform/domain"
)

// Wire names of reservation fields, used by the field lock.
const (
	FieldID            = "id"
	FieldRenterID      = "renterId"
	FieldListingID     = "listingId"
	FieldHostID        = "hostId"
	FieldStayStart     = "stayStart"
	FieldStayEnd       = "stayEnd"
	FieldNightlyRate   = "nightlyRate"
	FieldTotalPrice    = "totalPrice"
	FieldGuestCount    = "guestCount"
	FieldStatus        = "status"
	FieldNotes         = "notes"
	FieldPaymentStatus = "paymentStatus"
	FieldCheckInTime   = "checkInTime"
	FieldCheckOutTime  = "checkOutTime"
	FieldConfirmedAt   = "confirmedAt"
	FieldCancelledAt   = "cancelledAt"
	FieldVersion       = "version"
	FieldCreatedAt     = "createdAt"
	FieldUpdatedAt     = "updatedAt"
)

var knownFields = map[string]bool{
	FieldID: true, FieldRenterID: true, FieldListingID: true, FieldHostID: true,
	FieldStayStart: true, FieldStayEnd: true, FieldNightlyRate: true, FieldTotalPrice: true,
	FieldGuestCount: true, FieldStatus: true, FieldNotes: true, FieldPaymentStatus: true,
	FieldCheckInTime: true, FieldCheckOutTime: true, FieldConfirmedAt: true,
	FieldCancelledAt: true, FieldVersion: true, FieldCreatedAt: true, FieldUpdatedAt: true,
}

// mutableFields is the field lock: what a field update may touch in each status. Dates, guests,
// price and parties are fixed at booking time in every status; status changes go through
// TransitionTo.
var mutableFields = map[ReservationStatus]map[string]bool{
	StatusPending: {
		FieldNotes: true, FieldPaymentStatus: true, FieldCheckInTime: true, FieldCheckOutTime: true,
	},
	StatusConfirmed: {
		FieldNotes: true, FieldPaymentStatus: true, FieldCheckInTime: true, FieldCheckOutTime: true,
	},
	StatusCancelled: {},
}

var clockTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// IsClockTime reports whether v is a 24h "HH:MM" time.
func IsClockTime(v string) bool {
	return clockTimePattern.MatchString(v)
}

// Patch is a partial update. Fields lists every wire field present in the request, including
// ones the patch has no slot for, so the field lock sees exactly what the caller tried to touch.
type Patch struct {
	Fields        []string
	Notes         *string
	PaymentStatus *string
	CheckInTime   *string
	CheckOutTime  *string
}

func (p Patch) has(field string) bool {
	for _, f := range p.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// CheckPatch validates a patch against the field lock of the current status and the value rules.
// It does not mutate the reservation.
func (r *Reservation) CheckPatch(p Patch) error {
	if len(p.Fields) == 0 {
		return domain.NewValidationError("no fields to update")
	}
	for _, f := range p.Fields {
		if !knownFields[f] {
			return domain.NewValidationError("unknown field: " + f)
		}
	}

	allowed := mutableFields[r.status]
	var locked []string
	for _, f := range p.Fields {
		if !allowed[f] {
			locked = append(locked, f)
		}
	}
	if len(locked) > 0 {
		sort.Strings(locked)
		return domain.NewImmutableFieldError(locked, string(r.status))
	}

	if p.has(FieldNotes) {
		if p.Notes == nil {
			return domain.NewValidationError("notes must be a string")
		}
		if err := validateNotes(*p.Notes); err != nil {
			return err
		}
	}
	if p.has(FieldPaymentStatus) {
		if p.PaymentStatus == nil || !PaymentStatus(*p.PaymentStatus).IsValid() {
			return domain.NewValidationError("paymentStatus must be one of pending, paid, refunded")
		}
	}
	if p.has(FieldCheckInTime) && (p.CheckInTime == nil || !IsClockTime(*p.CheckInTime)) {
		return domain.NewValidationError("checkInTime must be HH:MM")
	}
	if p.has(FieldCheckOutTime) && (p.CheckOutTime == nil || !IsClockTime(*p.CheckOutTime)) {
		return domain.NewValidationError("checkOutTime must be HH:MM")
	}
	return nil
}

// ApplyPatch validates and applies p. The stay and totalPrice are never touched.
func (r *Reservation) ApplyPatch(p Patch) error {
	if err := r.CheckPatch(p); err != nil {
		return err
	}

	if p.Notes != nil {
		r.notes = *p.Notes
	}
	if p.PaymentStatus != nil {
		r.paymentStatus = PaymentStatus(*p.PaymentStatus)
	}
	if p.CheckInTime != nil {
		r.checkInTime = *p.CheckInTime
	}
	if p.CheckOutTime != nil {
		r.checkOutTime = *p.CheckOutTime
	}
	r.updatedAt = time.Now().UTC()
	return nil
}
