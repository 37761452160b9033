package application

import (
	"context"
	"math"
	"sort"
	"time"

	listingDomain "github.com/ema-residences/service-reservation/internal/domain/listing"
	reservationDomain "github.com/ema-residences/service-reservation/internal/domain/reservation"
	"github.com/ema-residences/service-reservation/internal/platform/domain"
	"github.com/ema-residences/service-reservation/internal/platform/kafka"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	eventSource          = "service-reservation"
	defaultBookedHorizon = 365 * 24 * time.Hour

	// Post-commit side effects run detached from the caller so a client disconnect cannot
	// strand them, bounded by these timeouts.
	defaultPublishTimeout = 5 * time.Second
	defaultKeyTimeout     = 2 * time.Second
)

// blockingStatuses take part in overlap detection on create.
var blockingStatuses = []reservationDomain.ReservationStatus{
	reservationDomain.StatusPending,
	reservationDomain.StatusConfirmed,
}

// CreateReservationRequest holds the data needed to create a new reservation.
type CreateReservationRequest struct {
	ListingID  string   `json:"listingId" binding:"required,uuid"`
	StayStart  string   `json:"stayStart" binding:"required"`
	StayEnd    string   `json:"stayEnd" binding:"required"`
	GuestCount *int     `json:"guestCount" binding:"omitempty,min=1"`
	Notes      string   `json:"notes" binding:"max=500"`
	TotalPrice *float64 `json:"totalPrice" binding:"omitempty,gt=0"`
}

// ReservationDTO is the response representation of a reservation.
type ReservationDTO struct {
	ID            uuid.UUID  `json:"id"`
	RenterID      uuid.UUID  `json:"renterId"`
	ListingID     uuid.UUID  `json:"listingId"`
	HostID        uuid.UUID  `json:"hostId"`
	StayStart     time.Time  `json:"stayStart"`
	StayEnd       time.Time  `json:"stayEnd"`
	Nights        int64      `json:"nights"`
	NightlyRate   int64      `json:"nightlyRate"`
	TotalPrice    int64      `json:"totalPrice"`
	GuestCount    int        `json:"guestCount"`
	Status        string     `json:"status"`
	Notes         string     `json:"notes"`
	PaymentStatus string     `json:"paymentStatus"`
	CheckInTime   string     `json:"checkInTime"`
	CheckOutTime  string     `json:"checkOutTime"`
	ConfirmedAt   *time.Time `json:"confirmedAt,omitempty"`
	CancelledAt   *time.Time `json:"cancelledAt,omitempty"`
	Version       int64      `json:"version"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// BookedRangeDTO is one unavailable range of a listing.
type BookedRangeDTO struct {
	StayStart time.Time `json:"stayStart"`
	StayEnd   time.Time `json:"stayEnd"`
	Status    string    `json:"status"`
}

// HostStatsDTO summarizes a host's reservations.
type HostStatsDTO struct {
	Total        int64 `json:"total"`
	Pending      int64 `json:"pending"`
	Confirmed    int64 `json:"confirmed"`
	Cancelled    int64 `json:"cancelled"`
	TotalRevenue int64 `json:"totalRevenue"`
}

// ReservationStatsDTO holds reservation statistics for the admin dashboard.
type ReservationStatsDTO struct {
	TotalReservations int64            `json:"totalReservations"`
	ByStatus          map[string]int64 `json:"byStatus"`
}

// ReservationService is the application service orchestrating reservation use cases.
type ReservationService struct {
	repo        reservationDomain.ReservationRepository
	listings    listingDomain.ListingDirectory
	pricing     reservationDomain.PricingStrategy
	publisher   EventPublisher
	idempotency IdempotencyStore
	topic       string
	logger      *zap.Logger

	publishTimeout time.Duration
	keyTimeout     time.Duration
}

// NewReservationService creates a new ReservationService.
func NewReservationService(
	repo reservationDomain.ReservationRepository,
	listings listingDomain.ListingDirectory,
	pricing reservationDomain.PricingStrategy,
	publisher EventPublisher,
	logger *zap.Logger,
) *ReservationService {
	return &ReservationService{
		repo:      repo,
		listings:  listings,
		pricing:   pricing,
		publisher: publisher,
		topic:     reservationDomain.TopicReservationEvents,
		logger:    logger,

		publishTimeout: defaultPublishTimeout,
		keyTimeout:     defaultKeyTimeout,
	}
}

// WithIdempotency enables Idempotency-Key handling on create.
func (s *ReservationService) WithIdempotency(store IdempotencyStore) *ReservationService {
	s.idempotency = store
	return s
}

// WithTopic overrides the topic events are published to.
func (s *ReservationService) WithTopic(topic string) *ReservationService {
	if topic != "" {
		s.topic = topic
	}
	return s
}

// CreateReservation books a stay for renterID. The overlap check and the insert run in one
// transaction holding the listing lock; the created event is published after commit.
func (s *ReservationService) CreateReservation(ctx context.Context, renterID uuid.UUID, req CreateReservationRequest) (*ReservationDTO, error) {
	if renterID == uuid.Nil {
		return nil, domain.NewUnauthenticatedError("caller is required")
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		return nil, domain.NewValidationError("listingId must be a valid id")
	}
	if req.StayStart == "" || req.StayEnd == "" {
		return nil, domain.NewValidationError("stayStart and stayEnd are required")
	}
	guestCount := reservationDomain.DefaultGuestCount
	if req.GuestCount != nil {
		if *req.GuestCount < 1 {
			return nil, domain.NewValidationError("guestCount must be a positive integer")
		}
		guestCount = *req.GuestCount
	}
	if req.TotalPrice != nil && (*req.TotalPrice <= 0 || math.IsNaN(*req.TotalPrice) || math.IsInf(*req.TotalPrice, 0)) {
		return nil, domain.NewValidationError("totalPrice must be a positive number")
	}

	lst, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if lst.IsOwnedBy(renterID) {
		return nil, domain.NewSelfBookingError()
	}

	stay, err := reservationDomain.ParseStayRange(req.StayStart, req.StayEnd)
	if err != nil {
		return nil, err
	}

	total, err := s.pricing.Calculate(stay, lst.NightlyRate())
	if err != nil {
		return nil, err
	}

	rsv, err := reservationDomain.NewReservation(
		renterID,
		reservationDomain.ListingTerms{
			ListingID:   lst.ID(),
			HostID:      lst.OwnerID(),
			NightlyRate: lst.NightlyRate(),
		},
		stay,
		total,
		guestCount,
		req.Notes,
	)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithinListingLock(ctx, listingID, func(tx reservationDomain.ReservationRepository) error {
		conflicts, err := tx.FindOverlapping(ctx, listingID, stay, blockingStatuses, uuid.Nil)
		if err != nil {
			return err
		}
		if c := reservationDomain.EarliestConflict(conflicts); c != nil {
			return c.ConflictError()
		}
		if err := reservationDomain.CheckClientTotal(req.TotalPrice, total); err != nil {
			return err
		}
		return tx.Save(ctx, rsv)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("reservation created",
		zap.String("reservation_id", rsv.ID().String()),
		zap.String("listing_id", listingID.String()),
		zap.String("renter_id", renterID.String()),
		zap.Int64("total_price", rsv.TotalPrice()),
	)

	s.publishEvent(ctx, reservationDomain.EventCreated, rsv.ID().String(), reservationDomain.CreatedEvent{
		ReservationID: rsv.ID(),
		ListingID:     rsv.ListingID(),
		RenterID:      rsv.RenterID(),
		HostID:        rsv.HostID(),
		StayStart:     rsv.Stay().Start,
		StayEnd:       rsv.Stay().End,
		TotalPrice:    rsv.TotalPrice(),
		GuestCount:    rsv.GuestCount(),
		OccurredAt:    time.Now().UTC(),
	})

	result := toReservationDTO(rsv)
	return &result, nil
}

// CreateReservationIdempotent wraps CreateReservation with Idempotency-Key handling. replayed is
// true when the result is the reservation created by an earlier request with the same key.
// Without a key or a store it behaves exactly like CreateReservation.
func (s *ReservationService) CreateReservationIdempotent(ctx context.Context, renterID uuid.UUID, key string, req CreateReservationRequest) (result *ReservationDTO, replayed bool, err error) {
	if key == "" || s.idempotency == nil {
		result, err = s.CreateReservation(ctx, renterID, req)
		return result, false, err
	}

	scope := renterID.String()
	rec, err := s.idempotency.Reserve(ctx, scope, key)
	if err != nil {
		s.logger.Warn("idempotency store unavailable, creating without key",
			zap.String("renter_id", scope),
			zap.Error(err),
		)
		result, err = s.CreateReservation(ctx, renterID, req)
		return result, false, err
	}

	if !rec.Reserved {
		if rec.ReservationID == uuid.Nil {
			return nil, false, domain.NewConflictError("a request with this Idempotency-Key is still in progress")
		}
		rsv, err := s.repo.FindByID(ctx, rec.ReservationID)
		if err != nil {
			return nil, false, err
		}
		dto := toReservationDTO(rsv)
		return &dto, true, nil
	}

	result, err = s.CreateReservation(ctx, renterID, req)

	// The key must settle even when the caller has gone away, or every retry would see it
	// as in flight until the TTL expires.
	keyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.keyTimeout)
	defer cancel()

	if err != nil {
		if relErr := s.idempotency.Release(keyCtx, scope, key); relErr != nil {
			s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(relErr))
		}
		return nil, false, err
	}
	if err := s.idempotency.Complete(keyCtx, scope, key, result.ID); err != nil {
		s.logger.Warn("failed to complete idempotency key", zap.String("key", key), zap.Error(err))
	}
	return result, false, nil
}

// SetStatus moves a reservation to target on behalf of callerID. Confirming re-checks, under
// the listing lock, that no other confirmed reservation overlaps.
func (s *ReservationService) SetStatus(ctx context.Context, reservationID, callerID uuid.UUID, target string) (*ReservationDTO, error) {
	targetStatus, err := reservationDomain.ParseReservationStatus(target)
	if err != nil {
		return nil, domain.NewValidationError("status must be one of pending, confirmed, cancelled")
	}

	rsv, err := s.repo.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	oldStatus := rsv.Status()

	if targetStatus == reservationDomain.StatusConfirmed {
		err = s.repo.WithinListingLock(ctx, rsv.ListingID(), func(tx reservationDomain.ReservationRepository) error {
			locked, err := tx.FindByID(ctx, reservationID)
			if err != nil {
				return err
			}
			oldStatus = locked.Status()
			if err := locked.TransitionTo(targetStatus, callerID); err != nil {
				return err
			}
			confirmed, err := tx.FindOverlapping(ctx, locked.ListingID(), locked.Stay(),
				[]reservationDomain.ReservationStatus{reservationDomain.StatusConfirmed}, locked.ID())
			if err != nil {
				return err
			}
			if c := reservationDomain.EarliestConflict(confirmed); c != nil {
				return c.ConflictError()
			}
			locked.IncrementVersion()
			if err := tx.Update(ctx, locked); err != nil {
				return err
			}
			rsv = locked
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		if err := rsv.TransitionTo(targetStatus, callerID); err != nil {
			return nil, err
		}
		rsv.IncrementVersion()
		if err := s.repo.Update(ctx, rsv); err != nil {
			return nil, err
		}
	}

	s.logger.Info("reservation status changed",
		zap.String("reservation_id", rsv.ID().String()),
		zap.String("old_status", oldStatus.String()),
		zap.String("new_status", rsv.Status().String()),
		zap.String("changed_by", callerID.String()),
	)

	s.publishEvent(ctx, reservationDomain.EventStatusChanged, rsv.ID().String(), reservationDomain.StatusChangedEvent{
		ReservationID: rsv.ID(),
		ListingID:     rsv.ListingID(),
		RenterID:      rsv.RenterID(),
		HostID:        rsv.HostID(),
		OldStatus:     oldStatus,
		NewStatus:     rsv.Status(),
		ChangedBy:     callerID,
		StayStart:     rsv.Stay().Start,
		StayEnd:       rsv.Stay().End,
		TotalPrice:    rsv.TotalPrice(),
		OccurredAt:    time.Now().UTC(),
	})

	result := toReservationDTO(rsv)
	return &result, nil
}

// UpdateReservation applies a field update subject to the field lock. Stay dates, guests and
// totalPrice stay as booked.
func (s *ReservationService) UpdateReservation(ctx context.Context, reservationID, callerID uuid.UUID, patch reservationDomain.Patch) (*ReservationDTO, error) {
	rsv, err := s.repo.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if _, err := rsv.Authorize(callerID); err != nil {
		return nil, err
	}
	if err := rsv.ApplyPatch(patch); err != nil {
		return nil, err
	}
	rsv.IncrementVersion()
	if err := s.repo.Update(ctx, rsv); err != nil {
		return nil, err
	}

	fields := append([]string(nil), patch.Fields...)
	sort.Strings(fields)
	s.publishEvent(ctx, reservationDomain.EventUpdated, rsv.ID().String(), reservationDomain.UpdatedEvent{
		ReservationID: rsv.ID(),
		ListingID:     rsv.ListingID(),
		RenterID:      rsv.RenterID(),
		HostID:        rsv.HostID(),
		Fields:        fields,
		UpdatedBy:     callerID,
		OccurredAt:    time.Now().UTC(),
	})

	result := toReservationDTO(rsv)
	return &result, nil
}

// DeleteReservation hard-deletes a reservation in any status. Only the renter or the host may
// delete; a deleted event records the freed range.
func (s *ReservationService) DeleteReservation(ctx context.Context, reservationID, callerID uuid.UUID) error {
	rsv, err := s.repo.FindByID(ctx, reservationID)
	if err != nil {
		return err
	}
	if _, err := rsv.Authorize(callerID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, reservationID); err != nil {
		return err
	}

	s.logger.Info("reservation deleted",
		zap.String("reservation_id", reservationID.String()),
		zap.String("previous_status", rsv.Status().String()),
		zap.String("deleted_by", callerID.String()),
	)

	s.publishEvent(ctx, reservationDomain.EventDeleted, rsv.ID().String(), reservationDomain.DeletedEvent{
		ReservationID:  rsv.ID(),
		ListingID:      rsv.ListingID(),
		RenterID:       rsv.RenterID(),
		HostID:         rsv.HostID(),
		PreviousStatus: rsv.Status(),
		StayStart:      rsv.Stay().Start,
		StayEnd:        rsv.Stay().End,
		DeletedBy:      callerID,
		OccurredAt:     time.Now().UTC(),
	})
	return nil
}

// GetReservation returns a reservation visible to its renter or host.
func (s *ReservationService) GetReservation(ctx context.Context, reservationID, callerID uuid.UUID) (*ReservationDTO, error) {
	rsv, err := s.repo.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if _, err := rsv.Authorize(callerID); err != nil {
		return nil, err
	}
	result := toReservationDTO(rsv)
	return &result, nil
}

// GetRenterReservations retrieves paginated reservations made by renterID.
func (s *ReservationService) GetRenterReservations(ctx context.Context, renterID uuid.UUID, page, limit int) (*domain.PaginatedResult[ReservationDTO], error) {
	reservations, total, err := s.repo.FindByRenterID(ctx, renterID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toReservationDTOs(reservations), total, page, limit)
	return &result, nil
}

// GetHostReservations retrieves paginated reservations on listings owned by hostID.
func (s *ReservationService) GetHostReservations(ctx context.Context, hostID uuid.UUID, page, limit int) (*domain.PaginatedResult[ReservationDTO], error) {
	reservations, total, err := s.repo.FindByHostID(ctx, hostID, page, limit)
	if err != nil {
		return nil, err
	}
	result := domain.NewPaginatedResult(toReservationDTOs(reservations), total, page, limit)
	return &result, nil
}

// GetHostStats returns reservation counts and confirmed revenue for hostID.
func (s *ReservationService) GetHostStats(ctx context.Context, hostID uuid.UUID) (*HostStatsDTO, error) {
	stats, err := s.repo.HostStats(ctx, hostID)
	if err != nil {
		return nil, err
	}
	return &HostStatsDTO{
		Total:        stats.Total,
		Pending:      stats.Pending,
		Confirmed:    stats.Confirmed,
		Cancelled:    stats.Cancelled,
		TotalRevenue: stats.TotalRevenue,
	}, nil
}

// GetBookedRanges lists the unavailable ranges of a listing within [from, to). Empty bounds
// default to today and one year after from.
func (s *ReservationService) GetBookedRanges(ctx context.Context, listingID uuid.UUID, from, to string) ([]BookedRangeDTO, error) {
	if _, err := s.listings.FindByID(ctx, listingID); err != nil {
		return nil, err
	}

	start := time.Now().UTC().Truncate(24 * time.Hour)
	if from != "" {
		t, err := reservationDomain.ParseStayDate(from)
		if err != nil {
			return nil, err
		}
		start = t
	}
	end := start.Add(defaultBookedHorizon)
	if to != "" {
		t, err := reservationDomain.ParseStayDate(to)
		if err != nil {
			return nil, err
		}
		end = t
	}
	window, err := reservationDomain.NewStayRange(start, end)
	if err != nil {
		return nil, err
	}

	reservations, err := s.repo.FindBookedRanges(ctx, listingID, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	ranges := make([]BookedRangeDTO, len(reservations))
	for i, r := range reservations {
		ranges[i] = BookedRangeDTO{
			StayStart: r.Stay().Start,
			StayEnd:   r.Stay().End,
			Status:    r.Status().String(),
		}
	}
	return ranges, nil
}

// EmitStayReminders publishes a reminder for every confirmed stay starting within window of
// now. Reservation state is never changed.
func (s *ReservationService) EmitStayReminders(ctx context.Context, now time.Time, window time.Duration) (int, error) {
	upcoming, err := s.repo.FindConfirmedStartingBetween(ctx, now.UTC(), now.UTC().Add(window))
	if err != nil {
		return 0, err
	}
	for _, r := range upcoming {
		s.publishEventWithID(ctx, reminderEventID(r), reservationDomain.EventReminder, r.ID().String(), reservationDomain.ReminderEvent{
			ReservationID: r.ID(),
			ListingID:     r.ListingID(),
			RenterID:      r.RenterID(),
			HostID:        r.HostID(),
			StayStart:     r.Stay().Start,
			StayEnd:       r.Stay().End,
			CheckInTime:   r.CheckInTime(),
			OccurredAt:    time.Now().UTC(),
		})
	}
	return len(upcoming), nil
}

// reminderEventID is stable per reservation and stay start, so runs on several replicas (or
// overlapping windows) collapse to one notification at the consumer's dedup.
func reminderEventID(r *reservationDomain.Reservation) string {
	return "reminder:" + r.ID().String() + ":" + r.Stay().Start.UTC().Format("2006-01-02")
}

// --- Admin methods ---

// ListAllReservations returns a paginated list of all reservations (admin).
func (s *ReservationService) ListAllReservations(ctx context.Context, page, limit int) ([]ReservationDTO, int64, error) {
	reservations, total, err := s.repo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	return toReservationDTOs(reservations), total, nil
}

// GetReservationStats returns aggregate reservation statistics (admin).
func (s *ReservationService) GetReservationStats(ctx context.Context) (*ReservationStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	return &ReservationStatsDTO{
		TotalReservations: total,
		ByStatus:          counts,
	}, nil
}

// --- Helpers ---

func toReservationDTO(r *reservationDomain.Reservation) ReservationDTO {
	return ReservationDTO{
		ID:            r.ID(),
		RenterID:      r.RenterID(),
		ListingID:     r.ListingID(),
		HostID:        r.HostID(),
		StayStart:     r.Stay().Start,
		StayEnd:       r.Stay().End,
		Nights:        r.Stay().Nights(),
		NightlyRate:   r.NightlyRate(),
		TotalPrice:    r.TotalPrice(),
		GuestCount:    r.GuestCount(),
		Status:        r.Status().String(),
		Notes:         r.Notes(),
		PaymentStatus: string(r.PaymentStatus()),
		CheckInTime:   r.CheckInTime(),
		CheckOutTime:  r.CheckOutTime(),
		ConfirmedAt:   r.ConfirmedAt(),
		CancelledAt:   r.CancelledAt(),
		Version:       r.Version(),
		CreatedAt:     r.CreatedAt(),
		UpdatedAt:     r.UpdatedAt(),
	}
}

func toReservationDTOs(reservations []*reservationDomain.Reservation) []ReservationDTO {
	dtos := make([]ReservationDTO, len(reservations))
	for i, r := range reservations {
		dtos[i] = toReservationDTO(r)
	}
	return dtos
}

// publishEvent is fire-and-forget: failures are logged and never fail the operation. It runs
// after the commit, detached from the caller's cancellation.
func (s *ReservationService) publishEvent(ctx context.Context, eventType, subject string, data interface{}) {
	s.publishEventWithID(ctx, "", eventType, subject, data)
}

// publishEventWithID overrides the random event id when id is non-empty.
func (s *ReservationService) publishEventWithID(ctx context.Context, id, eventType, subject string, data interface{}) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	cloudEvent, err := kafka.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	cloudEvent.Subject = subject
	if id != "" {
		cloudEvent.ID = id
	}

	if err := s.publisher.PublishEvent(ctx, s.topic, cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", s.topic),
			zap.String("event_type", eventType),
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}
