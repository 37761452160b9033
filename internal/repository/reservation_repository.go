package repository

import (
	"context"
	"errors"
	"time"

	reservationDomain "github.com/ema-residences/service-reservation/internal/domain/reservation"
	"github.com/ema-residences/service-reservation/internal/platform/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReservationModel is the GORM model for the reservations table.
type ReservationModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RenterID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	ListingID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	HostID        uuid.UUID  `gorm:"type:uuid;not null;index"`
	StayStart     time.Time  `gorm:"type:timestamptz;not null"`
	StayEnd       time.Time  `gorm:"type:timestamptz;not null"`
	NightlyRate   int64      `gorm:"not null"`
	TotalPrice    int64      `gorm:"not null"`
	GuestCount    int        `gorm:"not null"`
	Status        string     `gorm:"type:varchar(20);not null;index"`
	Notes         string     `gorm:"type:varchar(500)"`
	PaymentStatus string     `gorm:"type:varchar(20);not null"`
	CheckInTime   string     `gorm:"type:varchar(5);not null"`
	CheckOutTime  string     `gorm:"type:varchar(5);not null"`
	ConfirmedAt   *time.Time `gorm:"type:timestamptz"`
	CancelledAt   *time.Time `gorm:"type:timestamptz"`
	Version       int64      `gorm:"not null"`
	CreatedAt     time.Time  `gorm:"type:timestamptz;not null"`
	UpdatedAt     time.Time  `gorm:"type:timestamptz;not null"`
}

// TableName returns the table name for the GORM model.
func (ReservationModel) TableName() string {
	return "reservations"
}

// GormReservationRepository is the GORM-based implementation of ReservationRepository.
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository.
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// FindByID retrieves a reservation by its unique identifier.
func (r *GormReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*reservationDomain.Reservation, error) {
	var model ReservationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Reservation", id.String())
		}
		return nil, translateError("find reservation", err)
	}
	return toDomainReservation(&model)
}

// FindOverlapping returns reservations of listingID in one of statuses whose half-open range
// intersects stay.
func (r *GormReservationRepository) FindOverlapping(
	ctx context.Context,
	listingID uuid.UUID,
	stay reservationDomain.StayRange,
	statuses []reservationDomain.ReservationStatus,
	exclude uuid.UUID,
) ([]*reservationDomain.Reservation, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = s.String()
	}

	q := r.db.WithContext(ctx).
		Where("listing_id = ? AND stay_start < ? AND stay_end > ? AND status IN ?", listingID, stay.End, stay.Start, names)
	if exclude != uuid.Nil {
		q = q.Where("id <> ?", exclude)
	}

	var models []ReservationModel
	if err := q.Order("stay_start ASC").Find(&models).Error; err != nil {
		return nil, translateError("find overlapping reservations", err)
	}
	return toDomainReservations(models)
}

// FindByRenterID retrieves a renter's reservations with pagination.
func (r *GormReservationRepository) FindByRenterID(ctx context.Context, renterID uuid.UUID, page, limit int) ([]*reservationDomain.Reservation, int64, error) {
	return r.findPage(ctx, "find renter reservations", page, limit, "renter_id = ?", renterID)
}

// FindByHostID retrieves reservations on a host's listings with pagination.
func (r *GormReservationRepository) FindByHostID(ctx context.Context, hostID uuid.UUID, page, limit int) ([]*reservationDomain.Reservation, int64, error) {
	return r.findPage(ctx, "find host reservations", page, limit, "host_id = ?", hostID)
}

// FindBookedRanges returns the non-cancelled reservations of a listing intersecting [from, to).
func (r *GormReservationRepository) FindBookedRanges(ctx context.Context, listingID uuid.UUID, from, to time.Time) ([]*reservationDomain.Reservation, error) {
	var models []ReservationModel
	if err := r.db.WithContext(ctx).
		Where("listing_id = ? AND status <> ? AND stay_start < ? AND stay_end > ?",
			listingID, reservationDomain.StatusCancelled.String(), to, from).
		Order("stay_start ASC").
		Find(&models).Error; err != nil {
		return nil, translateError("find booked ranges", err)
	}
	return toDomainReservations(models)
}

// FindConfirmedStartingBetween returns confirmed reservations whose stay starts in [from, to).
func (r *GormReservationRepository) FindConfirmedStartingBetween(ctx context.Context, from, to time.Time) ([]*reservationDomain.Reservation, error) {
	var models []ReservationModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND stay_start >= ? AND stay_start < ?",
			reservationDomain.StatusConfirmed.String(), from, to).
		Order("stay_start ASC").
		Find(&models).Error; err != nil {
		return nil, translateError("find upcoming stays", err)
	}
	return toDomainReservations(models)
}

// HostStats aggregates reservation counts and confirmed revenue for a host.
func (r *GormReservationRepository) HostStats(ctx context.Context, hostID uuid.UUID) (reservationDomain.HostStats, error) {
	type statusRow struct {
		Status  string
		Count   int64
		Revenue int64
	}
	var rows []statusRow
	if err := r.db.WithContext(ctx).Model(&ReservationModel{}).
		Select("status, count(*) AS count, COALESCE(SUM(total_price), 0) AS revenue").
		Where("host_id = ?", hostID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return reservationDomain.HostStats{}, translateError("host stats", err)
	}

	var stats reservationDomain.HostStats
	for _, row := range rows {
		stats.Total += row.Count
		switch reservationDomain.ReservationStatus(row.Status) {
		case reservationDomain.StatusPending:
			stats.Pending = row.Count
		case reservationDomain.StatusConfirmed:
			stats.Confirmed = row.Count
			stats.TotalRevenue = row.Revenue
		case reservationDomain.StatusCancelled:
			stats.Cancelled = row.Count
		}
	}
	return stats, nil
}

// ListAll retrieves all reservations with pagination (admin).
func (r *GormReservationRepository) ListAll(ctx context.Context, page, limit int) ([]*reservationDomain.Reservation, int64, error) {
	return r.findPage(ctx, "list reservations", page, limit, "")
}

// CountByStatus returns reservation counts grouped by status (admin).
func (r *GormReservationRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&ReservationModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, translateError("count by status", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// saveSavepoint guards the INSERT in Save when it runs inside a transaction.
const saveSavepoint = "reservation_save"

// Save persists a new reservation. An exclusion constraint violation surfaces as DateConflict
// carrying the range of the earliest stored reservation it collided with.
func (r *GormReservationRepository) Save(ctx context.Context, rsv *reservationDomain.Reservation) error {
	db := r.db.WithContext(ctx)

	// A failed INSERT aborts the surrounding transaction, so roll back to a savepoint before
	// looking up the colliding row.
	_, inTx := db.Statement.ConnPool.(gorm.TxCommitter)
	if inTx {
		if err := db.SavePoint(saveSavepoint).Error; err != nil {
			return translateError("save reservation", err)
		}
	}

	err := db.Create(toReservationModel(rsv)).Error
	if err == nil {
		return nil
	}
	if !isExclusionViolation(err) {
		return translateError("save reservation", err)
	}
	if inTx {
		if rbErr := db.RollbackTo(saveSavepoint).Error; rbErr != nil {
			return translateError("save reservation", err)
		}
	}
	return r.describeConflict(ctx, rsv, translateError("save reservation", err))
}

// describeConflict swaps a bare DateConflict for one naming the colliding range. The lookup
// is best effort; fallback is returned when it fails or finds nothing.
func (r *GormReservationRepository) describeConflict(ctx context.Context, rsv *reservationDomain.Reservation, fallback error) error {
	conflicts, err := r.FindOverlapping(ctx, rsv.ListingID(), rsv.Stay(), constrainedStatuses, rsv.ID())
	if err != nil {
		return fallback
	}
	if earliest := reservationDomain.EarliestConflict(conflicts); earliest != nil {
		return earliest.ConflictError()
	}
	return fallback
}

// Update persists changes to an existing reservation with optimistic locking.
func (r *GormReservationRepository) Update(ctx context.Context, rsv *reservationDomain.Reservation) error {
	model := toReservationModel(rsv)

	// IncrementVersion was called, so the stored row still carries the previous version.
	expectedVersion := rsv.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&ReservationModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"stay_start":     model.StayStart,
			"stay_end":       model.StayEnd,
			"total_price":    model.TotalPrice,
			"guest_count":    model.GuestCount,
			"status":         model.Status,
			"notes":          model.Notes,
			"payment_status": model.PaymentStatus,
			"check_in_time":  model.CheckInTime,
			"check_out_time": model.CheckOutTime,
			"confirmed_at":   model.ConfirmedAt,
			"cancelled_at":   model.CancelledAt,
			"version":        model.Version,
			"updated_at":     model.UpdatedAt,
		})

	if result.Error != nil {
		return translateError("update reservation", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("reservation was modified by another transaction")
	}
	return nil
}

// Delete hard-deletes a reservation.
func (r *GormReservationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&ReservationModel{}, "id = ?", id)
	if result.Error != nil {
		return translateError("delete reservation", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Reservation", id.String())
	}
	return nil
}

// WithinListingLock runs fn inside one transaction holding a transaction-scoped advisory lock
// keyed by the listing id. Concurrent callers for the same listing queue on the lock.
func (r *GormReservationRepository) WithinListingLock(
	ctx context.Context,
	listingID uuid.UUID,
	fn func(repo reservationDomain.ReservationRepository) error,
) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", listingID.String()).Error; err != nil {
			return translateError("acquire listing lock", err)
		}
		return fn(&GormReservationRepository{db: tx})
	})
	return translateError("listing transaction", err)
}

func (r *GormReservationRepository) findPage(ctx context.Context, op string, page, limit int, where string, args ...interface{}) ([]*reservationDomain.Reservation, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&ReservationModel{})
		if where != "" {
			q = q.Where(where, args...)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, translateError(op, err)
	}

	var models []ReservationModel
	offset := (page - 1) * limit
	if err := base().
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, translateError(op, err)
	}

	reservations, err := toDomainReservations(models)
	if err != nil {
		return nil, 0, err
	}
	return reservations, total, nil
}

// --- Conversion Helpers ---

func toReservationModel(rsv *reservationDomain.Reservation) *ReservationModel {
	return &ReservationModel{
		ID:            rsv.ID(),
		RenterID:      rsv.RenterID(),
		ListingID:     rsv.ListingID(),
		HostID:        rsv.HostID(),
		StayStart:     rsv.Stay().Start,
		StayEnd:       rsv.Stay().End,
		NightlyRate:   rsv.NightlyRate(),
		TotalPrice:    rsv.TotalPrice(),
		GuestCount:    rsv.GuestCount(),
		Status:        rsv.Status().String(),
		Notes:         rsv.Notes(),
		PaymentStatus: string(rsv.PaymentStatus()),
		CheckInTime:   rsv.CheckInTime(),
		CheckOutTime:  rsv.CheckOutTime(),
		ConfirmedAt:   rsv.ConfirmedAt(),
		CancelledAt:   rsv.CancelledAt(),
		Version:       rsv.Version(),
		CreatedAt:     rsv.CreatedAt(),
		UpdatedAt:     rsv.UpdatedAt(),
	}
}

func toDomainReservation(m *ReservationModel) (*reservationDomain.Reservation, error) {
	status, err := reservationDomain.ParseReservationStatus(m.Status)
	if err != nil {
		return nil, domain.NewStorageError("decode reservation status", err)
	}
	paymentStatus, err := reservationDomain.ParsePaymentStatus(m.PaymentStatus)
	if err != nil {
		return nil, domain.NewStorageError("decode payment status", err)
	}

	return reservationDomain.ReconstructReservation(
		m.ID,
		m.RenterID,
		m.ListingID,
		m.HostID,
		reservationDomain.StayRange{Start: m.StayStart.UTC(), End: m.StayEnd.UTC()},
		m.NightlyRate,
		m.TotalPrice,
		m.GuestCount,
		status,
		m.Notes,
		paymentStatus,
		m.CheckInTime,
		m.CheckOutTime,
		m.ConfirmedAt,
		m.CancelledAt,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func toDomainReservations(models []ReservationModel) ([]*reservationDomain.Reservation, error) {
	reservations := make([]*reservationDomain.Reservation, len(models))
	for i := range models {
		rsv, err := toDomainReservation(&models[i])
		if err != nil {
			return nil, err
		}
		reservations[i] = rsv
	}
	return reservations, nil
}
