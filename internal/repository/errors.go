package repository

import (
	"errors"

	reservationDomain "github.com/ema-residences/service-reservation/internal/domain/reservation"
	"github.com/ema-residences/service-reservation/internal/platform/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes the repositories translate.
const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
)

// constrainedStatuses are the statuses reservations_no_overlap applies to.
var constrainedStatuses = []reservationDomain.ReservationStatus{
	reservationDomain.StatusPending,
	reservationDomain.StatusConfirmed,
}

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation
}

// translateError maps driver errors to domain errors. AppErrors pass through unchanged.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation:
			// The constraint error does not name the colliding row; Save looks it up.
			return domain.NewDateConflictError("", "")
		case pgUniqueViolation:
			return domain.NewConflictError("record already exists")
		}
	}
	return domain.NewStorageError(op, err)
}
