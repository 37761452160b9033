package handler

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/ema-residences/service-reservation/internal/application"
	reservationDomain "github.com/ema-residences/service-reservation/internal/domain/reservation"
	"github.com/ema-residences/service-reservation/internal/platform/auth"
	"github.com/ema-residences/service-reservation/internal/platform/domain"
	"github.com/ema-residences/service-reservation/internal/platform/middleware"
	"github.com/ema-residences/service-reservation/internal/platform/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	idempotencyHeader    = "Idempotency-Key"
	maxIdempotencyKeyLen = 255
)

// ReservationService is the part of the application layer the reservation routes use.
type ReservationService interface {
	CreateReservationIdempotent(ctx context.Context, renterID uuid.UUID, key string, req application.CreateReservationRequest) (*application.ReservationDTO, bool, error)
	SetStatus(ctx context.Context, reservationID, callerID uuid.UUID, target string) (*application.ReservationDTO, error)
	UpdateReservation(ctx context.Context, reservationID, callerID uuid.UUID, patch reservationDomain.Patch) (*application.ReservationDTO, error)
	DeleteReservation(ctx context.Context, reservationID, callerID uuid.UUID) error
	GetReservation(ctx context.Context, reservationID, callerID uuid.UUID) (*application.ReservationDTO, error)
	GetRenterReservations(ctx context.Context, renterID uuid.UUID, page, limit int) (*domain.PaginatedResult[application.ReservationDTO], error)
	GetHostReservations(ctx context.Context, hostID uuid.UUID, page, limit int) (*domain.PaginatedResult[application.ReservationDTO], error)
	GetHostStats(ctx context.Context, hostID uuid.UUID) (*application.HostStatsDTO, error)
	GetBookedRanges(ctx context.Context, listingID uuid.UUID, from, to string) ([]application.BookedRangeDTO, error)
}

// ReservationHandler handles HTTP requests for reservation operations.
type ReservationHandler struct {
	service ReservationService
}

// NewReservationHandler creates a new ReservationHandler.
func NewReservationHandler(service ReservationService) *ReservationHandler {
	return &ReservationHandler{service: service}
}

// RegisterRoutes registers all reservation routes on the given router group.
func (h *ReservationHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	hostOnly := middleware.RequireRole(auth.RoleOwner, auth.RoleAdmin)

	reservations := r.Group("/api/v1/reservations")
	reservations.Use(authMW)
	{
		reservations.POST("", h.CreateReservation)
		reservations.GET("/client", h.ListRenterReservations)
		reservations.GET("/owner", hostOnly, h.ListHostReservations)
		reservations.GET("/stats/owner", hostOnly, h.HostStats)
		reservations.GET("/:id", h.GetReservation)
		reservations.PATCH("/:id", h.UpdateReservation)
		reservations.PATCH("/:id/status", h.SetStatus)
		reservations.DELETE("/:id", h.DeleteReservation)
	}

	// Availability is public so listing pages can render calendars before sign-in.
	r.GET("/api/v1/listings/:id/booked-ranges", h.BookedRanges)
}

// CreateReservation handles POST /api/v1/reservations. A replayed Idempotency-Key answers 200
// with the reservation created by the first request.
func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	key := c.GetHeader(idempotencyHeader)
	if len(key) > maxIdempotencyKeyLen {
		response.BadRequest(c, "Idempotency-Key is too long")
		return
	}

	var req application.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return
	}

	result, replayed, err := h.service.CreateReservationIdempotent(c.Request.Context(), userID, key, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	if replayed {
		response.Success(c, result)
		return
	}
	response.Created(c, result)
}

// ListRenterReservations handles GET /api/v1/reservations/client.
func (h *ReservationHandler) ListRenterReservations(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	page, limit := parsePagination(c)
	result, err := h.service.GetRenterReservations(c.Request.Context(), userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// ListHostReservations handles GET /api/v1/reservations/owner.
func (h *ReservationHandler) ListHostReservations(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	page, limit := parsePagination(c)
	result, err := h.service.GetHostReservations(c.Request.Context(), userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// HostStats handles GET /api/v1/reservations/stats/owner.
func (h *ReservationHandler) HostStats(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	stats, err := h.service.GetHostStats(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// GetReservation handles GET /api/v1/reservations/:id.
func (h *ReservationHandler) GetReservation(c *gin.Context) {
	reservationID, userID, ok := reservationCaller(c)
	if !ok {
		return
	}

	result, err := h.service.GetReservation(c.Request.Context(), reservationID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// UpdateReservation handles PATCH /api/v1/reservations/:id. Every key in the body counts as a
// touched field, including keys the reservation does not know.
func (h *ReservationHandler) UpdateReservation(c *gin.Context) {
	reservationID, userID, ok := reservationCaller(c)
	if !ok {
		return
	}

	var body map[string]json.RawMessage
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "request body must be a JSON object")
		return
	}

	result, err := h.service.UpdateReservation(c.Request.Context(), reservationID, userID, decodePatch(body))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// SetStatus handles PATCH /api/v1/reservations/:id/status.
func (h *ReservationHandler) SetStatus(c *gin.Context) {
	reservationID, userID, ok := reservationCaller(c)
	if !ok {
		return
	}

	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return
	}

	result, err := h.service.SetStatus(c.Request.Context(), reservationID, userID, body.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// DeleteReservation handles DELETE /api/v1/reservations/:id.
func (h *ReservationHandler) DeleteReservation(c *gin.Context) {
	reservationID, userID, ok := reservationCaller(c)
	if !ok {
		return
	}

	if err := h.service.DeleteReservation(c.Request.Context(), reservationID, userID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"id": reservationID, "deleted": true})
}

// BookedRanges handles GET /api/v1/listings/:id/booked-ranges?from=&to=.
func (h *ReservationHandler) BookedRanges(c *gin.Context) {
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid listing ID")
		return
	}

	var q struct {
		From string `form:"from" json:"from" binding:"omitempty,isodate"`
		To   string `form:"to" json:"to" binding:"omitempty,isodate"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, bindingMessage(err))
		return
	}

	ranges, err := h.service.GetBookedRanges(c.Request.Context(), listingID, q.From, q.To)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ranges)
}

// reservationCaller reads the :id parameter and the authenticated caller, writing the error
// response itself when either is missing.
func reservationCaller(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	reservationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid reservation ID")
		return uuid.Nil, uuid.Nil, false
	}
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return uuid.Nil, uuid.Nil, false
	}
	return reservationID, userID, true
}

// decodePatch maps a JSON object onto a Patch. Values of the wrong shape stay nil so the
// domain field lock runs before value validation reports them.
func decodePatch(body map[string]json.RawMessage) reservationDomain.Patch {
	var p reservationDomain.Patch
	for field, raw := range body {
		p.Fields = append(p.Fields, field)
		switch field {
		case reservationDomain.FieldNotes:
			p.Notes = decodeString(raw)
		case reservationDomain.FieldPaymentStatus:
			p.PaymentStatus = decodeString(raw)
		case reservationDomain.FieldCheckInTime:
			p.CheckInTime = decodeString(raw)
		case reservationDomain.FieldCheckOutTime:
			p.CheckOutTime = decodeString(raw)
		}
	}
	sort.Strings(p.Fields)
	return p
}

func decodeString(raw json.RawMessage) *string {
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return s
}
