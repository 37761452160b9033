package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ema-residences/service-reservation/internal/application"
	"github.com/ema-residences/service-reservation/internal/platform/auth"
	"github.com/ema-residences/service-reservation/internal/platform/middleware"
	"github.com/ema-residences/service-reservation/internal/platform/response"
)

// AdminReservationService is the admin part of the application layer.
type AdminReservationService interface {
	ListAllReservations(ctx context.Context, page, limit int) ([]application.ReservationDTO, int64, error)
	GetReservationStats(ctx context.Context) (*application.ReservationStatsDTO, error)
}

// AdminReservationHandler handles admin HTTP requests for reservation management.
type AdminReservationHandler struct {
	service AdminReservationService
}

// NewAdminReservationHandler creates a new AdminReservationHandler.
func NewAdminReservationHandler(service AdminReservationService) *AdminReservationHandler {
	return &AdminReservationHandler{service: service}
}

// RegisterRoutes registers admin reservation routes.
func (h *AdminReservationHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/reservations", h.ListReservations)
		admin.GET("/stats/reservations", h.ReservationStats)
	}
}

// ListReservations handles GET /api/v1/admin/reservations.
func (h *AdminReservationHandler) ListReservations(c *gin.Context) {
	page, limit := parsePagination(c)

	reservations, total, err := h.service.ListAllReservations(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, reservations, total, page, limit)
}

// ReservationStats handles GET /api/v1/admin/stats/reservations.
func (h *AdminReservationHandler) ReservationStats(c *gin.Context) {
	stats, err := h.service.GetReservationStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}
