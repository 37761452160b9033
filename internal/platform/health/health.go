package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Handler serves liveness and readiness probes.
type Handler struct {
	db      *gorm.DB
	service string
	checks  map[string]Pinger
}

// NewHandler creates a Handler. The database is always part of readiness.
func NewHandler(db *gorm.DB, service string) *Handler {
	return &Handler{db: db, service: service, checks: map[string]Pinger{}}
}

// AddCheck registers an extra readiness dependency.
func (h *Handler) AddCheck(name string, p Pinger) *Handler {
	h.checks[name] = p
	return h
}

// RegisterRoutes mounts /health and /health/ready.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Live)
	r.GET("/health/ready", h.Ready)
}

// Live always reports ok while the process serves requests.
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": h.service})
}

// Ready pings every dependency.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	results := gin.H{}
	healthy := true

	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		results["database"] = status(err)
		healthy = healthy && err == nil
	}
	for name, p := range h.checks {
		err := p.Ping(ctx)
		results[name] = status(err)
		healthy = healthy && err == nil
	}

	code := http.StatusOK
	overall := "ready"
	if !healthy {
		code = http.StatusServiceUnavailable
		overall = "not_ready"
	}
	c.JSON(code, gin.H{"status": overall, "service": h.service, "checks": results})
}

func status(err error) string {
	if err != nil {
		return "down: " + err.Error()
	}
	return "up"
}
