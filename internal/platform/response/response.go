package response

import (
	"errors"
	"net/http"

	"github.com/ema-residences/service-reservation/internal/platform/domain"
	"github.com/gin-gonic/gin"
)

// ErrorBody is the error part of the JSON envelope.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Success writes 200 with data.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Created writes 201 with data.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

// Paginated writes 200 with a page of items and pagination metadata.
func Paginated(c *gin.Context, items any, total int64, page, limit int) {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"pagination": gin.H{
			"total":      total,
			"page":       page,
			"limit":      limit,
			"totalPages": totalPages,
		},
	})
}

// BadRequest writes a 400 validation error.
func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, ErrorBody{Code: string(domain.KindValidation), Message: message})
}

// Unauthorized writes a 401.
func Unauthorized(c *gin.Context, message string) {
	abort(c, http.StatusUnauthorized, ErrorBody{Code: string(domain.KindUnauthenticated), Message: message})
}

// Forbidden writes a 403.
func Forbidden(c *gin.Context, message string) {
	abort(c, http.StatusForbidden, ErrorBody{Code: string(domain.KindForbidden), Message: message})
}

// Error maps err to a status code and writes the error envelope. Storage and untyped
// errors never leak their cause to the caller.
func Error(c *gin.Context, err error) {
	var appErr *domain.AppError
	if !errors.As(err, &appErr) || appErr.Kind == domain.KindStorage {
		_ = c.Error(err)
		abort(c, http.StatusInternalServerError, ErrorBody{
			Code:    string(domain.KindStorage),
			Message: "internal server error",
		})
		return
	}
	abort(c, StatusFor(appErr.Kind), ErrorBody{
		Code:    string(appErr.Kind),
		Message: appErr.Message,
		Details: appErr.Details,
	})
}

// StatusFor returns the HTTP status for an error kind.
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindForbidden, domain.KindSelfBookingForbidden:
		return http.StatusForbidden
	case domain.KindValidation, domain.KindInvalidDateRange:
		return http.StatusBadRequest
	case domain.KindPriceMismatch:
		return http.StatusUnprocessableEntity
	case domain.KindDateConflict,
		domain.KindInvalidTransition,
		domain.KindImmutableFieldViolation,
		domain.KindConcurrentModification:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, status int, body ErrorBody) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": body})
}
