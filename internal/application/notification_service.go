package application

import (
	"context"
	"time"

	notificationDomain "github.com/ema-residences/service-reservation/internal/domain/notification"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationListLimit caps the inbox listing.
const NotificationListLimit = 50

// NotificationDTO is the API response representation of a notification.
type NotificationDTO struct {
	ID            uuid.UUID  `json:"id"`
	Type          string     `json:"type"`
	Title         string     `json:"title"`
	Message       string     `json:"message"`
	ReservationID *uuid.UUID `json:"reservationId,omitempty"`
	ListingID     *uuid.UUID `json:"listingId,omitempty"`
	ActorID       *uuid.UUID `json:"actorId,omitempty"`
	Read          bool       `json:"read"`
	CreatedAt     time.Time  `json:"createdAt"`
	ReadAt        *time.Time `json:"readAt,omitempty"`
}

// NotificationService handles the in-app inbox use cases.
type NotificationService struct {
	repo   notificationDomain.NotificationRepository
	logger *zap.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(repo notificationDomain.NotificationRepository, logger *zap.Logger) *NotificationService {
	return &NotificationService{repo: repo, logger: logger}
}

// ListNotifications returns the caller's latest notifications, newest first.
func (s *NotificationService) ListNotifications(ctx context.Context, userID uuid.UUID) ([]NotificationDTO, error) {
	items, err := s.repo.FindLatestByRecipient(ctx, userID, NotificationListLimit)
	if err != nil {
		return nil, err
	}

	dtos := make([]NotificationDTO, len(items))
	for i, n := range items {
		dtos[i] = toNotificationDTO(n)
	}
	return dtos, nil
}

// UnreadCount returns how many of the caller's notifications are unread.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead marks one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	return s.repo.MarkRead(ctx, notificationID, userID)
}

// MarkAllRead marks every unread notification of the caller as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("notifications marked read",
		zap.String("user_id", userID.String()),
		zap.Int64("count", n),
	)
	return n, nil
}

func toNotificationDTO(n *notificationDomain.Notification) NotificationDTO {
	return NotificationDTO{
		ID:            n.ID(),
		Type:          string(n.Type()),
		Title:         n.Title(),
		Message:       n.Message(),
		ReservationID: n.ReservationID(),
		ListingID:     n.ListingID(),
		ActorID:       n.ActorID(),
		Read:          n.IsRead(),
		CreatedAt:     n.CreatedAt(),
		ReadAt:        n.ReadAt(),
	}
}
