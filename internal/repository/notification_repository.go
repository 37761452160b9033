package repository

import (
	"context"
	"time"

	notificationDomain "github.com/ema-residences/service-reservation/internal/domain/notification"
	"github.com/ema-residences/service-reservation/internal/platform/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationModel is the GORM model for the notifications table.
type NotificationModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	RecipientID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	Type          string     `gorm:"type:varchar(20);not null"`
	Title         string     `gorm:"type:varchar(200);not null"`
	Message       string     `gorm:"type:text;not null"`
	ReservationID *uuid.UUID `gorm:"type:uuid"`
	ListingID     *uuid.UUID `gorm:"type:uuid"`
	ActorID       *uuid.UUID `gorm:"type:uuid"`
	SourceEventID *string    `gorm:"type:varchar(64)"`
	Read          bool       `gorm:"not null"`
	EmailSent     bool       `gorm:"not null"`
	CreatedAt     time.Time  `gorm:"type:timestamptz;not null"`
	ReadAt        *time.Time `gorm:"type:timestamptz"`
}

// TableName sets the table name.
func (NotificationModel) TableName() string { return "notifications" }

// GormNotificationRepository implements NotificationRepository using GORM.
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GormNotificationRepository.
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Save inserts n unless a notification for the same source event and recipient exists.
func (r *GormNotificationRepository) Save(ctx context.Context, n *notificationDomain.Notification) (bool, error) {
	model := toNotificationModel(n)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_event_id"}, {Name: "recipient_id"}},
			DoNothing: true,
		}).
		Create(&model)
	if result.Error != nil {
		return false, translateError("save notification", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FindLatestByRecipient returns up to limit notifications, newest first.
func (r *GormNotificationRepository) FindLatestByRecipient(ctx context.Context, recipientID uuid.UUID, limit int) ([]*notificationDomain.Notification, error) {
	var models []NotificationModel
	if err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, translateError("list notifications", err)
	}

	items := make([]*notificationDomain.Notification, len(models))
	for i := range models {
		items[i] = toNotificationDomain(&models[i])
	}
	return items, nil
}

// CountUnread counts the recipient's unread notifications.
func (r *GormNotificationRepository) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&NotificationModel{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Count(&count).Error; err != nil {
		return 0, translateError("count unread notifications", err)
	}
	return count, nil
}

// MarkRead marks one notification as read. Marking an already read notification keeps its
// original read time.
func (r *GormNotificationRepository) MarkRead(ctx context.Context, id, recipientID uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&NotificationModel{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Updates(map[string]interface{}{
			"read":    true,
			"read_at": gorm.Expr("COALESCE(read_at, ?)", time.Now().UTC()),
		})
	if result.Error != nil {
		return translateError("mark notification read", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError("Notification", id.String())
	}
	return nil
}

// MarkAllRead marks every unread notification of the recipient as read.
func (r *GormNotificationRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Model(&NotificationModel{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Updates(map[string]interface{}{
			"read":    true,
			"read_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, translateError("mark notifications read", result.Error)
	}
	return result.RowsAffected, nil
}

// MarkEmailSent records that the notification email was delivered.
func (r *GormNotificationRepository) MarkEmailSent(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Model(&NotificationModel{}).
		Where("id = ?", id).
		Update("email_sent", true).Error; err != nil {
		return translateError("mark email sent", err)
	}
	return nil
}

func toNotificationModel(n *notificationDomain.Notification) NotificationModel {
	var source *string
	if id := n.SourceEventID(); id != "" {
		source = &id
	}
	return NotificationModel{
		ID:            n.ID(),
		RecipientID:   n.RecipientID(),
		Type:          string(n.Type()),
		Title:         n.Title(),
		Message:       n.Message(),
		ReservationID: n.ReservationID(),
		ListingID:     n.ListingID(),
		ActorID:       n.ActorID(),
		SourceEventID: source,
		Read:          n.IsRead(),
		EmailSent:     n.EmailSent(),
		CreatedAt:     n.CreatedAt(),
		ReadAt:        n.ReadAt(),
	}
}

func toNotificationDomain(m *NotificationModel) *notificationDomain.Notification {
	var source string
	if m.SourceEventID != nil {
		source = *m.SourceEventID
	}
	return notificationDomain.Reconstruct(
		m.ID,
		m.RecipientID,
		notificationDomain.NotificationType(m.Type),
		m.Title,
		m.Message,
		m.ReservationID,
		m.ListingID,
		m.ActorID,
		source,
		m.Read,
		m.EmailSent,
		m.CreatedAt,
		m.ReadAt,
	)
}
