package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	listingDomain "github.com/ema-residences/service-reservation/internal/domain/listing"
	notificationDomain "github.com/ema-residences/service-reservation/internal/domain/notification"
	reservationDomain "github.com/ema-residences/service-reservation/internal/domain/reservation"
	userDomain "github.com/ema-residences/service-reservation/internal/domain/user"
	"github.com/ema-residences/service-reservation/internal/platform/domain"
	"github.com/ema-residences/service-reservation/internal/platform/kafka"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Template names looked up in the notification catalogue.
const (
	TemplateReservationRequested = "reservation_requested"
	TemplateReservationConfirmed = "reservation_confirmed"
	TemplateReservationCancelled = "reservation_cancelled"
	TemplateReservationUpdated   = "reservation_updated"
	TemplateReservationDeleted   = "reservation_deleted"
	TemplateStayReminder         = "stay_reminder"
)

const fallbackListingTitle = "your listing"

// NotificationData is what templates can reference.
type NotificationData struct {
	RecipientName  string
	ActorName      string
	ListingTitle   string
	StayStart      string
	StayEnd        string
	TotalPrice     int64
	CheckInTime    string
	Fields         string
	PreviousStatus string
}

// RenderedNotification is a template rendered for one recipient.
type RenderedNotification struct {
	Type    notificationDomain.NotificationType
	Title   string
	Message string
	Subject string
	Text    string
	HTML    string
}

// NotificationRenderer renders a named template.
type NotificationRenderer interface {
	Render(name string, data NotificationData) (RenderedNotification, error)
}

// delivery is one notification to produce for an event.
type delivery struct {
	template      string
	recipientID   uuid.UUID
	actorID       *uuid.UUID
	reservationID uuid.UUID
	listingID     uuid.UUID
	data          NotificationData
}

// DispatchService turns reservation events into in-app notifications and emails.
type DispatchService struct {
	repo     notificationDomain.NotificationRepository
	listings listingDomain.ListingDirectory
	users    userDomain.UserDirectory
	renderer NotificationRenderer
	mailer   Mailer
	logger   *zap.Logger
}

// NewDispatchService creates a new DispatchService. mailer may be nil, in which case only
// in-app notifications are stored.
func NewDispatchService(
	repo notificationDomain.NotificationRepository,
	listings listingDomain.ListingDirectory,
	users userDomain.UserDirectory,
	renderer NotificationRenderer,
	mailer Mailer,
	logger *zap.Logger,
) *DispatchService {
	return &DispatchService{
		repo:     repo,
		listings: listings,
		users:    users,
		renderer: renderer,
		mailer:   mailer,
		logger:   logger,
	}
}

// Dispatch handles one reservation event. Malformed or irrelevant events are dropped; only
// storage failures are returned so the consumer retries.
func (s *DispatchService) Dispatch(ctx context.Context, event kafka.CloudEvent) error {
	d, err := planDelivery(event)
	if err != nil {
		s.logger.Error("dropping malformed reservation event",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.Error(err),
		)
		return nil
	}
	if d == nil {
		s.logger.Debug("ignoring reservation event", zap.String("type", event.Type))
		return nil
	}
	return s.deliver(ctx, event.ID, *d)
}

func planDelivery(event kafka.CloudEvent) (*delivery, error) {
	switch event.Type {
	case reservationDomain.EventCreated:
		var evt reservationDomain.CreatedEvent
		if err := event.ParseData(&evt); err != nil {
			return nil, err
		}
		return &delivery{
			template:      TemplateReservationRequested,
			recipientID:   evt.HostID,
			actorID:       &evt.RenterID,
			reservationID: evt.ReservationID,
			listingID:     evt.ListingID,
			data: NotificationData{
				StayStart:  formatDay(evt.StayStart),
				StayEnd:    formatDay(evt.StayEnd),
				TotalPrice: evt.TotalPrice,
			},
		}, nil

	case reservationDomain.EventStatusChanged:
		var evt reservationDomain.StatusChangedEvent
		if err := event.ParseData(&evt); err != nil {
			return nil, err
		}
		d := &delivery{
			actorID:       &evt.ChangedBy,
			reservationID: evt.ReservationID,
			listingID:     evt.ListingID,
			data: NotificationData{
				StayStart:      formatDay(evt.StayStart),
				StayEnd:        formatDay(evt.StayEnd),
				TotalPrice:     evt.TotalPrice,
				PreviousStatus: evt.OldStatus.String(),
			},
		}
		switch evt.NewStatus {
		case reservationDomain.StatusConfirmed:
			d.template = TemplateReservationConfirmed
			d.recipientID = evt.RenterID
		case reservationDomain.StatusCancelled:
			d.template = TemplateReservationCancelled
			d.recipientID = counterpart(evt.ChangedBy, evt.RenterID, evt.HostID)
		default:
			return nil, nil
		}
		return d, nil

	case reservationDomain.EventUpdated:
		var evt reservationDomain.UpdatedEvent
		if err := event.ParseData(&evt); err != nil {
			return nil, err
		}
		return &delivery{
			template:      TemplateReservationUpdated,
			recipientID:   counterpart(evt.UpdatedBy, evt.RenterID, evt.HostID),
			actorID:       &evt.UpdatedBy,
			reservationID: evt.ReservationID,
			listingID:     evt.ListingID,
			data:          NotificationData{Fields: strings.Join(evt.Fields, ", ")},
		}, nil

	case reservationDomain.EventDeleted:
		var evt reservationDomain.DeletedEvent
		if err := event.ParseData(&evt); err != nil {
			return nil, err
		}
		return &delivery{
			template:      TemplateReservationDeleted,
			recipientID:   counterpart(evt.DeletedBy, evt.RenterID, evt.HostID),
			actorID:       &evt.DeletedBy,
			reservationID: evt.ReservationID,
			listingID:     evt.ListingID,
			data: NotificationData{
				StayStart:      formatDay(evt.StayStart),
				StayEnd:        formatDay(evt.StayEnd),
				PreviousStatus: evt.PreviousStatus.String(),
			},
		}, nil

	case reservationDomain.EventReminder:
		var evt reservationDomain.ReminderEvent
		if err := event.ParseData(&evt); err != nil {
			return nil, err
		}
		return &delivery{
			template:      TemplateStayReminder,
			recipientID:   evt.RenterID,
			reservationID: evt.ReservationID,
			listingID:     evt.ListingID,
			data: NotificationData{
				StayStart:   formatDay(evt.StayStart),
				StayEnd:     formatDay(evt.StayEnd),
				CheckInTime: evt.CheckInTime,
			},
		}, nil
	}
	return nil, nil
}

func (s *DispatchService) deliver(ctx context.Context, eventID string, d delivery) error {
	if d.recipientID == uuid.Nil {
		return nil
	}

	d.data.ListingTitle = fallbackListingTitle
	lst, err := s.listings.FindByID(ctx, d.listingID)
	switch {
	case err == nil:
		d.data.ListingTitle = lst.Title()
	case !domain.IsKind(err, domain.KindNotFound):
		return err
	}

	recipient, err := s.findUser(ctx, d.recipientID)
	if err != nil {
		return err
	}
	if recipient != nil {
		d.data.RecipientName = recipient.DisplayName()
	}
	if d.actorID != nil {
		actor, err := s.findUser(ctx, *d.actorID)
		if err != nil {
			return err
		}
		if actor != nil {
			d.data.ActorName = actor.DisplayName()
		}
	}

	rendered, err := s.renderer.Render(d.template, d.data)
	if err != nil {
		s.logger.Error("failed to render notification",
			zap.String("template", d.template),
			zap.Error(err),
		)
		return nil
	}

	reservationID, listingID := d.reservationID, d.listingID
	n, err := notificationDomain.NewNotification(
		d.recipientID,
		rendered.Type,
		rendered.Title,
		rendered.Message,
		&reservationID,
		&listingID,
		d.actorID,
		eventID,
	)
	if err != nil {
		s.logger.Error("invalid notification", zap.String("template", d.template), zap.Error(err))
		return nil
	}

	created, err := s.repo.Save(ctx, n)
	if err != nil {
		return err
	}
	if !created {
		s.logger.Debug("notification already stored for event",
			zap.String("event_id", eventID),
			zap.String("recipient_id", d.recipientID.String()),
		)
		return nil
	}

	if s.mailer == nil || recipient == nil || !recipient.HasEmail() {
		return nil
	}
	msg := EmailMessage{
		ToEmail: recipient.Email(),
		ToName:  recipient.DisplayName(),
		Subject: rendered.Subject,
		Text:    rendered.Text,
		HTML:    rendered.HTML,
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("failed to send notification email",
			zap.String("notification_id", n.ID().String()),
			zap.String("template", d.template),
			zap.Error(err),
		)
		return nil
	}
	if err := s.repo.MarkEmailSent(ctx, n.ID()); err != nil {
		s.logger.Warn("failed to record email delivery",
			zap.String("notification_id", n.ID().String()),
			zap.Error(err),
		)
	}
	return nil
}

// findUser returns nil without error when the user does not exist.
func (s *DispatchService) findUser(ctx context.Context, id uuid.UUID) (*userDomain.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve user %s: %w", id, err)
	}
	return u, nil
}

// counterpart is the party that did not act.
func counterpart(actor, renterID, hostID uuid.UUID) uuid.UUID {
	if actor == hostID {
		return renterID
	}
	return hostID
}

func formatDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
