package events

import (
	"context"

	"github.com/ema-residences/service-reservation/internal/application"
	"github.com/ema-residences/service-reservation/internal/platform/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventDispatcher turns one reservation event into notifications.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event kafka.CloudEvent) error
}

// ReservationEventConsumer listens to reservation events and hands them to notification dispatch.
type ReservationEventConsumer struct {
	consumer   *kafka.Consumer
	dispatcher EventDispatcher
	dedup      application.EventDeduplicator
	name       string
	logger     *zap.Logger
}

// NewReservationEventConsumer creates a new ReservationEventConsumer. dedup may be nil, in which
// case redelivered events rely on the notification store to skip duplicates.
func NewReservationEventConsumer(
	brokers []string,
	groupID, topic string,
	dispatcher EventDispatcher,
	dedup application.EventDeduplicator,
	logger *zap.Logger,
) *ReservationEventConsumer {
	return &ReservationEventConsumer{
		consumer:   kafka.NewConsumer(brokers, groupID, topic, logger),
		dispatcher: dispatcher,
		dedup:      dedup,
		name:       groupID,
		logger:     logger,
	}
}

// Start begins consuming reservation events. This blocks until the context is cancelled.
func (c *ReservationEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *ReservationEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *ReservationEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	event, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from reservation topic",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
		)
		return nil // Don't retry malformed messages
	}

	if c.dedup != nil {
		first, err := c.dedup.MarkProcessed(ctx, c.name, event.ID)
		if err != nil {
			c.logger.Warn("dedup store unavailable, dispatching anyway",
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		} else if !first {
			c.logger.Debug("skipping already processed event",
				zap.String("event_id", event.ID),
				zap.String("type", event.Type),
			)
			return nil
		}
	}

	if err := c.dispatcher.Dispatch(ctx, event); err != nil {
		c.logger.Error("failed to dispatch reservation event",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.Error(err),
		)
		if c.dedup != nil {
			if ferr := c.dedup.Forget(ctx, c.name, event.ID); ferr != nil {
				c.logger.Warn("failed to clear dedup mark", zap.String("event_id", event.ID), zap.Error(ferr))
			}
		}
		return err
	}
	return nil
}
