// Package notify turns storefront domain events into customer email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/mail"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
)

// ConsumerGroupID is the Kafka consumer group of the notifier.
const ConsumerGroupID = "storefront-notify"

// Topics lists the topics the notifier subscribes to.
var Topics = []string{
	event.TopicUserRegistered,
	event.TopicOrderStatusChanged,
}

// UserFinder loads users by id.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// ConsumerHandler routes incoming events to the matching email.
type ConsumerHandler struct {
	users  UserFinder
	mailer mail.Sender
	logger *slog.Logger
}

// NewConsumerHandler creates a new event consumer handler.
func NewConsumerHandler(users UserFinder, mailer mail.Sender, logger *slog.Logger) *ConsumerHandler {
	return &ConsumerHandler{users: users, mailer: mailer, logger: logger}
}

// Handle processes one event. A returned error makes the consumer retry and
// finally dead-letter the message.
func (h *ConsumerHandler) Handle(ctx context.Context, e *pkgkafka.Event) error {
	switch e.EventType {
	case event.TopicUserRegistered:
		return h.handleUserRegistered(ctx, e)
	case event.TopicOrderStatusChanged:
		return h.handleOrderStatusChanged(ctx, e)
	default:
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", e.EventType),
			slog.String("event_id", e.EventID),
		)
		return nil
	}
}

func (h *ConsumerHandler) handleUserRegistered(ctx context.Context, e *pkgkafka.Event) error {
	var data event.UserData
	if err := e.UnmarshalData(&data); err != nil {
		h.logger.ErrorContext(ctx, "malformed user.registered payload",
			slog.String("event_id", e.EventID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if data.Email == "" {
		return nil
	}
	if err := h.mailer.Send(ctx, mail.WelcomeMessage(data.Email, data.Name)); err != nil {
		return fmt.Errorf("send welcome mail: %w", err)
	}
	h.logger.InfoContext(ctx, "welcome mail sent", slog.String("user_id", data.ID))
	return nil
}

func (h *ConsumerHandler) handleOrderStatusChanged(ctx context.Context, e *pkgkafka.Event) error {
	var data event.OrderStatusChangedData
	if err := e.UnmarshalData(&data); err != nil {
		h.logger.ErrorContext(ctx, "malformed order.status_changed payload",
			slog.String("event_id", e.EventID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	user, err := h.users.FindByID(ctx, data.UserID)
	if errors.Is(err, apperrors.ErrNotFound) {
		// The customer deleted their account since ordering.
		h.logger.InfoContext(ctx, "skipping order mail for missing user",
			slog.String("order_id", data.OrderID),
			slog.String("user_id", data.UserID),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load order owner: %w", err)
	}

	if err := h.mailer.Send(ctx, mail.OrderStatusMessage(user.Email, data.OrderID, string(data.To))); err != nil {
		return fmt.Errorf("send order status mail: %w", err)
	}
	h.logger.InfoContext(ctx, "order status mail sent",
		slog.String("order_id", data.OrderID),
		slog.String("status", string(data.To)),
	)
	return nil
}

// NewConsumers creates one consumer per subscribed topic.
func NewConsumers(brokers []string, handler *ConsumerHandler, logger *slog.Logger, opts ...pkgkafka.ConsumerOption) []*pkgkafka.Consumer {
	consumers := make([]*pkgkafka.Consumer, 0, len(Topics))
	for _, topic := range Topics {
		cfg := pkgkafka.ConsumerConfig{
			Brokers:  brokers,
			GroupID:  ConsumerGroupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}
		consumers = append(consumers, pkgkafka.NewConsumer(cfg, handler.Handle, logger, opts...))
	}
	return consumers
}
