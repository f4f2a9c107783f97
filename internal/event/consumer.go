package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/mailer"
	pkgkafka "github.com/Rodrigo-Schwindt/Backend-Render/pkg/kafka"
)

// ConsumerGroupID is the consumer group of the mail notifier.
const ConsumerGroupID = "storefront-notifier"

// ConsumerHandler turns order events into customer mail.
type ConsumerHandler struct {
	composer *mailer.Composer
	sender   mailer.Sender
	logger   *slog.Logger
}

// NewConsumerHandler creates a new event consumer handler.
func NewConsumerHandler(composer *mailer.Composer, sender mailer.Sender, logger *slog.Logger) *ConsumerHandler {
	return &ConsumerHandler{composer: composer, sender: sender, logger: logger}
}

// Handle processes an incoming event based on its type. Unknown types are
// logged and acknowledged.
func (h *ConsumerHandler) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicOrderPaid:
		return h.handleOrderPaid(ctx, event)
	default:
		h.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

func (h *ConsumerHandler) handleOrderPaid(ctx context.Context, event *pkgkafka.Event) error {
	var data OrderData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("decode order.paid payload: %w", err)
	}
	if data.PayerEmail == "" {
		h.logger.WarnContext(ctx, "order.paid without payer email, skipping",
			slog.String("order_id", data.OrderID),
		)
		return nil
	}

	msg, err := h.composer.OrderConfirmation(data.Order())
	if err != nil {
		return fmt.Errorf("compose order confirmation: %w", err)
	}
	if err := h.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send order confirmation via %s: %w", h.sender.Name(), err)
	}

	h.logger.InfoContext(ctx, "order confirmation sent",
		slog.String("order_id", data.OrderID),
		slog.String("event_id", event.EventID),
	)
	return nil
}

// NewConsumers creates one consumer per subscribed topic. Handlers are
// wrapped so a redelivered event does not send a second mail.
func NewConsumers(brokers []string, handler *ConsumerHandler, store pkgkafka.IdempotencyStore, dlq *pkgkafka.DLQProducer, logger *slog.Logger) []*pkgkafka.Consumer {
	topics := []string{TopicOrderPaid}
	handle := pkgkafka.IdempotentHandler(store, handler.Handle, logger)

	consumers := make([]*pkgkafka.Consumer, 0, len(topics))
	for _, topic := range topics {
		cfg := pkgkafka.ConsumerConfig{
			Brokers:  brokers,
			GroupID:  ConsumerGroupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}
		consumers = append(consumers, pkgkafka.NewConsumer(cfg, handle, dlq, logger))
	}
	return consumers
}
