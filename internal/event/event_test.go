package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/mailer"
	mailmock "github.com/Rodrigo-Schwindt/Backend-Render/internal/mailer/mock"
	pkgkafka "github.com/Rodrigo-Schwindt/Backend-Render/pkg/kafka"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/logger"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"
)

type published struct {
	topic string
	event *pkgkafka.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, event *pkgkafka.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, published{topic: topic, event: event})
	return nil
}

func paidOrder() *domain.Order {
	paymentID := "mp-77"
	return &domain.Order{
		ID:               "o-1",
		Status:           domain.OrderStatusPaid,
		PaymentStatus:    domain.PaymentStatusApproved,
		GatewayPaymentID: &paymentID,
		PayerEmail:       "ana@example.com",
		TotalAmount:      money.FromMajor(200),
		Currency:         domain.DefaultCurrency,
		Items: []domain.ValidatedCartLine{{
			ProductID: "p1", Title: "Zapatilla Runner", Price: money.FromMajor(100),
			Quantity: 2, Size: "42", Color: "Negro", Subtotal: money.FromMajor(200),
		}},
	}
}

func TestProducer_PublishOrderPaid(t *testing.T) {
	rec := &recordingPublisher{}
	p := NewProducer(rec, logger.Discard())
	ctx := logger.WithCorrelationID(context.Background(), "req-9")

	require.NoError(t, p.PublishOrderPaid(ctx, paidOrder()))

	require.Len(t, rec.events, 1)
	got := rec.events[0]
	assert.Equal(t, "storefront.order.paid", got.topic)
	assert.Equal(t, TopicOrderPaid, got.event.EventType)
	assert.Equal(t, "o-1", got.event.AggregateID)
	assert.Equal(t, AggregateOrder, got.event.AggregateType)
	assert.Equal(t, Source, got.event.Source)
	assert.Equal(t, "req-9", got.event.CorrelationID)

	var data OrderData
	require.NoError(t, got.event.UnmarshalData(&data))
	assert.Equal(t, "mp-77", data.GatewayPaymentID)
	assert.Equal(t, money.FromMajor(200), data.TotalAmount)
	assert.Equal(t, paidOrder().Items, data.Order().Items)
}

func TestProducer_PublishProductCreated(t *testing.T) {
	rec := &recordingPublisher{}
	p := NewProducer(rec, logger.Discard())
	product := &domain.Product{
		ID: "p1", Category: domain.CategoryFootwear, Title: "Runner", Price: money.FromMajor(100),
		Variants: []domain.Variant{{Color: "Negro"}, {Color: "Blanco"}},
	}

	require.NoError(t, p.PublishProductCreated(context.Background(), product))

	var data ProductData
	require.NoError(t, rec.events[0].event.UnmarshalData(&data))
	assert.Equal(t, TopicProductCreated, rec.events[0].topic)
	assert.Equal(t, []string{"Negro", "Blanco"}, data.Colors)
}

func TestProducer_PublishError(t *testing.T) {
	p := NewProducer(&recordingPublisher{err: errors.New("broker down")}, logger.Discard())

	err := p.PublishProductDeleted(context.Background(), "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish storefront.catalog.product.deleted event")
}

func TestProducer_Noop(t *testing.T) {
	p := NewProducer(NoopPublisher{}, logger.Discard())
	assert.NoError(t, p.PublishUserRegistered(context.Background(), &domain.User{ID: "u1"}))
}

func orderPaidEvent(t *testing.T, order *domain.Order) *pkgkafka.Event {
	t.Helper()
	ev, err := pkgkafka.NewEvent(TopicOrderPaid, order.ID, AggregateOrder, Source, orderData(order, ""))
	require.NoError(t, err)
	return ev
}

func TestConsumerHandler_OrderPaidSendsMail(t *testing.T) {
	sender := mailmock.New(logger.Discard())
	h := NewConsumerHandler(mailer.NewComposer("https://shop.example.com"), sender, logger.Discard())

	require.NoError(t, h.Handle(context.Background(), orderPaidEvent(t, paidOrder())))

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ana@example.com", sent[0].To)
	assert.Contains(t, sent[0].HTML, "Zapatilla Runner")
}

func TestConsumerHandler_SendFailureIsReturned(t *testing.T) {
	sender := mailmock.New(logger.Discard())
	sender.FailWith(errors.New("smtp 421"))
	h := NewConsumerHandler(mailer.NewComposer("https://shop.example.com"), sender, logger.Discard())

	err := h.Handle(context.Background(), orderPaidEvent(t, paidOrder()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send order confirmation via mock")
}

func TestConsumerHandler_SkipsWithoutEmail(t *testing.T) {
	sender := mailmock.New(logger.Discard())
	h := NewConsumerHandler(mailer.NewComposer("https://shop.example.com"), sender, logger.Discard())
	order := paidOrder()
	order.PayerEmail = ""

	require.NoError(t, h.Handle(context.Background(), orderPaidEvent(t, order)))
	assert.Empty(t, sender.Sent())
}

func TestConsumerHandler_UnknownEventAcknowledged(t *testing.T) {
	h := NewConsumerHandler(mailer.NewComposer(""), mailmock.New(logger.Discard()), logger.Discard())
	ev, err := pkgkafka.NewEvent("storefront.something.else", "x", "x", Source, map[string]string{})
	require.NoError(t, err)

	assert.NoError(t, h.Handle(context.Background(), ev))
}

func TestConsumerHandler_RedeliveryMailsOnce(t *testing.T) {
	sender := mailmock.New(logger.Discard())
	h := NewConsumerHandler(mailer.NewComposer("https://shop.example.com"), sender, logger.Discard())
	handle := pkgkafka.IdempotentHandler(pkgkafka.NewMemoryIdempotencyStore(time.Hour), h.Handle, logger.Discard())
	ev := orderPaidEvent(t, paidOrder())

	require.NoError(t, handle(context.Background(), ev))
	require.NoError(t, handle(context.Background(), ev))
	assert.Len(t, sender.Sent(), 1)
}
