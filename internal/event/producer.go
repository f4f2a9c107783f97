package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	pkgkafka "github.com/Rodrigo-Schwindt/Backend-Render/pkg/kafka"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/logger"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"
)

// Kafka topics published by the storefront.
var (
	TopicProductCreated = pkgkafka.Topic("catalog", "product.created")
	TopicProductUpdated = pkgkafka.Topic("catalog", "product.updated")
	TopicProductDeleted = pkgkafka.Topic("catalog", "product.deleted")
	TopicStockAdjusted  = pkgkafka.Topic("catalog", "stock.adjusted")

	TopicOrderCreated       = pkgkafka.Topic("order", "created")
	TopicOrderPaid          = pkgkafka.Topic("order", "paid")
	TopicOrderCancelled     = pkgkafka.Topic("order", "cancelled")
	TopicOrderStockConflict = pkgkafka.Topic("order", "stock_conflict")

	TopicUserRegistered = pkgkafka.Topic("user", "registered")
)

// Aggregate types.
const (
	AggregateProduct = "product"
	AggregateOrder   = "order"
	AggregateUser    = "user"
)

// Source identifies events emitted by this service.
const Source = "storefront-api"

// Publisher delivers an event to a topic. *pkgkafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// NoopPublisher drops every event. It is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, *pkgkafka.Event) error { return nil }

// ProductData is the payload of catalog.product.* events.
type ProductData struct {
	ID       string          `json:"id"`
	Category domain.Category `json:"category"`
	Title    string          `json:"title"`
	Price    money.Amount    `json:"price"`
	Brand    string          `json:"brand"`
	Colors   []string        `json:"colors"`
}

// StockAdjustedData is the payload of a catalog.stock.adjusted event.
type StockAdjustedData struct {
	ProductID string `json:"product_id"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Delta     int    `json:"delta"`
	Stock     int    `json:"stock"`
	Reason    string `json:"reason"`
}

// OrderData is a snapshot of an order, enough to render a confirmation mail.
type OrderData struct {
	OrderID          string                     `json:"order_id"`
	UserID           string                     `json:"user_id,omitempty"`
	Status           string                     `json:"status"`
	PaymentStatus    string                     `json:"payment_status"`
	GatewayPaymentID string                     `json:"gateway_payment_id,omitempty"`
	PayerEmail       string                     `json:"payer_email"`
	TotalAmount      money.Amount               `json:"total_amount"`
	Currency         string                     `json:"currency"`
	Items            []domain.ValidatedCartLine `json:"items"`
	Reason           string                     `json:"reason,omitempty"`
}

// Order rebuilds the order the snapshot was taken from.
func (d *OrderData) Order() *domain.Order {
	o := &domain.Order{
		ID:            d.OrderID,
		Status:        d.Status,
		PaymentStatus: d.PaymentStatus,
		PayerEmail:    d.PayerEmail,
		TotalAmount:   d.TotalAmount,
		Currency:      d.Currency,
		Items:         d.Items,
	}
	if d.UserID != "" {
		o.UserID = &d.UserID
	}
	if d.GatewayPaymentID != "" {
		o.GatewayPaymentID = &d.GatewayPaymentID
	}
	return o
}

// UserRegisteredData is the payload of a user.registered event.
type UserRegisteredData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Google bool   `json:"google"`
}

// Producer publishes storefront domain events.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	return &Producer{publisher: publisher, logger: logger}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
		slog.String("event_id", event.EventID),
	)
	return nil
}

func productData(p *domain.Product) ProductData {
	colors := make([]string, 0, len(p.Variants))
	for _, v := range p.Variants {
		colors = append(colors, v.Color)
	}
	return ProductData{
		ID:       p.ID,
		Category: p.Category,
		Title:    p.Title,
		Price:    p.Price,
		Brand:    p.Brand,
		Colors:   colors,
	}
}

func (p *Producer) PublishProductCreated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductCreated, product.ID, AggregateProduct, productData(product))
}

func (p *Producer) PublishProductUpdated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductUpdated, product.ID, AggregateProduct, productData(product))
}

func (p *Producer) PublishProductDeleted(ctx context.Context, productID string) error {
	return p.publish(ctx, TopicProductDeleted, productID, AggregateProduct, ProductData{ID: productID})
}

// PublishStockAdjusted reports a manual or fulfillment stock change.
func (p *Producer) PublishStockAdjusted(ctx context.Context, data StockAdjustedData) error {
	return p.publish(ctx, TopicStockAdjusted, data.ProductID, AggregateProduct, data)
}

func orderData(o *domain.Order, reason string) OrderData {
	d := OrderData{
		OrderID:       o.ID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		PayerEmail:    o.PayerEmail,
		TotalAmount:   o.TotalAmount,
		Currency:      o.Currency,
		Items:         o.Items,
		Reason:        reason,
	}
	if o.UserID != nil {
		d.UserID = *o.UserID
	}
	if o.GatewayPaymentID != nil {
		d.GatewayPaymentID = *o.GatewayPaymentID
	}
	return d
}

func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, TopicOrderCreated, order.ID, AggregateOrder, orderData(order, ""))
}

// PublishOrderPaid is consumed by the mail notifier.
func (p *Producer) PublishOrderPaid(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, TopicOrderPaid, order.ID, AggregateOrder, orderData(order, ""))
}

func (p *Producer) PublishOrderCancelled(ctx context.Context, order *domain.Order, reason string) error {
	return p.publish(ctx, TopicOrderCancelled, order.ID, AggregateOrder, orderData(order, reason))
}

func (p *Producer) PublishOrderStockConflict(ctx context.Context, order *domain.Order, reason string) error {
	return p.publish(ctx, TopicOrderStockConflict, order.ID, AggregateOrder, orderData(order, reason))
}

func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, TopicUserRegistered, user.ID, AggregateUser, UserRegisteredData{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Google: user.GoogleID != nil,
	})
}
