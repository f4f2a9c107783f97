package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/event"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/gateway"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/repository"
	apperrors "github.com/Rodrigo-Schwindt/Backend-Render/pkg/errors"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"
)

// Webhook topics sent by the gateway.
const (
	WebhookTopicPayment       = "payment"
	WebhookTopicMerchantOrder = "merchant_order"
)

// WebhookPath is where the gateway posts notifications.
const WebhookPath = "/api/v1/payments/webhook"

const (
	defaultDedupTTL       = 24 * time.Hour
	defaultWebhookTimeout = 30 * time.Second
	paymentStatusError    = "gateway_error"
)

// PaymentConfig holds the URLs and limits of the payment flow.
type PaymentConfig struct {
	BackendURL     string
	FrontendURL    string
	DedupTTL       time.Duration
	WebhookTimeout time.Duration
}

// PaymentService creates checkouts and charges through the gateway and
// fulfills orders when payments are approved.
type PaymentService struct {
	reconciler *Reconciler
	orders     repository.OrderRepository
	gateway    gateway.Gateway
	dedup      repository.WebhookDeduplicator
	producer   *event.Producer
	cfg        PaymentConfig
	logger     *slog.Logger

	inflight sync.WaitGroup
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	reconciler *Reconciler,
	orders repository.OrderRepository,
	gw gateway.Gateway,
	dedup repository.WebhookDeduplicator,
	producer *event.Producer,
	cfg PaymentConfig,
	logger *slog.Logger,
) *PaymentService {
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = defaultDedupTTL
	}
	if cfg.WebhookTimeout <= 0 {
		cfg.WebhookTimeout = defaultWebhookTimeout
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	return &PaymentService{
		reconciler: reconciler,
		orders:     orders,
		gateway:    gw,
		dedup:      dedup,
		producer:   producer,
		cfg:        cfg,
		logger:     logger,
	}
}

// PreferenceInput holds the parameters for a hosted checkout.
type PreferenceInput struct {
	Items         []domain.CartLineRequest
	ClaimedAmount money.Amount
	Payer         domain.Payer
	UserID        string
}

// ChargeInput holds the parameters for a direct card charge.
type ChargeInput struct {
	Items           []domain.CartLineRequest
	ClaimedAmount   money.Amount
	Token           string
	PaymentMethodID string
	Installments    int
	IssuerID        string
	Payer           domain.Payer
	UserID          string
}

// CreatePreference reconciles the cart, stores a pending order and creates a
// hosted checkout whose external reference is the order id.
func (s *PaymentService) CreatePreference(ctx context.Context, input *PreferenceInput) (*domain.ChargeResult, error) {
	return s.reconciler.ReconcileAndCharge(ctx, input.Items, input.ClaimedAmount,
		func(ctx context.Context, total money.Amount, items []domain.ValidatedCartLine) (*domain.ChargeResult, error) {
			order, err := s.createOrder(ctx, total, items, input.Payer.Email, input.UserID)
			if err != nil {
				return nil, err
			}

			pref, err := s.gateway.CreatePreference(ctx, &domain.PreferenceRequest{
				Items:             items,
				Payer:             input.Payer,
				BackURLs:          s.backURLs(),
				NotificationURL:   s.notificationURL(),
				ExternalReference: order.ID,
				Currency:          order.Currency,
			})
			if err != nil {
				s.markFailed(ctx, order.ID)
				return nil, fmt.Errorf("create preference: %w", err)
			}

			if err := s.orders.SetPreference(ctx, order.ID, pref.ID); err != nil {
				return nil, apperrors.Internal(fmt.Errorf("store preference: %w", err))
			}

			s.logger.InfoContext(ctx, "checkout preference created",
				slog.String("order_id", order.ID),
				slog.String("preference_id", pref.ID),
				slog.String("amount", total.String()),
			)
			return &domain.ChargeResult{
				PreferenceID:      pref.ID,
				InitPoint:         pref.InitPoint,
				OrderID:           order.ID,
				ExternalReference: order.ID,
			}, nil
		})
}

// Charge reconciles the cart, stores a pending order and charges the card
// token with the order id as idempotency key. An approved charge fulfills
// the order immediately.
func (s *PaymentService) Charge(ctx context.Context, input *ChargeInput) (*domain.ChargeResult, error) {
	if strings.TrimSpace(input.Token) == "" {
		return nil, apperrors.InvalidInput("card token is required")
	}

	return s.reconciler.ReconcileAndCharge(ctx, input.Items, input.ClaimedAmount,
		func(ctx context.Context, total money.Amount, items []domain.ValidatedCartLine) (*domain.ChargeResult, error) {
			order, err := s.createOrder(ctx, total, items, input.Payer.Email, input.UserID)
			if err != nil {
				return nil, err
			}

			payment, err := s.gateway.CreateCharge(ctx, &domain.ChargeRequest{
				Amount:            total,
				Token:             input.Token,
				PaymentMethodID:   input.PaymentMethodID,
				Installments:      input.Installments,
				IssuerID:          input.IssuerID,
				Payer:             input.Payer,
				Description:       chargeDescription(items),
				ExternalReference: order.ID,
				NotificationURL:   s.notificationURL(),
				IdempotencyKey:    order.ID,
			})
			if err != nil {
				s.markFailed(ctx, order.ID)
				return nil, fmt.Errorf("create charge: %w", err)
			}

			s.logger.InfoContext(ctx, "card charged",
				slog.String("order_id", order.ID),
				slog.String("payment_id", payment.ID),
				slog.String("status", payment.Status),
			)

			if err := s.applyPayment(ctx, order, payment); err != nil {
				s.logger.ErrorContext(ctx, "failed to record charge result",
					slog.String("order_id", order.ID),
					slog.String("payment_id", payment.ID),
					slog.String("error", err.Error()),
				)
			}

			return &domain.ChargeResult{
				ID:                payment.ID,
				Status:            payment.Status,
				StatusDetail:      payment.StatusDetail,
				ExternalReference: payment.ExternalReference,
				OrderID:           order.ID,
			}, nil
		})
}

// DispatchWebhook processes a notification in the background on a context
// detached from the request, bounded by the webhook timeout.
func (s *PaymentService) DispatchWebhook(ctx context.Context, topic, resourceID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.WebhookTimeout)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()

		if err := s.HandleWebhook(ctx, topic, resourceID); err != nil {
			s.logger.ErrorContext(ctx, "webhook processing failed",
				slog.String("topic", topic),
				slog.String("resource_id", resourceID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Wait blocks until every dispatched webhook has finished.
func (s *PaymentService) Wait() {
	s.inflight.Wait()
}

// HandleWebhook fetches the notified payment and applies it to its order.
// Only payment notifications are processed. A (payment, status) pair is
// handled once; a failed attempt is forgotten so the gateway can retry.
func (s *PaymentService) HandleWebhook(ctx context.Context, topic, resourceID string) error {
	if topic != WebhookTopicPayment {
		s.logger.DebugContext(ctx, "ignoring webhook topic", slog.String("topic", topic))
		return nil
	}
	if strings.TrimSpace(resourceID) == "" {
		return apperrors.InvalidInput("payment id is required")
	}

	payment, err := s.gateway.GetPayment(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("get payment %s: %w", resourceID, err)
	}

	first, err := s.dedup.FirstSeen(ctx, payment.ID, payment.Status, s.cfg.DedupTTL)
	if err != nil {
		s.logger.WarnContext(ctx, "webhook dedup unavailable, relying on order state",
			slog.String("payment_id", payment.ID),
			slog.String("error", err.Error()),
		)
		first = true
	}
	if !first {
		s.logger.InfoContext(ctx, "duplicate webhook ignored",
			slog.String("payment_id", payment.ID),
			slog.String("status", payment.Status),
		)
		return nil
	}

	if err := s.applyWebhookPayment(ctx, payment); err != nil {
		if ferr := s.dedup.Forget(ctx, payment.ID, payment.Status); ferr != nil {
			s.logger.WarnContext(ctx, "failed to forget webhook",
				slog.String("payment_id", payment.ID),
				slog.String("error", ferr.Error()),
			)
		}
		return err
	}
	return nil
}

// GetOrder retrieves an order by its ID.
func (s *PaymentService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func (s *PaymentService) applyWebhookPayment(ctx context.Context, payment *domain.GatewayPayment) error {
	if payment.ExternalReference == "" {
		s.logger.WarnContext(ctx, "payment has no external reference", slog.String("payment_id", payment.ID))
		return nil
	}

	order, err := s.orders.GetByID(ctx, payment.ExternalReference)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "payment references an unknown order",
				slog.String("payment_id", payment.ID),
				slog.String("order_id", payment.ExternalReference),
			)
			return nil
		}
		return fmt.Errorf("load order: %w", err)
	}
	return s.applyPayment(ctx, order, payment)
}

// applyPayment moves order according to the gateway status. Final orders are
// left untouched, so an approved payment is fulfilled at most once.
func (s *PaymentService) applyPayment(ctx context.Context, order *domain.Order, payment *domain.GatewayPayment) error {
	if order.IsFinal() {
		s.logger.InfoContext(ctx, "order already final, payment ignored",
			slog.String("order_id", order.ID),
			slog.String("order_status", order.Status),
			slog.String("payment_id", payment.ID),
			slog.String("payment_status", payment.Status),
		)
		return nil
	}

	switch payment.Status {
	case domain.PaymentStatusApproved:
		if payment.Amount != order.TotalAmount {
			s.logger.ErrorContext(ctx, "paid amount does not match order total",
				slog.String("order_id", order.ID),
				slog.String("payment_id", payment.ID),
				slog.String("paid_amount", payment.Amount.String()),
				slog.String("order_amount", order.TotalAmount.String()),
			)
			return s.updatePayment(ctx, order, domain.OrderStatusFailed, payment)
		}
		return s.fulfill(ctx, order, payment)

	case domain.PaymentStatusRejected, domain.PaymentStatusCancelled,
		domain.PaymentStatusRefunded, domain.PaymentStatusChargedBack:
		if err := s.updatePayment(ctx, order, domain.OrderStatusCancelled, payment); err != nil {
			return err
		}
		if err := s.producer.PublishOrderCancelled(ctx, order, payment.StatusDetail); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish order.cancelled event",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil

	default:
		return s.updatePayment(ctx, order, domain.OrderStatusPending, payment)
	}
}

func (s *PaymentService) fulfill(ctx context.Context, order *domain.Order, payment *domain.GatewayPayment) error {
	err := s.orders.Fulfill(ctx, order.ID, payment.ID, order.Adjustments())
	switch {
	case err == nil:
		order.Status, order.PaymentStatus = domain.OrderStatusPaid, payment.Status
		order.GatewayPaymentID = &payment.ID

		s.logger.InfoContext(ctx, "order paid",
			slog.String("order_id", order.ID),
			slog.String("payment_id", payment.ID),
			slog.String("amount", order.TotalAmount.String()),
		)
		if err := s.producer.PublishOrderPaid(ctx, order); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish order.paid event",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil

	case errors.Is(err, apperrors.ErrInsufficientStock):
		s.logger.ErrorContext(ctx, "approved payment could not be fulfilled",
			slog.String("order_id", order.ID),
			slog.String("payment_id", payment.ID),
			slog.String("error", err.Error()),
		)
		if uerr := s.updatePayment(ctx, order, domain.OrderStatusStockConflict, payment); uerr != nil {
			return uerr
		}
		if perr := s.producer.PublishOrderStockConflict(ctx, order, err.Error()); perr != nil {
			s.logger.ErrorContext(ctx, "failed to publish order.stock_conflict event",
				slog.String("order_id", order.ID),
				slog.String("error", perr.Error()),
			)
		}
		return nil

	case errors.Is(err, apperrors.ErrConflict):
		s.logger.InfoContext(ctx, "order finalized concurrently",
			slog.String("order_id", order.ID),
			slog.String("payment_id", payment.ID),
		)
		return nil

	default:
		return fmt.Errorf("fulfill order %s: %w", order.ID, err)
	}
}

func (s *PaymentService) updatePayment(ctx context.Context, order *domain.Order, status string, payment *domain.GatewayPayment) error {
	err := s.orders.UpdatePayment(ctx, order.ID, status, payment.Status, payment.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil
		}
		return fmt.Errorf("update order %s: %w", order.ID, err)
	}
	order.Status, order.PaymentStatus = status, payment.Status
	order.GatewayPaymentID = &payment.ID

	s.logger.InfoContext(ctx, "order payment updated",
		slog.String("order_id", order.ID),
		slog.String("status", status),
		slog.String("payment_status", payment.Status),
	)
	return nil
}

func (s *PaymentService) createOrder(ctx context.Context, total money.Amount, items []domain.ValidatedCartLine, email, userID string) (*domain.Order, error) {
	now := time.Now().UTC()
	order := &domain.Order{
		ID:            uuid.New().String(),
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		PayerEmail:    strings.TrimSpace(email),
		TotalAmount:   total,
		Currency:      domain.DefaultCurrency,
		Items:         items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if userID != "" {
		order.UserID = &userID
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("create order: %w", err))
	}
	if err := s.producer.PublishOrderCreated(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
	return order, nil
}

func (s *PaymentService) markFailed(ctx context.Context, orderID string) {
	if err := s.orders.UpdatePayment(ctx, orderID, domain.OrderStatusFailed, paymentStatusError, ""); err != nil {
		s.logger.WarnContext(ctx, "failed to mark order as failed",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *PaymentService) notificationURL() string {
	if s.cfg.BackendURL == "" {
		return ""
	}
	return s.cfg.BackendURL + WebhookPath
}

func (s *PaymentService) backURLs() domain.BackURLs {
	if s.cfg.FrontendURL == "" {
		return domain.BackURLs{}
	}
	return domain.BackURLs{
		Success: s.cfg.FrontendURL + "/checkout/success",
		Failure: s.cfg.FrontendURL + "/checkout/failure",
		Pending: s.cfg.FrontendURL + "/checkout/pending",
	}
}

func chargeDescription(items []domain.ValidatedCartLine) string {
	if len(items) == 1 {
		return items[0].Title
	}
	return fmt.Sprintf("%s y %d productos más", items[0].Title, len(items)-1)
}
