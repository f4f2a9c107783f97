package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	apperrors "github.com/Rodrigo-Schwindt/Backend-Render/pkg/errors"
)

// RejectToken is a card token the mock always declines.
const RejectToken = "reject"

// Gateway is an in-memory payment gateway for development and tests.
// Charges are approved unless the card token is RejectToken; idempotency
// keys replay the first payment.
type Gateway struct {
	mu          sync.Mutex
	payments    map[string]*domain.GatewayPayment
	byKey       map[string]string
	preferences map[string]*domain.PreferenceRequest
}

// New creates a new mock gateway.
func New() *Gateway {
	return &Gateway{
		payments:    make(map[string]*domain.GatewayPayment),
		byKey:       make(map[string]string),
		preferences: make(map[string]*domain.PreferenceRequest),
	}
}

func (g *Gateway) Name() string { return "mock" }

func (g *Gateway) CreatePreference(_ context.Context, req *domain.PreferenceRequest) (*domain.Preference, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := "mock_pref_" + uuid.NewString()
	g.preferences[id] = req
	return &domain.Preference{
		ID:        id,
		InitPoint: "https://mock.checkout.local/pay?pref_id=" + id,
	}, nil
}

func (g *Gateway) CreateCharge(_ context.Context, req *domain.ChargeRequest) (*domain.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id, ok := g.byKey[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		p := *g.payments[id]
		return &p, nil
	}

	p := &domain.GatewayPayment{
		ID:                "mock_pay_" + uuid.NewString(),
		Status:            domain.PaymentStatusApproved,
		StatusDetail:      "accredited",
		ExternalReference: req.ExternalReference,
		Amount:            req.Amount,
	}
	if strings.EqualFold(req.Token, RejectToken) {
		p.Status, p.StatusDetail = domain.PaymentStatusRejected, "cc_rejected_other_reason"
	}
	g.payments[p.ID] = p
	if req.IdempotencyKey != "" {
		g.byKey[req.IdempotencyKey] = p.ID
	}

	out := *p
	return &out, nil
}

func (g *Gateway) GetPayment(_ context.Context, id string) (*domain.GatewayPayment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.payments[id]
	if !ok {
		return nil, apperrors.NotFound("payment", id)
	}
	out := *p
	return &out, nil
}

// SetPayment stores or replaces a payment, e.g. to simulate a webhook for a
// hosted checkout.
func (g *Gateway) SetPayment(p *domain.GatewayPayment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := *p
	g.payments[p.ID] = &cp
}

// Preference returns the request a preference was created from.
func (g *Gateway) Preference(id string) (*domain.PreferenceRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.preferences[id]
	return req, ok
}
