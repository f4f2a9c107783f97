package gateway

import (
	"context"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
)

// Gateway is a payment gateway integration.
type Gateway interface {
	// Name returns the gateway name (e.g., "mock", "mercadopago").
	Name() string

	// CreatePreference opens a hosted checkout for already priced items.
	CreatePreference(ctx context.Context, req *domain.PreferenceRequest) (*domain.Preference, error)

	// CreateCharge charges a tokenized card. The request's idempotency key
	// makes a replay return the original payment.
	CreateCharge(ctx context.Context, req *domain.ChargeRequest) (*domain.GatewayPayment, error)

	// GetPayment fetches the current state of a payment.
	GetPayment(ctx context.Context, id string) (*domain.GatewayPayment, error)
}
