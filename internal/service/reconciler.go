package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	apperrors "github.com/Rodrigo-Schwindt/Backend-Render/pkg/errors"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"
)

// ChargeFunc performs the gateway call for an already reconciled total.
type ChargeFunc func(ctx context.Context, total money.Amount, items []domain.ValidatedCartLine) (*domain.ChargeResult, error)

// Reconciler gates every gateway call on a server-side re-validation of the
// cart and an exact comparison with the amount the client claims.
type Reconciler struct {
	validator *CartValidator
	logger    *slog.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(validator *CartValidator, logger *slog.Logger) *Reconciler {
	return &Reconciler{validator: validator, logger: logger}
}

// ReconcileAndCharge validates lines, compares the total with claimed in
// minor units and only then invokes charge. The gateway result is returned
// as is; a gateway error is reported once and never retried here.
func (r *Reconciler) ReconcileAndCharge(ctx context.Context, lines []domain.CartLineRequest, claimed money.Amount, charge ChargeFunc) (*domain.ChargeResult, error) {
	validation, err := r.validator.ValidateCart(ctx, lines)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	if !validation.IsValid {
		return nil, apperrors.InvalidCart(validation.Errors)
	}

	if claimed != validation.TotalPrice {
		r.logger.WarnContext(ctx, "claimed amount does not match cart total",
			slog.String("claimed_amount", claimed.String()),
			slog.String("server_amount", validation.TotalPrice.String()),
			slog.Int("lines", len(validation.Items)),
		)
		return nil, apperrors.AmountTampered()
	}

	result, err := charge(ctx, validation.TotalPrice, validation.Items)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.GatewayFailure(err)
	}
	return result, nil
}
