package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/database"
	apperrors "github.com/Rodrigo-Schwindt/Backend-Render/pkg/errors"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/slug"
)

const orderColumns = `id, user_id, status, payment_status, gateway_payment_id, preference_id,
	payer_email, total_amount, currency, items, created_at, updated_at`

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	db database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(db database.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshal order items: %w", err)
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.db.Exec(ctx, query,
		o.ID, o.UserID, o.Status, o.PaymentStatus, o.GatewayPaymentID, o.PreferenceID,
		o.PayerEmail, int64(o.TotalAmount), o.Currency, items, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by its ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var (
		o     domain.Order
		total int64
		items []byte
	)
	err := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id).Scan(
		&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.GatewayPaymentID, &o.PreferenceID,
		&o.PayerEmail, &total, &o.Currency, &items, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	o.TotalAmount = money.Amount(total)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &o, nil
}

// SetPreference records the hosted-checkout preference of an order.
func (r *OrderRepository) SetPreference(ctx context.Context, id, preferenceID string) error {
	ct, err := r.db.Exec(ctx,
		`UPDATE orders SET preference_id = $2, updated_at = $3 WHERE id = $1`,
		id, preferenceID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set order preference: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}
	return nil
}

// UpdatePayment records the gateway state. Orders already paid or in stock
// conflict are left untouched and reported as an ORDER_FINAL conflict.
func (r *OrderRepository) UpdatePayment(ctx context.Context, id, status, paymentStatus, gatewayPaymentID string) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status = $2, payment_status = $3, gateway_payment_id = COALESCE(NULLIF($4, ''), gateway_payment_id), updated_at = $5
		WHERE id = $1 AND status NOT IN ('paid', 'stock_conflict')`,
		id, status, paymentStatus, gatewayPaymentID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update order payment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.Conflict("ORDER_FINAL", fmt.Sprintf("order %s can no longer change", id))
	}
	return nil
}

// Fulfill locks the order, decrements every line's stock with a
// compare-and-decrement and marks the order paid. Any shortfall rolls the
// whole transaction back.
func (r *OrderRepository) Fulfill(ctx context.Context, id, gatewayPaymentID string, adjustments []domain.StockAdjustment) (err error) {
	ctx, end := database.TraceQuery(ctx, "order.Fulfill", "fulfill order")
	defer func() { end(err) }()

	return database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		var status string
		if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("order", id)
			}
			return fmt.Errorf("lock order: %w", err)
		}
		if status != domain.OrderStatusPending {
			return apperrors.Conflict("ORDER_FINAL", fmt.Sprintf("order %s is already %s", id, status))
		}

		for _, a := range adjustments {
			ct, err := tx.Exec(ctx, `
				UPDATE variant_sizes s
				SET stock = s.stock - $4
				FROM product_variants v
				WHERE s.variant_id = v.id
				  AND v.product_id = $1
				  AND v.color_slug = $2
				  AND lower(s.size) = lower($3)
				  AND s.stock >= $4`,
				a.ProductID, slug.Generate(a.Color), a.Size, a.Quantity,
			)
			if err != nil {
				return fmt.Errorf("decrement stock for %s: %w", a.ProductID, err)
			}
			if ct.RowsAffected() == 0 {
				return apperrors.InsufficientStock(fmt.Sprintf(
					"insufficient stock for product %s (%s, %s)", a.ProductID, a.Color, a.Size))
			}
		}

		_, err := tx.Exec(ctx, `
			UPDATE orders
			SET status = $2, payment_status = $3, gateway_payment_id = $4, updated_at = $5
			WHERE id = $1`,
			id, domain.OrderStatusPaid, domain.PaymentStatusApproved, gatewayPaymentID, time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}
		return nil
	})
}
