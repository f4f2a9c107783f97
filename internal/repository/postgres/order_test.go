package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/database"
	apperrors "github.com/Rodrigo-Schwindt/Backend-Render/pkg/errors"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"
)

func newOrderTestFixture(t *testing.T) (*OrderRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewOrderRepository(mock), mock
}

func sampleOrder() *domain.Order {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Order{
		ID:            "o1",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		PayerEmail:    "ana@example.com",
		TotalAmount:   money.FromMajor(200),
		Currency:      domain.DefaultCurrency,
		Items: []domain.ValidatedCartLine{{
			ProductID: "p1", Title: "Zapatilla Runner", Price: money.FromMajor(100),
			Quantity: 2, Size: "42", Color: "Negro", Subtotal: money.FromMajor(200),
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderRepository_Create(t *testing.T) {
	repo, mock := newOrderTestFixture(t)
	defer mock.Close()

	o := sampleOrder()
	items, err := json.Marshal(o.Items)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO orders").
		WithArgs("o1", (*string)(nil), "pending", "pending", (*string)(nil), (*string)(nil),
			"ana@example.com", int64(20000), "ARS", items, o.CreatedAt, o.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByID(t *testing.T) {
	repo, mock := newOrderTestFixture(t)
	defer mock.Close()

	o := sampleOrder()
	items, err := json.Marshal(o.Items)
	require.NoError(t, err)

	mock.ExpectQuery("FROM orders WHERE id").
		WithArgs("o1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "status", "payment_status", "gateway_payment_id", "preference_id",
			"payer_email", "total_amount", "currency", "items", "created_at", "updated_at",
		}).AddRow("o1", strPtr("u1"), "pending", "pending", (*string)(nil), strPtr("pref-1"),
			"ana@example.com", int64(20000), "ARS", items, o.CreatedAt, o.UpdatedAt))

	got, err := repo.GetByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, money.FromMajor(200), got.TotalAmount)
	require.NotNil(t, got.UserID)
	assert.Equal(t, "u1", *got.UserID)
	assert.Equal(t, "pref-1", *got.PreferenceID)
	assert.Nil(t, got.GatewayPaymentID)
	assert.Equal(t, o.Items, got.Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newOrderTestFixture(t)
	defer mock.Close()

	mock.ExpectQuery("FROM orders WHERE id").WithArgs("o404").WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "o404")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestOrderRepository_SetPreference(t *testing.T) {
	repo, mock := newOrderTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE orders SET preference_id").
		WithArgs("o1", "pref-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.SetPreference(context.Background(), "o1", "pref-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdatePayment_FinalOrderConflicts(t *testing.T) {
	repo, mock := newOrderTestFixture(t)
	defer mock.Close()

	mock.ExpectExec("UPDATE orders").
		WithArgs("o1", "failed", "rejected", "pay-9", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdatePayment(context.Background(), "o1", "failed", "rejected", "pay-9")
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "ORDER_FINAL", appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Fulfill_DecrementsAndMarksPaid(t *testing.T) {
	repo, mock := newOrderTestFixture(t)
	defer mock.Close()

	adjustments := []domain.StockAdjustment{
		{ProductID: "p1", Color: "Azul Marino", Size: "42", Quantity: 2},
		{ProductID: "p2", Color: "Negro", Size: "M", Quantity: 1},
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM orders").
		WithArgs("o1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("pending"))
	mock.ExpectExec("UPDATE variant_sizes s").
		WithArgs("p1", "azul-marino", "42", 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE variant_sizes s").
		WithArgs("p2", "negro", "M", 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE orders").
		WithArgs("o1", "paid", "approved", "pay-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Fulfill(context.Background(), "o1", "pay-1", adjustments))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Fulfill_ShortfallRollsBack(t *testing.T) {
	repo, mock := newOrderTestFixture(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM orders").
		WithArgs("o1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("pending"))
	mock.ExpectExec("UPDATE variant_sizes s").
		WithArgs("p1", "negro", "43", 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.Fulfill(context.Background(), "o1", "pay-1", []domain.StockAdjustment{
		{ProductID: "p1", Color: "Negro", Size: "43", Quantity: 1},
	})
	assert.True(t, errors.Is(err, apperrors.ErrInsufficientStock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Fulfill_AlreadyPaid(t *testing.T) {
	repo, mock := newOrderTestFixture(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM orders").
		WithArgs("o1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("paid"))
	mock.ExpectRollback()

	err := repo.Fulfill(context.Background(), "o1", "pay-1", nil)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "ORDER_FINAL", appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
