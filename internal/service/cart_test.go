package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/repository/postgres"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/database"
	apperrors "github.com/Rodrigo-Schwindt/Backend-Render/pkg/errors"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/logger"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"
)

// --- Test Helpers ---

func sneaker() *domain.Product {
	p := &domain.Product{
		ID:       "p1",
		Category: domain.CategoryFootwear,
		Title:    "Zapatilla Runner",
		Price:    money.FromMajor(100),
		Variants: []domain.Variant{
			{
				ID:    "v1",
				Color: "Negro",
				Sizes: []domain.Size{
					{ID: "s42", Size: "42", Stock: 5},
					{ID: "s43", Size: "43", Stock: 0},
				},
			},
			{
				ID:    "v2",
				Color: "Azul Marino",
				Sizes: []domain.Size{{ID: "s40", Size: "40", Stock: 1}},
			},
		},
	}
	p.Normalize()
	return p
}

func newTestValidator(repo *mockProductRepo) *CartValidator {
	return NewCartValidator(repo, logger.Discard())
}

func line(productID string, qty int, size, color string) domain.CartLineRequest {
	return domain.CartLineRequest{ProductID: productID, Quantity: qty, Size: size, Color: color}
}

// --- Tests ---

func TestValidateCart_SingleValidLine(t *testing.T) {
	repo := new(mockProductRepo)
	repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)

	result, err := newTestValidator(repo).ValidateCart(context.Background(),
		[]domain.CartLineRequest{line("p1", 2, "42", "negro")})

	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Items, 1)
	assert.Equal(t, domain.ValidatedCartLine{
		ProductID: "p1",
		Title:     "Zapatilla Runner",
		Price:     money.FromMajor(100),
		Quantity:  2,
		Size:      "42",
		Color:     "Negro",
		Subtotal:  money.FromMajor(200),
	}, result.Items[0])
	assert.Equal(t, money.FromMajor(200), result.TotalPrice)
	repo.AssertExpectations(t)
}

func TestValidateCart_EmptyCart(t *testing.T) {
	repo := new(mockProductRepo)
	v := newTestValidator(repo)

	for _, lines := range [][]domain.CartLineRequest{nil, {}} {
		result, err := v.ValidateCart(context.Background(), lines)
		require.NoError(t, err)
		assert.False(t, result.IsValid)
		assert.Empty(t, result.Items)
		assert.Equal(t, money.Amount(0), result.TotalPrice)
		assert.Equal(t, []string{"empty or invalid cart"}, result.Errors)
	}
	repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestValidateCart_LineChecks(t *testing.T) {
	tests := []struct {
		name      string
		line      domain.CartLineRequest
		wantCode  string
		wantMsg   string
		available *int
	}{
		{
			name:     "zero quantity",
			line:     line("p1", 0, "42", "negro"),
			wantCode: domain.ProblemInvalidInput,
			wantMsg:  "item 1: invalid format",
		},
		{
			name:     "missing product id",
			line:     line("", 1, "42", "negro"),
			wantCode: domain.ProblemInvalidInput,
			wantMsg:  "item 1: invalid format",
		},
		{
			name:     "unknown color",
			line:     line("p1", 1, "42", "rojo"),
			wantCode: domain.ProblemNotFound,
			wantMsg:  "color rojo not available for Zapatilla Runner",
		},
		{
			name:     "unknown size",
			line:     line("p1", 1, "44", "negro"),
			wantCode: domain.ProblemNotFound,
			wantMsg:  "size 44 not available for Zapatilla Runner (Negro)",
		},
		{
			name:      "out of stock",
			line:      line("p1", 1, "43", "negro"),
			wantCode:  domain.ProblemInsufficientStock,
			wantMsg:   "insufficient stock for Zapatilla Runner (Negro, 43), available: 0",
			available: intPtr(0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockProductRepo)
			repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil).Maybe()

			result, err := newTestValidator(repo).ValidateCart(context.Background(), []domain.CartLineRequest{tt.line})
			require.NoError(t, err)
			assert.False(t, result.IsValid)
			assert.Empty(t, result.Items)
			assert.Equal(t, []string{tt.wantMsg}, result.Errors)
			require.Len(t, result.Problems, 1)
			assert.Equal(t, 1, result.Problems[0].Line)
			assert.Equal(t, tt.wantCode, result.Problems[0].Code)
			assert.Equal(t, tt.available, result.Problems[0].Available)
		})
	}
}

func TestValidateCart_ProductNotFound(t *testing.T) {
	repo := new(mockProductRepo)
	repo.On("FindByID", mock.Anything, "ghost").Return(nil, apperrors.NotFound("product", "ghost"))

	result, err := newTestValidator(repo).ValidateCart(context.Background(),
		[]domain.CartLineRequest{line("ghost", 1, "42", "negro")})

	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, []string{"product ghost not found"}, result.Errors)
}

// catalogFinder serves known products from memory and everything else from
// the next finder.
type catalogFinder struct {
	known map[string]*domain.Product
	next  ProductFinder
}

func (f catalogFinder) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	if p, ok := f.known[id]; ok {
		return p, nil
	}
	return f.next.FindByID(ctx, id)
}

func TestValidateCart_NonUUIDProductIsLineError(t *testing.T) {
	pool, err := database.NewMockPool()
	require.NoError(t, err)
	defer pool.Close()

	finder := catalogFinder{
		known: map[string]*domain.Product{"p1": sneaker()},
		next:  postgres.NewProductRepository(pool),
	}

	result, err := NewCartValidator(finder, logger.Discard()).ValidateCart(context.Background(), []domain.CartLineRequest{
		line("p1", 2, "42", "negro"),
		line("P9", 1, "42", "negro"),
	})

	require.NoError(t, err)
	assert.False(t, result.IsValid)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "p1", result.Items[0].ProductID)
	assert.Equal(t, money.FromMajor(200), result.TotalPrice)
	assert.Equal(t, []string{"product P9 not found"}, result.Errors)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestValidateCart_ColorAndSizeAreNormalized(t *testing.T) {
	repo := new(mockProductRepo)
	repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)

	result, err := newTestValidator(repo).ValidateCart(context.Background(),
		[]domain.CartLineRequest{line("p1", 1, " 40 ", "AZUL marino")})

	require.NoError(t, err)
	require.True(t, result.IsValid, result.Errors)
	assert.Equal(t, "Azul Marino", result.Items[0].Color)
	assert.Equal(t, "40", result.Items[0].Size)
}

func TestValidateCart_StockBoundary(t *testing.T) {
	repo := new(mockProductRepo)
	repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)
	v := newTestValidator(repo)

	atStock, err := v.ValidateCart(context.Background(), []domain.CartLineRequest{line("p1", 5, "42", "negro")})
	require.NoError(t, err)
	assert.True(t, atStock.IsValid)
	assert.Equal(t, money.FromMajor(500), atStock.TotalPrice)

	overStock, err := v.ValidateCart(context.Background(), []domain.CartLineRequest{line("p1", 6, "42", "negro")})
	require.NoError(t, err)
	assert.False(t, overStock.IsValid)
	assert.Equal(t, []string{"insufficient stock for Zapatilla Runner (Negro, 42), available: 5"}, overStock.Errors)
	assert.Equal(t, intPtr(5), overStock.Problems[0].Available)
}

func TestValidateCart_PartialAccumulation(t *testing.T) {
	repo := new(mockProductRepo)
	repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)
	repo.On("FindByID", mock.Anything, "ghost").Return(nil, apperrors.NotFound("product", "ghost"))

	result, err := newTestValidator(repo).ValidateCart(context.Background(), []domain.CartLineRequest{
		line("p1", 2, "42", "negro"),
		line("ghost", 1, "42", "negro"),
		line("p1", 1, "40", "azul marino"),
		line("p1", -1, "42", "negro"),
	})

	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, money.FromMajor(300), result.TotalPrice)
	assert.Equal(t, []string{"product ghost not found", "item 4: invalid format"}, result.Errors)
	assert.Equal(t, 2, result.Problems[0].Line)
	assert.Equal(t, 4, result.Problems[1].Line)
}

func TestValidateCart_IgnoresClientPrice(t *testing.T) {
	repo := new(mockProductRepo)
	repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)

	var lines []domain.CartLineRequest
	require.NoError(t, json.Unmarshal(
		[]byte(`[{"productId":"p1","quantity":2,"size":42,"color":"negro","price":0.01}]`), &lines))

	result, err := newTestValidator(repo).ValidateCart(context.Background(), lines)
	require.NoError(t, err)
	require.True(t, result.IsValid, result.Errors)
	assert.Equal(t, money.FromMajor(100), result.Items[0].Price)
	assert.Equal(t, money.FromMajor(200), result.TotalPrice)
}

func TestValidateCart_MalformedLineDoesNotStopOthers(t *testing.T) {
	repo := new(mockProductRepo)
	repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)

	var lines []domain.CartLineRequest
	require.NoError(t, json.Unmarshal(
		[]byte(`["oops",{"productId":"p1","quantity":1.5,"size":"42","color":"negro"},{"productId":"p1","quantity":1,"size":"42","color":"negro"}]`), &lines))

	result, err := newTestValidator(repo).ValidateCart(context.Background(), lines)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, []string{"item 1: invalid format", "item 2: invalid format"}, result.Errors)
	assert.Len(t, result.Items, 1)
	assert.Equal(t, money.FromMajor(100), result.TotalPrice)
}

func TestValidateCart_Idempotent(t *testing.T) {
	repo := new(mockProductRepo)
	repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)
	v := newTestValidator(repo)
	lines := []domain.CartLineRequest{line("p1", 2, "42", "negro"), line("p1", 9, "40", "azul marino")}

	first, err := v.ValidateCart(context.Background(), lines)
	require.NoError(t, err)
	second, err := v.ValidateCart(context.Background(), lines)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestValidateCart_RepositoryErrorAborts(t *testing.T) {
	repo := new(mockProductRepo)
	dbErr := errors.New("connection reset")
	repo.On("FindByID", mock.Anything, "p1").Return(nil, dbErr)

	result, err := newTestValidator(repo).ValidateCart(context.Background(),
		[]domain.CartLineRequest{line("p1", 1, "42", "negro")})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, dbErr)
	assert.Contains(t, err.Error(), "validate cart line 1")
}

func intPtr(n int) *int { return &n }
