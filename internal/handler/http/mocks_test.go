package http

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/pagination"
)

// =============================================================================
// Mock ProductRepository
// =============================================================================

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) List(ctx context.Context, category domain.Category, page pagination.Params) ([]domain.Product, int, error) {
	args := m.Called(ctx, category, page)
	products, _ := args.Get(0).([]domain.Product)
	return products, args.Int(1), args.Error(2)
}

func (m *mockProductRepo) Filter(ctx context.Context, filter domain.ProductFilter, page pagination.Params) ([]domain.Product, int, error) {
	args := m.Called(ctx, filter, page)
	products, _ := args.Get(0).([]domain.Product)
	return products, args.Int(1), args.Error(2)
}

func (m *mockProductRepo) TypesAndBrands(ctx context.Context, category domain.Category) (*domain.TypesAndBrands, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TypesAndBrands), args.Error(1)
}

func (m *mockProductRepo) Create(ctx context.Context, product *domain.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockProductRepo) Update(ctx context.Context, product *domain.Product, replaceVariants bool) error {
	return m.Called(ctx, product, replaceVariants).Error(0)
}

func (m *mockProductRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockProductRepo) AddVariant(ctx context.Context, productID string, variant *domain.Variant) error {
	return m.Called(ctx, productID, variant).Error(0)
}

func (m *mockProductRepo) UpdateVariant(ctx context.Context, variant *domain.Variant, sizes []domain.Size) error {
	return m.Called(ctx, variant, sizes).Error(0)
}

func (m *mockProductRepo) DeleteVariant(ctx context.Context, variantID string) error {
	return m.Called(ctx, variantID).Error(0)
}

func (m *mockProductRepo) IncrementStock(ctx context.Context, sizeID string, qty int) (int, error) {
	args := m.Called(ctx, sizeID, qty)
	return args.Int(0), args.Error(1)
}

func (m *mockProductRepo) DecrementStock(ctx context.Context, sizeID string, qty int) (int, error) {
	args := m.Called(ctx, sizeID, qty)
	return args.Int(0), args.Error(1)
}

// =============================================================================
// Mock OrderRepository
// =============================================================================

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepo) SetPreference(ctx context.Context, id, preferenceID string) error {
	return m.Called(ctx, id, preferenceID).Error(0)
}

func (m *mockOrderRepo) UpdatePayment(ctx context.Context, id, status, paymentStatus, gatewayPaymentID string) error {
	return m.Called(ctx, id, status, paymentStatus, gatewayPaymentID).Error(0)
}

func (m *mockOrderRepo) Fulfill(ctx context.Context, id, gatewayPaymentID string, adjustments []domain.StockAdjustment) error {
	return m.Called(ctx, id, gatewayPaymentID, adjustments).Error(0)
}

// =============================================================================
// Mock UserRepository
// =============================================================================

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) user(args mock.Arguments) (*domain.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return m.user(m.Called(ctx, id))
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.user(m.Called(ctx, email))
}

func (m *mockUserRepo) GetByGoogleID(ctx context.Context, googleID string) (*domain.User, error) {
	return m.user(m.Called(ctx, googleID))
}

func (m *mockUserRepo) GetByVerificationToken(ctx context.Context, tokenHash string) (*domain.User, error) {
	return m.user(m.Called(ctx, tokenHash))
}

func (m *mockUserRepo) GetByResetToken(ctx context.Context, tokenHash string) (*domain.User, error) {
	return m.user(m.Called(ctx, tokenHash))
}

func (m *mockUserRepo) Update(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) List(ctx context.Context, page pagination.Params) ([]domain.User, int, error) {
	args := m.Called(ctx, page)
	users, _ := args.Get(0).([]domain.User)
	return users, args.Int(1), args.Error(2)
}

// =============================================================================
// Mock WebhookDeduplicator
// =============================================================================

type mockDedup struct {
	mock.Mock
}

func (m *mockDedup) FirstSeen(ctx context.Context, paymentID, status string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, paymentID, status, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockDedup) Forget(ctx context.Context, paymentID, status string) error {
	return m.Called(ctx, paymentID, status).Error(0)
}
