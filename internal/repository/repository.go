package repository

import (
	"context"
	"time"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/pagination"
)

// ProductRepository defines catalog persistence. Every read returns products
// with their variants and sizes loaded.
type ProductRepository interface {
	// FindByID returns a NotFound AppError when the product does not exist.
	FindByID(ctx context.Context, id string) (*domain.Product, error)

	// List returns one page of a category, newest first, with the total count.
	List(ctx context.Context, category domain.Category, page pagination.Params) ([]domain.Product, int, error)

	// Filter returns one page of products matching filter.
	Filter(ctx context.Context, filter domain.ProductFilter, page pagination.Params) ([]domain.Product, int, error)

	// TypesAndBrands returns the distinct types and brands of a category.
	TypesAndBrands(ctx context.Context, category domain.Category) (*domain.TypesAndBrands, error)

	// Create inserts the product with its variants and sizes.
	Create(ctx context.Context, product *domain.Product) error

	// Update rewrites the product row. When replaceVariants is set the
	// variants and sizes are replaced as well.
	Update(ctx context.Context, product *domain.Product, replaceVariants bool) error

	// Delete removes the product with its variants and sizes.
	Delete(ctx context.Context, id string) error

	// AddVariant inserts one variant with its sizes.
	AddVariant(ctx context.Context, productID string, variant *domain.Variant) error

	// UpdateVariant rewrites the variant row; sizes are replaced when non-nil.
	UpdateVariant(ctx context.Context, variant *domain.Variant, sizes []domain.Size) error

	// DeleteVariant removes a variant and its sizes.
	DeleteVariant(ctx context.Context, variantID string) error

	// IncrementStock adds to the stock of one size.
	IncrementStock(ctx context.Context, sizeID string, qty int) (int, error)

	// DecrementStock subtracts from the stock of one size only when enough
	// stock remains. It returns an InsufficientStock AppError otherwise.
	DecrementStock(ctx context.Context, sizeID string, qty int) (int, error)
}

// OrderRepository defines order persistence.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// SetPreference records the hosted-checkout preference of an order.
	SetPreference(ctx context.Context, id, preferenceID string) error

	// UpdatePayment records the latest gateway state of an order.
	UpdatePayment(ctx context.Context, id, status, paymentStatus, gatewayPaymentID string) error

	// Fulfill decrements stock for every adjustment and marks the order paid
	// in one transaction. A shortfall on any line rolls everything back and
	// returns an InsufficientStock AppError.
	Fulfill(ctx context.Context, id, gatewayPaymentID string, adjustments []domain.StockAdjustment) error
}

// UserRepository defines user persistence.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*domain.User, error)

	// GetByVerificationToken and GetByResetToken look up by token hash.
	GetByVerificationToken(ctx context.Context, tokenHash string) (*domain.User, error)
	GetByResetToken(ctx context.Context, tokenHash string) (*domain.User, error)

	Update(ctx context.Context, user *domain.User) error
	List(ctx context.Context, page pagination.Params) ([]domain.User, int, error)
}

// WebhookDeduplicator remembers which gateway notifications were handled.
type WebhookDeduplicator interface {
	// FirstSeen atomically records (paymentID, status) and reports whether
	// this call was the first to do so within ttl.
	FirstSeen(ctx context.Context, paymentID, status string, ttl time.Duration) (bool, error)

	// Forget removes the record so a failed attempt can be retried.
	Forget(ctx context.Context, paymentID, status string) error
}
