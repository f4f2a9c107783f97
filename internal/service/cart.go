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

const msgEmptyCart = "empty or invalid cart"

// ProductFinder is the read access the cart validator needs.
type ProductFinder interface {
	FindByID(ctx context.Context, id string) (*domain.Product, error)
}

// CartValidator prices a cart from the catalog and checks stock. It holds no
// state and takes no locks; stock is only read.
type CartValidator struct {
	products ProductFinder
	logger   *slog.Logger
}

// NewCartValidator creates a new cart validator.
func NewCartValidator(products ProductFinder, logger *slog.Logger) *CartValidator {
	return &CartValidator{products: products, logger: logger}
}

// ValidateCart checks every line independently and in order. A line stops at
// its first failing check, records one error and the next line is checked.
// Only repository failures other than not-found abort with an error.
func (v *CartValidator) ValidateCart(ctx context.Context, lines []domain.CartLineRequest) (*domain.CartValidationResult, error) {
	result := &domain.CartValidationResult{
		Items:    []domain.ValidatedCartLine{},
		Errors:   []string{},
		Problems: []domain.LineProblem{},
	}

	if len(lines) == 0 {
		result.Errors = append(result.Errors, msgEmptyCart)
		result.Problems = append(result.Problems, domain.LineProblem{
			Code:    domain.ProblemInvalidInput,
			Message: msgEmptyCart,
		})
		return result, nil
	}

	var total money.Amount
	for i, line := range lines {
		item, problem, err := v.checkLine(ctx, i+1, line)
		if err != nil {
			return nil, err
		}
		if problem != nil {
			result.Errors = append(result.Errors, problem.Message)
			result.Problems = append(result.Problems, *problem)
			continue
		}
		total += item.Subtotal
		result.Items = append(result.Items, *item)
	}

	result.TotalPrice = total
	result.IsValid = len(result.Errors) == 0
	return result, nil
}

func (v *CartValidator) checkLine(ctx context.Context, n int, line domain.CartLineRequest) (*domain.ValidatedCartLine, *domain.LineProblem, error) {
	if line.Malformed() || line.ProductID == "" || line.Quantity <= 0 {
		return nil, &domain.LineProblem{
			Line:      n,
			ProductID: line.ProductID,
			Code:      domain.ProblemInvalidInput,
			Message:   fmt.Sprintf("item %d: invalid format", n),
		}, nil
	}

	problem := func(code, msg string) *domain.LineProblem {
		return &domain.LineProblem{Line: n, ProductID: line.ProductID, Code: code, Message: msg}
	}

	product, err := v.products.FindByID(ctx, line.ProductID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, problem(domain.ProblemNotFound, fmt.Sprintf("product %s not found", line.ProductID)), nil
		}
		return nil, nil, fmt.Errorf("validate cart line %d: %w", n, err)
	}

	variant := product.VariantByColor(line.Color)
	if variant == nil {
		return nil, problem(domain.ProblemNotFound,
			fmt.Sprintf("color %s not available for %s", line.Color, product.Title)), nil
	}

	size := variant.SizeFor(line.Size)
	if size == nil {
		return nil, problem(domain.ProblemNotFound,
			fmt.Sprintf("size %s not available for %s (%s)", line.Size, product.Title, variant.Color)), nil
	}

	if size.Stock < line.Quantity {
		p := problem(domain.ProblemInsufficientStock,
			fmt.Sprintf("insufficient stock for %s (%s, %s), available: %d", product.Title, variant.Color, size.Size, size.Stock))
		available := size.Stock
		p.Available = &available
		return nil, p, nil
	}

	return &domain.ValidatedCartLine{
		ProductID: product.ID,
		Title:     product.Title,
		Price:     product.Price,
		Quantity:  line.Quantity,
		Size:      size.Size,
		Color:     variant.Color,
		Subtotal:  product.Price.Mul(line.Quantity),
	}, nil, nil
}
