package search

import (
	"context"
	"errors"
	"time"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"
)

// ErrDisabled is returned by engines that do not search. Callers fall back
// to the database.
var ErrDisabled = errors.New("search engine disabled")

// Document is the indexed form of a product.
type Document struct {
	ID         string          `json:"id"`
	Category   domain.Category `json:"category"`
	Title      string          `json:"title"`
	Brand      string          `json:"brand"`
	BrandSlug  string          `json:"brand_slug"`
	Types      []string        `json:"types"`
	TypeSlugs  []string        `json:"type_slugs"`
	Colors     []string        `json:"colors"`
	ColorSlugs []string        `json:"color_slugs"`
	Sizes      []string        `json:"sizes"`
	Price      int64           `json:"price"`
	CoverImage string          `json:"cover_image"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// FromProduct builds the document of p. Sizes with no stock are left out.
func FromProduct(p *domain.Product) *Document {
	d := &Document{
		ID:         p.ID,
		Category:   p.Category,
		Title:      p.Title,
		Brand:      p.Brand,
		BrandSlug:  p.BrandSlug,
		Types:      p.Types,
		TypeSlugs:  p.TypeSlugs,
		Colors:     []string{},
		ColorSlugs: []string{},
		Sizes:      []string{},
		Price:      int64(p.Price),
		CoverImage: p.CoverImage,
		UpdatedAt:  p.UpdatedAt,
	}
	seen := make(map[string]bool)
	for _, v := range p.Variants {
		d.Colors = append(d.Colors, v.Color)
		d.ColorSlugs = append(d.ColorSlugs, v.ColorSlug)
		for _, s := range v.Sizes {
			if s.Stock > 0 && !seen[s.Size] {
				seen[s.Size] = true
				d.Sizes = append(d.Sizes, s.Size)
			}
		}
	}
	return d
}

// PriceAmount returns the indexed price.
func (d *Document) PriceAmount() money.Amount {
	return money.Amount(d.Price)
}

// Query is a full-text product search.
type Query struct {
	Text     string
	Category *domain.Category
	Page     int
	PerPage  int
}

// Result is one page of matches ordered by relevance.
type Result struct {
	Documents []Document
	Total     int
}

// Engine indexes and searches products.
type Engine interface {
	Index(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q *Query) (*Result, error)
}
