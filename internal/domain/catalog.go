package domain

import (
	"strings"
	"time"

	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/slug"
)

// Category tags every product row.
type Category string

const (
	CategoryClothing    Category = "clothing"
	CategoryFootwear    Category = "footwear"
	CategoryAccessories Category = "accessories"
)

var categoryAliases = map[string]Category{
	"clothing":    CategoryClothing,
	"ropa":        CategoryClothing,
	"footwear":    CategoryFootwear,
	"calzados":    CategoryFootwear,
	"accessories": CategoryAccessories,
	"accesorios":  CategoryAccessories,
}

// ParseCategory accepts both the English tag and the storefront's Spanish
// URL segment.
func ParseCategory(s string) (Category, bool) {
	c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(s))]
	return c, ok
}

// Dimensions are shipping measurements in kilograms and centimeters.
type Dimensions struct {
	WeightKg float64 `json:"weightKg"`
	DepthCm  float64 `json:"depthCm"`
	WidthCm  float64 `json:"widthCm"`
	HeightCm float64 `json:"heightCm"`
}

// Product is a catalog entry with its color variants.
type Product struct {
	ID          string        `json:"id"`
	Category    Category      `json:"category"`
	Title       string        `json:"title"`
	Price       money.Amount  `json:"price"`
	PromoPrice  *money.Amount `json:"promoPrice,omitempty"`
	SKU         string        `json:"sku"`
	Brand       string        `json:"brand"`
	BrandSlug   string        `json:"brandSlug"`
	Types       []string      `json:"types"`
	TypeSlugs   []string      `json:"typeSlugs"`
	Genero      []string      `json:"genero"`
	CoverImage  string        `json:"coverImage"`
	Description string        `json:"description"`
	Dimensions  Dimensions    `json:"dimensions"`
	Variants    []Variant     `json:"variants"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Variant groups the sizes of one color.
type Variant struct {
	ID         string        `json:"id"`
	ProductID  string        `json:"productId"`
	Color      string        `json:"color"`
	ColorSlug  string        `json:"colorSlug"`
	ColorCode  string        `json:"colorCode"`
	Images     []string      `json:"images"`
	SKU        string        `json:"sku"`
	PromoPrice *money.Amount `json:"promoPrice,omitempty"`
	Sizes      []Size        `json:"sizes"`
}

// Size holds the stock of one size of a variant.
type Size struct {
	ID        string `json:"id"`
	VariantID string `json:"variantId"`
	Size      string `json:"size"`
	Stock     int    `json:"stock"`
	SKU       string `json:"sku"`
}

// VariantByColor finds the variant whose slug matches slug(color).
func (p *Product) VariantByColor(color string) *Variant {
	want := slug.Generate(color)
	if want == "" {
		return nil
	}
	for i := range p.Variants {
		if p.Variants[i].ColorSlug == want {
			return &p.Variants[i]
		}
	}
	return nil
}

// Images returns every image URL referenced by the product.
func (p *Product) Images() []string {
	var urls []string
	if p.CoverImage != "" {
		urls = append(urls, p.CoverImage)
	}
	for _, v := range p.Variants {
		urls = append(urls, v.Images...)
	}
	return urls
}

// SizeFor finds a size by trimmed, case-insensitive comparison.
func (v *Variant) SizeFor(size string) *Size {
	want := strings.TrimSpace(size)
	if want == "" {
		return nil
	}
	for i := range v.Sizes {
		if strings.EqualFold(strings.TrimSpace(v.Sizes[i].Size), want) {
			return &v.Sizes[i]
		}
	}
	return nil
}

// Normalize recomputes every derived slug. It is called before any write.
func (p *Product) Normalize() {
	p.BrandSlug = slug.Generate(p.Brand)
	p.TypeSlugs = slug.All(p.Types)
	if p.Types == nil {
		p.Types = []string{}
	}
	if p.Genero == nil {
		p.Genero = []string{}
	}
	for i := range p.Variants {
		p.Variants[i].Normalize()
	}
}

func (v *Variant) Normalize() {
	v.ColorSlug = slug.Generate(v.Color)
	if v.Images == nil {
		v.Images = []string{}
	}
	for i := range v.Sizes {
		v.Sizes[i].Size = strings.TrimSpace(v.Sizes[i].Size)
	}
}

// ProductFilter narrows catalog listings. Multi-valued fields match any of
// their values, except Types and Genero which must all be present.
type ProductFilter struct {
	Category *Category
	Title    string
	Brands   []string
	Types    []string
	Genero   []string
	Colors   []string
	Sizes    []string
}

// TypesAndBrands lists the distinct facets of a category.
type TypesAndBrands struct {
	Types  []string `json:"types"`
	Brands []string `json:"brands"`
}

// StockAdjustment identifies one size of one variant.
type StockAdjustment struct {
	ProductID string `json:"productId"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}
