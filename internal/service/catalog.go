package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/event"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/repository"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/search"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/storage"
	apperrors "github.com/Rodrigo-Schwindt/Backend-Render/pkg/errors"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/pagination"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/slug"
)

const imagePrefix = "products"

// Stock adjustment reasons carried on catalog.stock.adjusted events.
const (
	StockReasonManual    = "manual"
	StockReasonPurchase  = "purchase"
	StockReasonRestocked = "restocked"
)

// CatalogService implements the business logic for the product catalog.
type CatalogService struct {
	repo     repository.ProductRepository
	storage  storage.Storage
	search   search.Engine
	producer *event.Producer
	logger   *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(
	repo repository.ProductRepository,
	store storage.Storage,
	engine search.Engine,
	producer *event.Producer,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		repo:     repo,
		storage:  store,
		search:   engine,
		producer: producer,
		logger:   logger,
	}
}

// SizeInput describes one size of a variant.
type SizeInput struct {
	Size  string
	Stock int
	SKU   string
}

// VariantInput describes a color variant with its sizes.
type VariantInput struct {
	Color      string
	ColorCode  string
	Images     []string
	SKU        string
	PromoPrice *money.Amount
	Sizes      []SizeInput
}

// ProductInput holds every field of a product. It is used by Create and
// Replace.
type ProductInput struct {
	Title       string
	Price       money.Amount
	PromoPrice  *money.Amount
	SKU         string
	Brand       string
	Types       []string
	Genero      []string
	CoverImage  string
	Description string
	Dimensions  domain.Dimensions
	Variants    []VariantInput
}

// ProductPatch holds the fields of a partial update. Nil fields are left
// unchanged; Variants, when set, replaces every variant.
type ProductPatch struct {
	Title       *string
	Price       *money.Amount
	PromoPrice  *money.Amount
	ClearPromo  bool
	SKU         *string
	Brand       *string
	Types       []string
	Genero      []string
	CoverImage  *string
	Description *string
	Dimensions  *domain.Dimensions
	Variants    []VariantInput
}

// VariantPatch holds the fields of a partial variant update. Sizes, when
// non-nil, replaces every size.
type VariantPatch struct {
	Color      *string
	ColorCode  *string
	SKU        *string
	PromoPrice *money.Amount
	ClearPromo bool
	Sizes      []SizeInput
}

// Upload is one uploaded file.
type Upload struct {
	Filename string
	Size     int64
	Data     io.Reader
}

// List returns one page of a category, newest first.
func (s *CatalogService) List(ctx context.Context, category domain.Category, page pagination.Params) ([]domain.Product, int, error) {
	products, total, err := s.repo.List(ctx, category, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// Filter returns one page of products matching filter.
func (s *CatalogService) Filter(ctx context.Context, filter domain.ProductFilter, page pagination.Params) ([]domain.Product, int, error) {
	products, total, err := s.repo.Filter(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("filter products: %w", err)
	}
	return products, total, nil
}

// Get retrieves a product of category.
func (s *CatalogService) Get(ctx context.Context, category domain.Category, id string) (*domain.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product.Category != category {
		return nil, apperrors.NotFound("product", id)
	}
	return product, nil
}

// TypesAndBrands lists the distinct facets of a category.
func (s *CatalogService) TypesAndBrands(ctx context.Context, category domain.Category) (*domain.TypesAndBrands, error) {
	facets, err := s.repo.TypesAndBrands(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("list types and brands: %w", err)
	}
	return facets, nil
}

// Search runs a full-text query through the search engine. When search is
// disabled it falls back to a title match on the database.
func (s *CatalogService) Search(ctx context.Context, text string, category *domain.Category, page pagination.Params) ([]search.Document, int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, 0, apperrors.InvalidInput("search query is required")
	}

	res, err := s.search.Search(ctx, &search.Query{Text: text, Category: category, Page: page.Page, PerPage: page.PerPage})
	if err == nil {
		return res.Documents, res.Total, nil
	}
	if !errors.Is(err, search.ErrDisabled) {
		s.logger.WarnContext(ctx, "search engine failed, falling back to database",
			slog.String("query", text),
			slog.String("error", err.Error()),
		)
	}

	products, total, err := s.repo.Filter(ctx, domain.ProductFilter{Category: category, Title: text}, page)
	if err != nil {
		return nil, 0, fmt.Errorf("search products: %w", err)
	}
	docs := make([]search.Document, 0, len(products))
	for i := range products {
		docs = append(docs, *search.FromProduct(&products[i]))
	}
	return docs, total, nil
}

// Create stores a new product of category with its variants and sizes.
func (s *CatalogService) Create(ctx context.Context, category domain.Category, input *ProductInput) (*domain.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}
	variants, err := buildVariants(input.Variants, nil)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:        uuid.New().String(),
		Category:  category,
		Variants:  variants,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyInput(product, input)
	product.Normalize()

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	if err := s.producer.PublishProductCreated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.created event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}
	s.reindex(ctx, product)

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("category", string(category)),
		slog.Int("variants", len(product.Variants)),
	)
	return product, nil
}

// Replace overwrites every field and variant of a product.
func (s *CatalogService) Replace(ctx context.Context, category domain.Category, id string, input *ProductInput) (*domain.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}
	product, err := s.Get(ctx, category, id)
	if err != nil {
		return nil, err
	}
	variants, err := buildVariants(input.Variants, product.Variants)
	if err != nil {
		return nil, err
	}

	product.PromoPrice = nil
	applyInput(product, input)
	product.Variants = variants
	product.Normalize()

	if err := s.repo.Update(ctx, product, true); err != nil {
		return nil, fmt.Errorf("replace product: %w", err)
	}
	s.afterUpdate(ctx, product)
	return product, nil
}

// Update applies a partial update.
func (s *CatalogService) Update(ctx context.Context, category domain.Category, id string, patch *ProductPatch) (*domain.Product, error) {
	product, err := s.Get(ctx, category, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, apperrors.InvalidInput("title must not be empty")
		}
		product.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Price != nil {
		if *patch.Price <= 0 {
			return nil, apperrors.InvalidInput("price must be greater than zero")
		}
		product.Price = *patch.Price
	}
	switch {
	case patch.ClearPromo:
		product.PromoPrice = nil
	case patch.PromoPrice != nil:
		promo := *patch.PromoPrice
		product.PromoPrice = &promo
	}
	if patch.SKU != nil {
		product.SKU = *patch.SKU
	}
	if patch.Brand != nil {
		product.Brand = strings.TrimSpace(*patch.Brand)
	}
	if patch.Types != nil {
		product.Types = patch.Types
	}
	if patch.Genero != nil {
		product.Genero = patch.Genero
	}
	if patch.CoverImage != nil {
		product.CoverImage = *patch.CoverImage
	}
	if patch.Description != nil {
		product.Description = *patch.Description
	}
	if patch.Dimensions != nil {
		product.Dimensions = *patch.Dimensions
	}

	replace := patch.Variants != nil
	if replace {
		variants, err := buildVariants(patch.Variants, product.Variants)
		if err != nil {
			return nil, err
		}
		product.Variants = variants
	}
	product.Normalize()

	if err := s.repo.Update(ctx, product, replace); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	s.afterUpdate(ctx, product)
	return product, nil
}

// Delete removes a product with its variants and sizes, then removes the
// images it referenced. Image deletion is best effort.
func (s *CatalogService) Delete(ctx context.Context, category domain.Category, id string) error {
	product, err := s.Get(ctx, category, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.deleteImages(ctx, product.Images()...)

	if err := s.search.Delete(ctx, id); err != nil && !errors.Is(err, search.ErrDisabled) {
		s.logger.WarnContext(ctx, "failed to remove product from search index",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}
	if err := s.producer.PublishProductDeleted(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.deleted event",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return nil
}

// SetCover stores an uploaded image as the product's cover, replacing and
// deleting the previous one.
func (s *CatalogService) SetCover(ctx context.Context, category domain.Category, id string, upload *Upload) (*domain.Product, error) {
	product, err := s.Get(ctx, category, id)
	if err != nil {
		return nil, err
	}

	url, err := s.store(ctx, upload)
	if err != nil {
		return nil, err
	}

	previous := product.CoverImage
	product.CoverImage = url
	if err := s.repo.Update(ctx, product, false); err != nil {
		s.deleteImages(ctx, url)
		return nil, fmt.Errorf("set cover image: %w", err)
	}
	s.deleteImages(ctx, previous)

	s.afterUpdate(ctx, product)
	return product, nil
}

// AddVariant appends a color variant. A color whose slug is already taken
// is a VARIANT_EXISTS conflict.
func (s *CatalogService) AddVariant(ctx context.Context, category domain.Category, id string, input *VariantInput) (*domain.Product, error) {
	product, err := s.Get(ctx, category, id)
	if err != nil {
		return nil, err
	}
	if product.VariantByColor(input.Color) != nil {
		return nil, apperrors.Conflict("VARIANT_EXISTS", fmt.Sprintf("color %s already exists", input.Color))
	}

	variants, err := buildVariants([]VariantInput{*input}, nil)
	if err != nil {
		return nil, err
	}
	variant := variants[0]
	variant.Normalize()

	if err := s.repo.AddVariant(ctx, product.ID, &variant); err != nil {
		return nil, fmt.Errorf("add variant: %w", err)
	}
	product.Variants = append(product.Variants, variant)

	s.afterUpdate(ctx, product)
	return product, nil
}

// UpdateVariant changes the variant of color. Renaming onto another
// variant's color is a VARIANT_EXISTS conflict.
func (s *CatalogService) UpdateVariant(ctx context.Context, category domain.Category, id, color string, patch *VariantPatch) (*domain.Product, error) {
	product, variant, err := s.variant(ctx, category, id, color)
	if err != nil {
		return nil, err
	}

	if patch.Color != nil {
		newColor := strings.TrimSpace(*patch.Color)
		if slug.Generate(newColor) == "" {
			return nil, apperrors.InvalidInput("color must not be empty")
		}
		if other := product.VariantByColor(newColor); other != nil && other.ID != variant.ID {
			return nil, apperrors.Conflict("VARIANT_EXISTS", fmt.Sprintf("color %s already exists", newColor))
		}
		variant.Color = newColor
	}
	if patch.ColorCode != nil {
		variant.ColorCode = *patch.ColorCode
	}
	if patch.SKU != nil {
		variant.SKU = *patch.SKU
	}
	switch {
	case patch.ClearPromo:
		variant.PromoPrice = nil
	case patch.PromoPrice != nil:
		promo := *patch.PromoPrice
		variant.PromoPrice = &promo
	}

	var sizes []domain.Size
	if patch.Sizes != nil {
		sizes, err = buildSizes(patch.Sizes, variant.Sizes)
		if err != nil {
			return nil, err
		}
	}
	variant.Normalize()

	if err := s.repo.UpdateVariant(ctx, variant, sizes); err != nil {
		return nil, fmt.Errorf("update variant: %w", err)
	}
	if sizes != nil {
		variant.Sizes = sizes
	}

	s.afterUpdate(ctx, product)
	return product, nil
}

// DeleteVariant removes the variant of color and its images.
func (s *CatalogService) DeleteVariant(ctx context.Context, category domain.Category, id, color string) (*domain.Product, error) {
	product, variant, err := s.variant(ctx, category, id, color)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteVariant(ctx, variant.ID); err != nil {
		return nil, fmt.Errorf("delete variant: %w", err)
	}

	variantID, images := variant.ID, variant.Images
	product.Variants = slices.DeleteFunc(product.Variants, func(v domain.Variant) bool {
		return v.ID == variantID
	})
	s.deleteImages(ctx, images...)

	s.afterUpdate(ctx, product)
	return product, nil
}

// AddVariantImages stores uploads and appends their URLs to the variant of
// color. Files stored before a failure are removed again.
func (s *CatalogService) AddVariantImages(ctx context.Context, category domain.Category, id, color string, uploads []*Upload) (*domain.Product, error) {
	if len(uploads) == 0 {
		return nil, apperrors.InvalidInput("at least one image is required")
	}
	product, variant, err := s.variant(ctx, category, id, color)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(uploads))
	for _, u := range uploads {
		url, err := s.store(ctx, u)
		if err != nil {
			s.deleteImages(ctx, urls...)
			return nil, err
		}
		urls = append(urls, url)
	}

	variant.Images = append(variant.Images, urls...)
	if err := s.repo.UpdateVariant(ctx, variant, nil); err != nil {
		s.deleteImages(ctx, urls...)
		return nil, fmt.Errorf("add variant images: %w", err)
	}

	s.afterUpdate(ctx, product)
	return product, nil
}

// RemoveVariantImage detaches url from the variant of color and deletes the
// stored file.
func (s *CatalogService) RemoveVariantImage(ctx context.Context, category domain.Category, id, color, url string) (*domain.Product, error) {
	product, variant, err := s.variant(ctx, category, id, color)
	if err != nil {
		return nil, err
	}

	i := slices.Index(variant.Images, url)
	if i < 0 {
		return nil, apperrors.NotFound("image", url)
	}
	variant.Images = slices.Delete(variant.Images, i, i+1)

	if err := s.repo.UpdateVariant(ctx, variant, nil); err != nil {
		return nil, fmt.Errorf("remove variant image: %w", err)
	}
	s.deleteImages(ctx, url)

	s.afterUpdate(ctx, product)
	return product, nil
}

// IncrementStock adds qty units to one size.
func (s *CatalogService) IncrementStock(ctx context.Context, category domain.Category, id string, adj domain.StockAdjustment) (*domain.Size, error) {
	return s.adjustStock(ctx, category, id, adj, false)
}

// DecrementStock removes qty units from one size. It fails with NO_STOCK
// instead of going below zero.
func (s *CatalogService) DecrementStock(ctx context.Context, category domain.Category, id string, adj domain.StockAdjustment) (*domain.Size, error) {
	return s.adjustStock(ctx, category, id, adj, true)
}

func (s *CatalogService) adjustStock(ctx context.Context, category domain.Category, id string, adj domain.StockAdjustment, decrement bool) (*domain.Size, error) {
	if adj.Quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be a positive integer")
	}
	product, variant, err := s.variant(ctx, category, id, adj.Color)
	if err != nil {
		return nil, err
	}
	size := variant.SizeFor(adj.Size)
	if size == nil {
		return nil, apperrors.NotFoundCode("NO_SIZE",
			fmt.Sprintf("size %s not available for %s (%s)", adj.Size, product.Title, variant.Color))
	}

	delta, reason := adj.Quantity, StockReasonRestocked
	var stock int
	if decrement {
		delta, reason = -adj.Quantity, StockReasonManual
		stock, err = s.repo.DecrementStock(ctx, size.ID, adj.Quantity)
	} else {
		stock, err = s.repo.IncrementStock(ctx, size.ID, adj.Quantity)
	}
	if err != nil {
		return nil, fmt.Errorf("adjust stock: %w", err)
	}
	size.Stock = stock

	if err := s.producer.PublishStockAdjusted(ctx, event.StockAdjustedData{
		ProductID: product.ID,
		Color:     variant.Color,
		Size:      size.Size,
		Delta:     delta,
		Stock:     stock,
		Reason:    reason,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish stock.adjusted event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}
	s.reindex(ctx, product)

	s.logger.InfoContext(ctx, "stock adjusted",
		slog.String("product_id", product.ID),
		slog.String("color", variant.Color),
		slog.String("size", size.Size),
		slog.Int("delta", delta),
		slog.Int("stock", stock),
	)
	return size, nil
}

// variant loads a product and finds its variant of color, failing with
// NO_VARIANT when there is none.
func (s *CatalogService) variant(ctx context.Context, category domain.Category, id, color string) (*domain.Product, *domain.Variant, error) {
	product, err := s.Get(ctx, category, id)
	if err != nil {
		return nil, nil, err
	}
	variant := product.VariantByColor(color)
	if variant == nil {
		return nil, nil, apperrors.NotFoundCode("NO_VARIANT",
			fmt.Sprintf("color %s not available for %s", color, product.Title))
	}
	return product, variant, nil
}

func (s *CatalogService) store(ctx context.Context, u *Upload) (string, error) {
	if u.Size > storage.MaxImageSize {
		return "", apperrors.InvalidInput(fmt.Sprintf("%s exceeds the %d MiB limit", u.Filename, storage.MaxImageSize>>20))
	}
	contentType, data, err := storage.SniffImage(u.Data)
	if err != nil {
		return "", err
	}

	res, err := s.storage.Upload(ctx, &storage.UploadInput{
		Key:         storage.NewImageKey(imagePrefix, u.Filename),
		ContentType: contentType,
		Size:        u.Size,
		Data:        data,
	})
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return res.URL, nil
}

func (s *CatalogService) deleteImages(ctx context.Context, urls ...string) {
	for _, url := range urls {
		key, ok := storage.KeyFromURL(url)
		if !ok {
			continue
		}
		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "failed to delete image",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *CatalogService) afterUpdate(ctx context.Context, product *domain.Product) {
	if err := s.producer.PublishProductUpdated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.updated event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}
	s.reindex(ctx, product)
}

func (s *CatalogService) reindex(ctx context.Context, product *domain.Product) {
	if err := s.search.Index(ctx, search.FromProduct(product)); err != nil && !errors.Is(err, search.ErrDisabled) {
		s.logger.WarnContext(ctx, "failed to index product",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}
}

func validateProductInput(input *ProductInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return apperrors.InvalidInput("title is required")
	}
	if input.Price <= 0 {
		return apperrors.InvalidInput("price must be greater than zero")
	}
	if input.PromoPrice != nil && *input.PromoPrice < 0 {
		return apperrors.InvalidInput("promo price must not be negative")
	}
	return nil
}

func applyInput(p *domain.Product, input *ProductInput) {
	p.Title = strings.TrimSpace(input.Title)
	p.Price = input.Price
	if input.PromoPrice != nil {
		promo := *input.PromoPrice
		p.PromoPrice = &promo
	}
	p.SKU = input.SKU
	p.Brand = strings.TrimSpace(input.Brand)
	p.Types = input.Types
	p.Genero = input.Genero
	p.CoverImage = input.CoverImage
	p.Description = input.Description
	p.Dimensions = input.Dimensions
}

// buildVariants turns inputs into variants. Existing variants keep their ids
// when the color slug is unchanged.
func buildVariants(inputs []VariantInput, existing []domain.Variant) ([]domain.Variant, error) {
	byColor := make(map[string]domain.Variant, len(existing))
	for _, v := range existing {
		byColor[v.ColorSlug] = v
	}

	seen := make(map[string]struct{}, len(inputs))
	variants := make([]domain.Variant, 0, len(inputs))
	for _, in := range inputs {
		colorSlug := slug.Generate(in.Color)
		if colorSlug == "" {
			return nil, apperrors.InvalidInput("variant color is required")
		}
		if _, dup := seen[colorSlug]; dup {
			return nil, apperrors.Conflict("VARIANT_EXISTS", fmt.Sprintf("color %s is listed twice", in.Color))
		}
		seen[colorSlug] = struct{}{}

		prev, kept := byColor[colorSlug]
		id := uuid.New().String()
		if kept {
			id = prev.ID
		}
		sizes, err := buildSizes(in.Sizes, prev.Sizes)
		if err != nil {
			return nil, err
		}

		var promo *money.Amount
		if in.PromoPrice != nil {
			p := *in.PromoPrice
			promo = &p
		}
		variants = append(variants, domain.Variant{
			ID:         id,
			Color:      strings.TrimSpace(in.Color),
			ColorCode:  in.ColorCode,
			Images:     slices.Clone(in.Images),
			SKU:        in.SKU,
			PromoPrice: promo,
			Sizes:      sizes,
		})
	}
	return variants, nil
}

func buildSizes(inputs []SizeInput, existing []domain.Size) ([]domain.Size, error) {
	byName := make(map[string]string, len(existing))
	for _, s := range existing {
		byName[strings.ToLower(s.Size)] = s.ID
	}

	seen := make(map[string]struct{}, len(inputs))
	sizes := make([]domain.Size, 0, len(inputs))
	for _, in := range inputs {
		name := strings.TrimSpace(in.Size)
		if name == "" {
			return nil, apperrors.InvalidInput("size is required")
		}
		if in.Stock < 0 {
			return nil, apperrors.InvalidInput(fmt.Sprintf("stock for size %s must not be negative", name))
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return nil, apperrors.InvalidInput(fmt.Sprintf("size %s is listed twice", name))
		}
		seen[key] = struct{}{}

		id, ok := byName[key]
		if !ok {
			id = uuid.New().String()
		}
		sizes = append(sizes, domain.Size{ID: id, Size: name, Stock: in.Stock, SKU: in.SKU})
	}
	return sizes, nil
}
