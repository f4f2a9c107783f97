package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/database"
	apperrors "github.com/Rodrigo-Schwindt/Backend-Render/pkg/errors"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/pagination"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/slug"
)

const productColumns = `id, category, title, price, promo_price, sku, brand, brand_slug, types, type_slugs,
	genero, cover_image, description, weight_kg, depth_cm, width_cm, height_cm, created_at, updated_at`

const variantsQuery = `
	SELECT v.id, v.product_id, v.color, v.color_slug, v.color_code, v.images, v.sku, v.promo_price,
	       s.id, s.size, s.stock, s.sku
	FROM product_variants v
	LEFT JOIN variant_sizes s ON s.variant_id = v.id
	WHERE v.product_id = ANY($1)
	  AND ($2::text[] IS NULL OR cardinality($2::text[]) = 0 OR v.color_slug = ANY($2))
	ORDER BY v.position, v.color_slug, s.position, s.size`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// FindByID retrieves a product with its variants and sizes.
// Ids that are not UUIDs cannot exist and are reported as not found.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (p *domain.Product, err error) {
	if _, perr := uuid.Parse(id); perr != nil {
		return nil, apperrors.NotFound("product", id)
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "product.FindByID", query)
	defer func() { end(err) }()

	p, err = scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	products := []domain.Product{*p}
	if err := r.loadVariants(ctx, products, nil); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// List returns one page of a category, newest first.
func (r *ProductRepository) List(ctx context.Context, category domain.Category, page pagination.Params) ([]domain.Product, int, error) {
	return r.Filter(ctx, domain.ProductFilter{Category: &category}, page)
}

// Filter returns products matching filter with the total count. Colors also
// restrict which variants are returned.
func (r *ProductRepository) Filter(ctx context.Context, filter domain.ProductFilter, page pagination.Params) ([]domain.Product, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)
	add := func(cond string, arg any) {
		conditions = append(conditions, fmt.Sprintf(cond, argIndex))
		args = append(args, arg)
		argIndex++
	}

	if filter.Category != nil {
		add("category = $%d", string(*filter.Category))
	}
	if t := strings.TrimSpace(filter.Title); t != "" {
		add("title ILIKE $%d", "%"+t+"%")
	}
	if len(filter.Brands) > 0 {
		add("brand_slug = ANY($%d)", slug.All(filter.Brands))
	}
	if len(filter.Types) > 0 {
		add("type_slugs @> $%d", slug.All(filter.Types))
	}
	if len(filter.Genero) > 0 {
		add("genero @> $%d", filter.Genero)
	}
	colorSlugs := slug.All(filter.Colors)
	if len(colorSlugs) > 0 {
		add("EXISTS (SELECT 1 FROM product_variants v WHERE v.product_id = products.id AND v.color_slug = ANY($%d))", colorSlugs)
	}
	if len(filter.Sizes) > 0 {
		sizes := make([]string, 0, len(filter.Sizes))
		for _, s := range filter.Sizes {
			sizes = append(sizes, strings.ToLower(strings.TrimSpace(s)))
		}
		add(`EXISTS (SELECT 1 FROM product_variants v JOIN variant_sizes s ON s.variant_id = v.id
			WHERE v.product_id = products.id AND lower(s.size) = ANY($%d))`, sizes)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM products
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		productColumns, where, argIndex, argIndex+1,
	)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var (
		products   []domain.Product
		totalCount int
	)
	for rows.Next() {
		p, err := scanProduct(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}
	if products == nil {
		return []domain.Product{}, totalCount, nil
	}

	if err := r.loadVariants(ctx, products, colorSlugs); err != nil {
		return nil, 0, err
	}
	return products, totalCount, nil
}

// TypesAndBrands lists the distinct facets of a category.
func (r *ProductRepository) TypesAndBrands(ctx context.Context, category domain.Category) (*domain.TypesAndBrands, error) {
	out := &domain.TypesAndBrands{Types: []string{}, Brands: []string{}}

	types, err := r.distinct(ctx, `SELECT DISTINCT unnest(types) AS t FROM products WHERE category = $1 ORDER BY t`, category)
	if err != nil {
		return nil, fmt.Errorf("list types: %w", err)
	}
	brands, err := r.distinct(ctx, `SELECT DISTINCT brand FROM products WHERE category = $1 AND brand <> '' ORDER BY brand`, category)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}

	out.Types = append(out.Types, types...)
	out.Brands = append(out.Brands, brands...)
	return out, nil
}

func (r *ProductRepository) distinct(ctx context.Context, query string, category domain.Category) ([]string, error) {
	rows, err := r.db.Query(ctx, query, string(category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Create inserts the product with its variants and sizes in one transaction.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	return database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO products (` + productColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

		_, err := tx.Exec(ctx, query,
			p.ID, string(p.Category), p.Title, int64(p.Price), promoArg(p.PromoPrice), p.SKU,
			p.Brand, p.BrandSlug, p.Types, p.TypeSlugs, p.Genero, p.CoverImage, p.Description,
			p.Dimensions.WeightKg, p.Dimensions.DepthCm, p.Dimensions.WidthCm, p.Dimensions.HeightCm,
			p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.AlreadyExists("product", "id", p.ID)
			}
			return fmt.Errorf("insert product: %w", err)
		}

		for i := range p.Variants {
			if err := insertVariant(ctx, tx, p.ID, &p.Variants[i], i); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update rewrites the product row and, when replaceVariants is set, its
// variants and sizes.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product, replaceVariants bool) error {
	p.UpdatedAt = time.Now().UTC()

	return database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			UPDATE products
			SET category = $1, title = $2, price = $3, promo_price = $4, sku = $5, brand = $6, brand_slug = $7,
			    types = $8, type_slugs = $9, genero = $10, cover_image = $11, description = $12,
			    weight_kg = $13, depth_cm = $14, width_cm = $15, height_cm = $16, updated_at = $17
			WHERE id = $18`

		ct, err := tx.Exec(ctx, query,
			string(p.Category), p.Title, int64(p.Price), promoArg(p.PromoPrice), p.SKU, p.Brand, p.BrandSlug,
			p.Types, p.TypeSlugs, p.Genero, p.CoverImage, p.Description,
			p.Dimensions.WeightKg, p.Dimensions.DepthCm, p.Dimensions.WidthCm, p.Dimensions.HeightCm,
			p.UpdatedAt, p.ID,
		)
		if err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return apperrors.NotFound("product", p.ID)
		}

		if !replaceVariants {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM product_variants WHERE product_id = $1`, p.ID); err != nil {
			return fmt.Errorf("delete variants: %w", err)
		}
		for i := range p.Variants {
			if err := insertVariant(ctx, tx, p.ID, &p.Variants[i], i); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes a product; variants and sizes cascade.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

// AddVariant appends a variant after the existing ones.
func (r *ProductRepository) AddVariant(ctx context.Context, productID string, v *domain.Variant) error {
	return database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		var position int
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(position) + 1, 0) FROM product_variants WHERE product_id = $1`, productID,
		).Scan(&position); err != nil {
			return fmt.Errorf("next variant position: %w", err)
		}
		if err := insertVariant(ctx, tx, productID, v, position); err != nil {
			return err
		}
		return touchProduct(ctx, tx, productID)
	})
}

// UpdateVariant rewrites the variant row. Sizes are replaced when non-nil.
func (r *ProductRepository) UpdateVariant(ctx context.Context, v *domain.Variant, sizes []domain.Size) error {
	return database.InTx(ctx, r.db, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `
			UPDATE product_variants
			SET color = $1, color_slug = $2, color_code = $3, images = $4, sku = $5, promo_price = $6
			WHERE id = $7`,
			v.Color, v.ColorSlug, v.ColorCode, v.Images, v.SKU, promoArg(v.PromoPrice), v.ID,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.Conflict("VARIANT_EXISTS", fmt.Sprintf("color %s already exists", v.Color))
			}
			return fmt.Errorf("update variant: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return apperrors.NotFound("variant", v.ID)
		}

		if sizes != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM variant_sizes WHERE variant_id = $1`, v.ID); err != nil {
				return fmt.Errorf("delete sizes: %w", err)
			}
			for i := range sizes {
				if err := insertSize(ctx, tx, v.ID, &sizes[i], i); err != nil {
					return err
				}
			}
			v.Sizes = sizes
		}
		return touchProduct(ctx, tx, v.ProductID)
	})
}

// DeleteVariant removes a variant and, by cascade, its sizes.
func (r *ProductRepository) DeleteVariant(ctx context.Context, variantID string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM product_variants WHERE id = $1`, variantID)
	if err != nil {
		return fmt.Errorf("delete variant: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("variant", variantID)
	}
	return nil
}

// IncrementStock adds qty to one size and returns the new stock.
func (r *ProductRepository) IncrementStock(ctx context.Context, sizeID string, qty int) (int, error) {
	var stock int
	err := r.db.QueryRow(ctx,
		`UPDATE variant_sizes SET stock = stock + $2 WHERE id = $1 RETURNING stock`, sizeID, qty,
	).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NotFound("size", sizeID)
		}
		return 0, fmt.Errorf("increment stock: %w", err)
	}
	return stock, nil
}

// DecrementStock subtracts qty only while enough stock remains.
func (r *ProductRepository) DecrementStock(ctx context.Context, sizeID string, qty int) (int, error) {
	var stock int
	err := r.db.QueryRow(ctx,
		`UPDATE variant_sizes SET stock = stock - $2 WHERE id = $1 AND stock >= $2 RETURNING stock`, sizeID, qty,
	).Scan(&stock)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("decrement stock: %w", err)
	}

	if err := r.db.QueryRow(ctx, `SELECT stock FROM variant_sizes WHERE id = $1`, sizeID).Scan(&stock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NotFound("size", sizeID)
		}
		return 0, fmt.Errorf("read stock: %w", err)
	}
	return stock, apperrors.InsufficientStock(fmt.Sprintf("insufficient stock, available: %d", stock))
}

func (r *ProductRepository) loadVariants(ctx context.Context, products []domain.Product, colorSlugs []string) error {
	ids := make([]string, len(products))
	index := make(map[string]int, len(products))
	for i := range products {
		ids[i] = products[i].ID
		index[products[i].ID] = i
		products[i].Variants = []domain.Variant{}
	}

	rows, err := r.db.Query(ctx, variantsQuery, ids, colorSlugs)
	if err != nil {
		return fmt.Errorf("load variants: %w", err)
	}
	defer rows.Close()

	// last maps a variant id to where it was appended.
	type cursor struct{ product, variant int }
	last := map[string]cursor{}

	for rows.Next() {
		var (
			v         domain.Variant
			promo     *int64
			sizeID    *string
			sizeName  *string
			sizeStock *int
			sizeSKU   *string
		)
		if err := rows.Scan(
			&v.ID, &v.ProductID, &v.Color, &v.ColorSlug, &v.ColorCode, &v.Images, &v.SKU, &promo,
			&sizeID, &sizeName, &sizeStock, &sizeSKU,
		); err != nil {
			return fmt.Errorf("scan variant row: %w", err)
		}

		c, seen := last[v.ID]
		if !seen {
			pi, ok := index[v.ProductID]
			if !ok {
				continue
			}
			if promo != nil {
				amt := money.Amount(*promo)
				v.PromoPrice = &amt
			}
			if v.Images == nil {
				v.Images = []string{}
			}
			v.Sizes = []domain.Size{}
			products[pi].Variants = append(products[pi].Variants, v)
			c = cursor{product: pi, variant: len(products[pi].Variants) - 1}
			last[v.ID] = c
		}

		if sizeID != nil {
			s := domain.Size{ID: *sizeID, VariantID: v.ID}
			if sizeName != nil {
				s.Size = *sizeName
			}
			if sizeStock != nil {
				s.Stock = *sizeStock
			}
			if sizeSKU != nil {
				s.SKU = *sizeSKU
			}
			variant := &products[c.product].Variants[c.variant]
			variant.Sizes = append(variant.Sizes, s)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate variant rows: %w", err)
	}
	return nil
}

func insertVariant(ctx context.Context, tx pgx.Tx, productID string, v *domain.Variant, position int) error {
	v.ProductID = productID
	_, err := tx.Exec(ctx, `
		INSERT INTO product_variants (id, product_id, color, color_slug, color_code, images, sku, promo_price, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		v.ID, productID, v.Color, v.ColorSlug, v.ColorCode, v.Images, v.SKU, promoArg(v.PromoPrice), position,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("VARIANT_EXISTS", fmt.Sprintf("color %s already exists", v.Color))
		}
		return fmt.Errorf("insert variant: %w", err)
	}

	for i := range v.Sizes {
		if err := insertSize(ctx, tx, v.ID, &v.Sizes[i], i); err != nil {
			return err
		}
	}
	return nil
}

func insertSize(ctx context.Context, tx pgx.Tx, variantID string, s *domain.Size, position int) error {
	s.VariantID = variantID
	_, err := tx.Exec(ctx, `
		INSERT INTO variant_sizes (id, variant_id, size, stock, sku, position)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, variantID, s.Size, s.Stock, s.SKU, position,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.Conflict("SIZE_EXISTS", fmt.Sprintf("size %s is listed twice", s.Size))
		}
		return fmt.Errorf("insert size: %w", err)
	}
	return nil
}

func touchProduct(ctx context.Context, tx pgx.Tx, productID string) error {
	if _, err := tx.Exec(ctx, `UPDATE products SET updated_at = NOW() WHERE id = $1`, productID); err != nil {
		return fmt.Errorf("touch product: %w", err)
	}
	return nil
}

func promoArg(a *money.Amount) *int64 {
	if a == nil {
		return nil
	}
	v := int64(*a)
	return &v
}

// scanProduct reads productColumns plus any extra trailing destinations.
func scanProduct(row pgx.Row, extra ...any) (*domain.Product, error) {
	var (
		p        domain.Product
		category string
		price    int64
		promo    *int64
	)
	dest := []any{
		&p.ID, &category, &p.Title, &price, &promo, &p.SKU, &p.Brand, &p.BrandSlug,
		&p.Types, &p.TypeSlugs, &p.Genero, &p.CoverImage, &p.Description,
		&p.Dimensions.WeightKg, &p.Dimensions.DepthCm, &p.Dimensions.WidthCm, &p.Dimensions.HeightCm,
		&p.CreatedAt, &p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	p.Category = domain.Category(category)
	p.Price = money.Amount(price)
	if promo != nil {
		amt := money.Amount(*promo)
		p.PromoPrice = &amt
	}
	if p.Types == nil {
		p.Types = []string{}
	}
	if p.TypeSlugs == nil {
		p.TypeSlugs = []string{}
	}
	if p.Genero == nil {
		p.Genero = []string{}
	}
	return &p, nil
}
