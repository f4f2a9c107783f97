package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/service"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/httputil"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/pagination"
)

// CatalogHandler handles HTTP requests for catalog endpoints.
type CatalogHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewCatalogHandler creates a new catalog HTTP handler.
func NewCatalogHandler(svc *service.CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// SizeRequest is one size of a variant.
type SizeRequest struct {
	Size  string `json:"size" validate:"required,max=20"`
	Stock int    `json:"stock" validate:"gte=0"`
	SKU   string `json:"sku" validate:"max=100"`
}

// VariantRequest is the JSON body for creating a variant.
type VariantRequest struct {
	Color      string        `json:"color" validate:"required,max=100"`
	ColorCode  string        `json:"colorCode" validate:"omitempty,hexcolor"`
	Images     []string      `json:"images"`
	SKU        string        `json:"sku" validate:"max=100"`
	PromoPrice *money.Amount `json:"promoPrice"`
	Sizes      []SizeRequest `json:"sizes" validate:"dive"`
}

// VariantPatchRequest is the JSON body for updating a variant.
type VariantPatchRequest struct {
	Color      *string       `json:"color" validate:"omitempty,min=1,max=100"`
	ColorCode  *string       `json:"colorCode" validate:"omitempty,hexcolor"`
	SKU        *string       `json:"sku" validate:"omitempty,max=100"`
	PromoPrice *money.Amount `json:"promoPrice"`
	ClearPromo bool          `json:"clearPromo"`
	Sizes      []SizeRequest `json:"sizes" validate:"omitempty,dive"`
}

// ProductRequest is the body for creating or replacing a product.
type ProductRequest struct {
	Title       string            `json:"title" validate:"required,max=300"`
	Price       money.Amount      `json:"price" validate:"gt=0"`
	PromoPrice  *money.Amount     `json:"promoPrice"`
	SKU         string            `json:"sku" validate:"max=100"`
	Brand       string            `json:"brand" validate:"required,max=100"`
	Types       []string          `json:"types"`
	Genero      []string          `json:"genero"`
	CoverImage  string            `json:"coverImage"`
	Description string            `json:"description"`
	Dimensions  domain.Dimensions `json:"dimensions"`
	Variants    []VariantRequest  `json:"variants" validate:"dive"`
}

// ProductPatchRequest is the body for a partial product update.
type ProductPatchRequest struct {
	Title       *string            `json:"title" validate:"omitempty,min=1,max=300"`
	Price       *money.Amount      `json:"price" validate:"omitempty,gt=0"`
	PromoPrice  *money.Amount      `json:"promoPrice"`
	ClearPromo  bool               `json:"clearPromo"`
	SKU         *string            `json:"sku" validate:"omitempty,max=100"`
	Brand       *string            `json:"brand" validate:"omitempty,min=1,max=100"`
	Types       []string           `json:"types"`
	Genero      []string           `json:"genero"`
	CoverImage  *string            `json:"coverImage"`
	Description *string            `json:"description"`
	Dimensions  *domain.Dimensions `json:"dimensions"`
	Variants    []VariantRequest   `json:"variants" validate:"omitempty,dive"`
}

// StockRequest is the body of the stock increment and decrement endpoints.
type StockRequest struct {
	Color    string `json:"color" validate:"required"`
	Size     string `json:"size" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

func sizeInputs(in []SizeRequest) []service.SizeInput {
	if in == nil {
		return nil
	}
	out := make([]service.SizeInput, 0, len(in))
	for _, s := range in {
		out = append(out, service.SizeInput{Size: s.Size, Stock: s.Stock, SKU: s.SKU})
	}
	return out
}

func (v *VariantRequest) input() service.VariantInput {
	return service.VariantInput{
		Color:      v.Color,
		ColorCode:  v.ColorCode,
		Images:     v.Images,
		SKU:        v.SKU,
		PromoPrice: v.PromoPrice,
		Sizes:      sizeInputs(v.Sizes),
	}
}

func variantInputs(in []VariantRequest) []service.VariantInput {
	if in == nil {
		return nil
	}
	out := make([]service.VariantInput, 0, len(in))
	for i := range in {
		out = append(out, in[i].input())
	}
	return out
}

func (p *ProductRequest) input() *service.ProductInput {
	return &service.ProductInput{
		Title:       p.Title,
		Price:       p.Price,
		PromoPrice:  p.PromoPrice,
		SKU:         p.SKU,
		Brand:       p.Brand,
		Types:       p.Types,
		Genero:      p.Genero,
		CoverImage:  p.CoverImage,
		Description: p.Description,
		Dimensions:  p.Dimensions,
		Variants:    variantInputs(p.Variants),
	}
}

// --- Read handlers ---

// List handles GET /api/v1/catalog/{category}
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}

	page := pagination.FromRequest(r)
	products, total, err := h.service.List(r.Context(), category, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: pagination.NewResult(products, total, page)})
}

// FilterCategory handles GET /api/v1/catalog/{category}/filter
func (h *CatalogHandler) FilterCategory(w http.ResponseWriter, r *http.Request) {
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}

	filter := productFilter(r.URL.Query())
	filter.Category = &category
	h.filter(w, r, filter)
}

// Filter handles GET /api/v1/products/filter
func (h *CatalogHandler) Filter(w http.ResponseWriter, r *http.Request) {
	filter := productFilter(r.URL.Query())
	if v := r.URL.Query().Get("category"); v != "" {
		category, ok := domain.ParseCategory(v)
		if !ok {
			writeInvalid(w, "unknown category "+v)
			return
		}
		filter.Category = &category
	}
	h.filter(w, r, filter)
}

func (h *CatalogHandler) filter(w http.ResponseWriter, r *http.Request, filter domain.ProductFilter) {
	page := pagination.FromRequest(r)
	products, total, err := h.service.Filter(r.Context(), filter, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: pagination.NewResult(products, total, page)})
}

// Search handles GET /api/v1/products/search?q=
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	var category *domain.Category
	if v := r.URL.Query().Get("category"); v != "" {
		c, ok := domain.ParseCategory(v)
		if !ok {
			writeInvalid(w, "unknown category "+v)
			return
		}
		category = &c
	}

	page := pagination.FromRequest(r)
	docs, total, err := h.service.Search(r.Context(), r.URL.Query().Get("q"), category, page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: pagination.NewResult(docs, total, page)})
}

// TypesAndBrands handles GET /api/v1/catalog/{category}/types-brands
func (h *CatalogHandler) TypesAndBrands(w http.ResponseWriter, r *http.Request) {
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}

	facets, err := h.service.TypesAndBrands(r.Context(), category)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: facets})
}

// Get handles GET /api/v1/catalog/{category}/{id}
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.service.Get(r.Context(), category, id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// --- Product writes ---

// Create handles POST /api/v1/catalog/{category}
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}

	var req ProductRequest
	cover, ok := decodeProductBody(w, r, &req)
	if !ok {
		return
	}

	product, err := h.service.Create(r.Context(), category, req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if cover != nil {
		if product, err = h.service.SetCover(r.Context(), category, product.ID, cover); err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: product})
}

// Replace handles PUT /api/v1/catalog/{category}/{id}
func (h *CatalogHandler) Replace(w http.ResponseWriter, r *http.Request) {
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req ProductRequest
	cover, ok := decodeProductBody(w, r, &req)
	if !ok {
		return
	}

	product, err := h.service.Replace(r.Context(), category, id.String(), req.input())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if cover != nil {
		if product, err = h.service.SetCover(r.Context(), category, product.ID, cover); err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// Update handles PATCH /api/v1/catalog/{category}/{id}
func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req ProductPatchRequest
	cover, ok := decodeProductBody(w, r, &req)
	if !ok {
		return
	}

	patch := &service.ProductPatch{
		Title:       req.Title,
		Price:       req.Price,
		PromoPrice:  req.PromoPrice,
		ClearPromo:  req.ClearPromo,
		SKU:         req.SKU,
		Brand:       req.Brand,
		Types:       req.Types,
		Genero:      req.Genero,
		CoverImage:  req.CoverImage,
		Description: req.Description,
		Dimensions:  req.Dimensions,
		Variants:    variantInputs(req.Variants),
	}

	product, err := h.service.Update(r.Context(), category, id.String(), patch)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if cover != nil {
		if product, err = h.service.SetCover(r.Context(), category, product.ID, cover); err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// Delete handles DELETE /api/v1/catalog/{category}/{id}
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), category, id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetCover handles PUT /api/v1/catalog/{category}/{id}/cover
func (h *CatalogHandler) SetCover(w http.ResponseWriter, r *http.Request) {
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	uploads, ok := formUploads(w, r, "imagen")
	if !ok {
		return
	}

	product, err := h.service.SetCover(r.Context(), category, id.String(), uploads[0])
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// --- Variants ---

// AddVariant handles POST /api/v1/catalog/{category}/{id}/variants
func (h *CatalogHandler) AddVariant(w http.ResponseWriter, r *http.Request) {
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req VariantRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input := req.input()
	product, err := h.service.AddVariant(r.Context(), category, id.String(), &input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: product})
}

// UpdateVariant handles PUT /api/v1/catalog/{category}/{id}/variants/{color}
func (h *CatalogHandler) UpdateVariant(w http.ResponseWriter, r *http.Request) {
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req VariantPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := &service.VariantPatch{
		Color:      req.Color,
		ColorCode:  req.ColorCode,
		SKU:        req.SKU,
		PromoPrice: req.PromoPrice,
		ClearPromo: req.ClearPromo,
		Sizes:      sizeInputs(req.Sizes),
	}

	product, err := h.service.UpdateVariant(r.Context(), category, id.String(), pathParam(r, "color"), patch)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// DeleteVariant handles DELETE /api/v1/catalog/{category}/{id}/variants/{color}
func (h *CatalogHandler) DeleteVariant(w http.ResponseWriter, r *http.Request) {
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	product, err := h.service.DeleteVariant(r.Context(), category, id.String(), pathParam(r, "color"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// AddVariantImages handles POST /api/v1/catalog/{category}/{id}/variants/{color}/images
func (h *CatalogHandler) AddVariantImages(w http.ResponseWriter, r *http.Request) {
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	uploads, ok := formUploads(w, r, "images")
	if !ok {
		return
	}

	product, err := h.service.AddVariantImages(r.Context(), category, id.String(), pathParam(r, "color"), uploads)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: product})
}

// RemoveVariantImage handles DELETE /api/v1/catalog/{category}/{id}/variants/{color}/images?url=
func (h *CatalogHandler) RemoveVariantImage(w http.ResponseWriter, r *http.Request) {
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	imageURL := r.URL.Query().Get("url")
	if imageURL == "" {
		writeInvalid(w, "url is required")
		return
	}

	product, err := h.service.RemoveVariantImage(r.Context(), category, id.String(), pathParam(r, "color"), imageURL)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// --- Stock ---

// IncrementStock handles POST /api/v1/catalog/{category}/{id}/variants/increment
func (h *CatalogHandler) IncrementStock(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, h.service.IncrementStock)
}

// DecrementStock handles POST /api/v1/catalog/{category}/{id}/variants/decrement
func (h *CatalogHandler) DecrementStock(w http.ResponseWriter, r *http.Request) {
	h.adjustStock(w, r, h.service.DecrementStock)
}

type stockFunc func(ctx context.Context, category domain.Category, id string, adj domain.StockAdjustment) (*domain.Size, error)

func (h *CatalogHandler) adjustStock(w http.ResponseWriter, r *http.Request, adjust stockFunc) {
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req StockRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	size, err := adjust(r.Context(), category, id.String(), domain.StockAdjustment{
		ProductID: id.String(),
		Color:     req.Color,
		Size:      req.Size,
		Quantity:  req.Quantity,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: size})
}
