package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/event"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/search"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/storage"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/storage/memory"
	apperrors "github.com/Rodrigo-Schwindt/Backend-Render/pkg/errors"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/logger"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/pagination"
)

type catalogFixture struct {
	svc    *CatalogService
	repo   *mockProductRepo
	store  *memory.Storage
	engine *fakeEngine
	events *recordingPublisher
}

func newCatalogFixture() *catalogFixture {
	f := &catalogFixture{
		repo:   new(mockProductRepo),
		store:  memory.New(""),
		engine: newFakeEngine(),
		events: &recordingPublisher{},
	}
	f.svc = NewCatalogService(f.repo, f.store, f.engine, event.NewProducer(f.events, logger.Discard()), logger.Discard())
	return f
}

func pngUpload(name string) *Upload {
	data := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	return &Upload{Filename: name, Size: int64(len(data)), Data: bytes.NewReader(data)}
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.Code
}

func TestCatalogService_Create(t *testing.T) {
	f := newCatalogFixture()
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Product")).Return(nil)

	product, err := f.svc.Create(context.Background(), domain.CategoryFootwear, &ProductInput{
		Title: "  Zapatilla Runner ",
		Price: money.FromMajor(100),
		Brand: "New Balance",
		Types: []string{"Running"},
		Variants: []VariantInput{{
			Color: "Azul Marino",
			Sizes: []SizeInput{{Size: " 42 ", Stock: 3}},
		}},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, product.ID)
	assert.Equal(t, "Zapatilla Runner", product.Title)
	assert.Equal(t, "new-balance", product.BrandSlug)
	assert.Equal(t, []string{"running"}, product.TypeSlugs)
	require.Len(t, product.Variants, 1)
	assert.Equal(t, "azul-marino", product.Variants[0].ColorSlug)
	assert.Equal(t, "42", product.Variants[0].Sizes[0].Size)
	assert.NotEmpty(t, product.Variants[0].Sizes[0].ID)

	assert.Equal(t, []string{event.TopicProductCreated}, f.events.Topics())
	assert.Contains(t, f.engine.indexed, product.ID)
	f.repo.AssertExpectations(t)
}

func TestCatalogService_Create_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input ProductInput
		code  string
	}{
		{"missing title", ProductInput{Price: 100}, "INVALID_INPUT"},
		{"zero price", ProductInput{Title: "Buzo"}, "INVALID_INPUT"},
		{"duplicate color slug", ProductInput{Title: "Buzo", Price: 100, Variants: []VariantInput{
			{Color: "Azul Marino"}, {Color: "azul  marino"},
		}}, "VARIANT_EXISTS"},
		{"duplicate size", ProductInput{Title: "Buzo", Price: 100, Variants: []VariantInput{
			{Color: "Rojo", Sizes: []SizeInput{{Size: "M"}, {Size: "m"}}},
		}}, "INVALID_INPUT"},
		{"negative stock", ProductInput{Title: "Buzo", Price: 100, Variants: []VariantInput{
			{Color: "Rojo", Sizes: []SizeInput{{Size: "M", Stock: -1}}},
		}}, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCatalogFixture()
			_, err := f.svc.Create(context.Background(), domain.CategoryClothing, &tt.input)
			assert.Equal(t, tt.code, appCode(t, err))
			f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestCatalogService_Get_WrongCategoryIsNotFound(t *testing.T) {
	f := newCatalogFixture()
	f.repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)

	_, err := f.svc.Get(context.Background(), domain.CategoryClothing, "p1")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestCatalogService_Update_PartialKeepsVariants(t *testing.T) {
	f := newCatalogFixture()
	f.repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)
	f.repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.Product"), false).Return(nil)

	title := "Runner Pro"
	promo := money.FromMajor(90)
	product, err := f.svc.Update(context.Background(), domain.CategoryFootwear, "p1", &ProductPatch{
		Title:      &title,
		PromoPrice: &promo,
	})

	require.NoError(t, err)
	assert.Equal(t, "Runner Pro", product.Title)
	assert.Equal(t, money.FromMajor(100), product.Price)
	assert.Equal(t, money.FromMajor(90), *product.PromoPrice)
	assert.Len(t, product.Variants, 2)
	assert.Equal(t, []string{event.TopicProductUpdated}, f.events.Topics())
	f.repo.AssertExpectations(t)
}

func TestCatalogService_Replace_KeepsIDsOfUnchangedColors(t *testing.T) {
	f := newCatalogFixture()
	f.repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)
	f.repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.Product"), true).Return(nil)

	product, err := f.svc.Replace(context.Background(), domain.CategoryFootwear, "p1", &ProductInput{
		Title: "Runner",
		Price: money.FromMajor(120),
		Variants: []VariantInput{
			{Color: "NEGRO", Sizes: []SizeInput{{Size: "42", Stock: 1}, {Size: "44", Stock: 2}}},
			{Color: "Verde"},
		},
	})

	require.NoError(t, err)
	require.Len(t, product.Variants, 2)
	assert.Equal(t, "v1", product.Variants[0].ID)
	assert.Equal(t, "s42", product.Variants[0].Sizes[0].ID)
	assert.NotEqual(t, "v2", product.Variants[1].ID)
}

func TestCatalogService_AddVariant_ExistingColorConflicts(t *testing.T) {
	f := newCatalogFixture()
	f.repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)

	_, err := f.svc.AddVariant(context.Background(), domain.CategoryFootwear, "p1", &VariantInput{Color: "NEGRO"})
	assert.Equal(t, "VARIANT_EXISTS", appCode(t, err))
	f.repo.AssertNotCalled(t, "AddVariant", mock.Anything, mock.Anything, mock.Anything)
}

func TestCatalogService_AddVariant(t *testing.T) {
	f := newCatalogFixture()
	f.repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)
	f.repo.On("AddVariant", mock.Anything, "p1", mock.MatchedBy(func(v *domain.Variant) bool {
		return v.ColorSlug == "rojo-fuego" && len(v.Sizes) == 1
	})).Return(nil)

	product, err := f.svc.AddVariant(context.Background(), domain.CategoryFootwear, "p1", &VariantInput{
		Color: "Rojo Fuego",
		Sizes: []SizeInput{{Size: "41", Stock: 2}},
	})
	require.NoError(t, err)
	assert.Len(t, product.Variants, 3)
	f.repo.AssertExpectations(t)
}

func TestCatalogService_UpdateVariant(t *testing.T) {
	t.Run("rename onto another color conflicts", func(t *testing.T) {
		f := newCatalogFixture()
		f.repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)

		color := "azul marino"
		_, err := f.svc.UpdateVariant(context.Background(), domain.CategoryFootwear, "p1", "negro", &VariantPatch{Color: &color})
		assert.Equal(t, "VARIANT_EXISTS", appCode(t, err))
	})

	t.Run("unknown color", func(t *testing.T) {
		f := newCatalogFixture()
		f.repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)

		_, err := f.svc.UpdateVariant(context.Background(), domain.CategoryFootwear, "p1", "fucsia", &VariantPatch{})
		assert.Equal(t, "NO_VARIANT", appCode(t, err))
	})

	t.Run("replaces sizes", func(t *testing.T) {
		f := newCatalogFixture()
		f.repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)
		f.repo.On("UpdateVariant", mock.Anything, mock.AnythingOfType("*domain.Variant"),
			mock.MatchedBy(func(sizes []domain.Size) bool { return len(sizes) == 1 && sizes[0].ID == "s43" })).
			Return(nil)

		product, err := f.svc.UpdateVariant(context.Background(), domain.CategoryFootwear, "p1", "Negro", &VariantPatch{
			Sizes: []SizeInput{{Size: "43", Stock: 9}},
		})
		require.NoError(t, err)
		assert.Equal(t, 9, product.Variants[0].Sizes[0].Stock)
		f.repo.AssertExpectations(t)
	})
}

func TestCatalogService_DeleteVariant_RemovesImages(t *testing.T) {
	f := newCatalogFixture()
	res, err := f.store.Upload(context.Background(), &storage.UploadInput{Key: "products/a.png", Data: strings.NewReader("x")})
	require.NoError(t, err)

	p := sneaker()
	p.Variants[1].Images = []string{res.URL}
	f.repo.On("FindByID", mock.Anything, "p1").Return(p, nil)
	f.repo.On("DeleteVariant", mock.Anything, "v2").Return(nil)

	product, err := f.svc.DeleteVariant(context.Background(), domain.CategoryFootwear, "p1", "azul-marino")
	require.NoError(t, err)
	require.Len(t, product.Variants, 1)
	assert.Equal(t, "v1", product.Variants[0].ID)
	assert.Equal(t, 0, f.store.Len())
}

func TestCatalogService_Delete(t *testing.T) {
	f := newCatalogFixture()
	res, err := f.store.Upload(context.Background(), &storage.UploadInput{Key: "products/cover.png", Data: strings.NewReader("x")})
	require.NoError(t, err)

	p := sneaker()
	p.CoverImage = res.URL
	f.repo.On("FindByID", mock.Anything, "p1").Return(p, nil)
	f.repo.On("Delete", mock.Anything, "p1").Return(nil)

	require.NoError(t, f.svc.Delete(context.Background(), domain.CategoryFootwear, "p1"))
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, []string{"p1"}, f.engine.deleted)
	assert.Equal(t, []string{event.TopicProductDeleted}, f.events.Topics())
}

func TestCatalogService_SetCover_ReplacesPreviousImage(t *testing.T) {
	f := newCatalogFixture()
	old, err := f.store.Upload(context.Background(), &storage.UploadInput{Key: "products/old.png", Data: strings.NewReader("x")})
	require.NoError(t, err)

	p := sneaker()
	p.CoverImage = old.URL
	f.repo.On("FindByID", mock.Anything, "p1").Return(p, nil)
	f.repo.On("Update", mock.Anything, mock.AnythingOfType("*domain.Product"), false).Return(nil)

	product, err := f.svc.SetCover(context.Background(), domain.CategoryFootwear, "p1", pngUpload("front.PNG"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(product.CoverImage, "/uploads/products/"))
	assert.True(t, strings.HasSuffix(product.CoverImage, ".png"))
	assert.Equal(t, 1, f.store.Len())
	key, _ := storage.KeyFromURL(product.CoverImage)
	_, contentType, ok := f.store.Open(key)
	require.True(t, ok)
	assert.Equal(t, "image/png", contentType)
}

func TestCatalogService_SetCover_RejectsNonImages(t *testing.T) {
	f := newCatalogFixture()
	f.repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)

	_, err := f.svc.SetCover(context.Background(), domain.CategoryFootwear, "p1", &Upload{
		Filename: "notes.txt", Size: 5, Data: strings.NewReader("hello"),
	})
	assert.Equal(t, "INVALID_INPUT", appCode(t, err))
	assert.Equal(t, 0, f.store.Len())
	f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestCatalogService_AddAndRemoveVariantImages(t *testing.T) {
	f := newCatalogFixture()
	p := sneaker()
	f.repo.On("FindByID", mock.Anything, "p1").Return(p, nil)
	f.repo.On("UpdateVariant", mock.Anything, mock.AnythingOfType("*domain.Variant"), []domain.Size(nil)).Return(nil)

	product, err := f.svc.AddVariantImages(context.Background(), domain.CategoryFootwear, "p1", "negro",
		[]*Upload{pngUpload("a.png"), pngUpload("b.png")})
	require.NoError(t, err)
	images := product.Variants[0].Images
	require.Len(t, images, 2)
	assert.Equal(t, 2, f.store.Len())

	product, err = f.svc.RemoveVariantImage(context.Background(), domain.CategoryFootwear, "p1", "negro", images[0])
	require.NoError(t, err)
	assert.Len(t, product.Variants[0].Images, 1)
	assert.Equal(t, 1, f.store.Len())

	_, err = f.svc.RemoveVariantImage(context.Background(), domain.CategoryFootwear, "p1", "negro", "/uploads/missing.png")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestCatalogService_AddVariantImages_CleansUpOnFailure(t *testing.T) {
	f := newCatalogFixture()
	f.repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)

	_, err := f.svc.AddVariantImages(context.Background(), domain.CategoryFootwear, "p1", "negro",
		[]*Upload{pngUpload("a.png"), {Filename: "b.txt", Size: 4, Data: strings.NewReader("text")}})
	assert.Equal(t, "INVALID_INPUT", appCode(t, err))
	assert.Equal(t, 0, f.store.Len())
}

func TestCatalogService_IncrementStock(t *testing.T) {
	f := newCatalogFixture()
	f.repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)
	f.repo.On("IncrementStock", mock.Anything, "s43", 4).Return(4, nil)

	size, err := f.svc.IncrementStock(context.Background(), domain.CategoryFootwear, "p1",
		domain.StockAdjustment{Color: "negro", Size: "43", Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, size.Stock)

	require.Len(t, f.events.events, 1)
	var data event.StockAdjustedData
	require.NoError(t, f.events.events[0].UnmarshalData(&data))
	assert.Equal(t, 4, data.Delta)
	assert.Equal(t, StockReasonRestocked, data.Reason)
}

func TestCatalogService_DecrementStock_Errors(t *testing.T) {
	tests := []struct {
		name string
		adj  domain.StockAdjustment
		code string
	}{
		{"unknown color", domain.StockAdjustment{Color: "Blanco", Size: "42", Quantity: 1}, "NO_VARIANT"},
		{"unknown size", domain.StockAdjustment{Color: "Negro", Size: "47", Quantity: 1}, "NO_SIZE"},
		{"zero quantity", domain.StockAdjustment{Color: "Negro", Size: "42", Quantity: 0}, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCatalogFixture()
			f.repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)

			_, err := f.svc.DecrementStock(context.Background(), domain.CategoryFootwear, "p1", tt.adj)
			assert.Equal(t, tt.code, appCode(t, err))
		})
	}

	t.Run("shortfall", func(t *testing.T) {
		f := newCatalogFixture()
		f.repo.On("FindByID", mock.Anything, "p1").Return(sneaker(), nil)
		f.repo.On("DecrementStock", mock.Anything, "s42", 6).
			Return(5, apperrors.InsufficientStock("insufficient stock, available: 5"))

		_, err := f.svc.DecrementStock(context.Background(), domain.CategoryFootwear, "p1",
			domain.StockAdjustment{Color: "Negro", Size: "42", Quantity: 6})
		assert.Equal(t, "NO_STOCK", appCode(t, err))
		assert.Empty(t, f.events.Topics())
	})
}

func TestCatalogService_Search(t *testing.T) {
	t.Run("engine results", func(t *testing.T) {
		f := newCatalogFixture()
		f.engine.results = &search.Result{Documents: []search.Document{{ID: "p9", Title: "Runner"}}, Total: 1}

		docs, total, err := f.svc.Search(context.Background(), "runer", nil, pagination.DefaultParams())
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, "p9", docs[0].ID)
		f.repo.AssertNotCalled(t, "Filter", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("falls back to title filter when disabled", func(t *testing.T) {
		f := newCatalogFixture()
		f.engine.disabled = true
		f.repo.On("Filter", mock.Anything, domain.ProductFilter{Title: "runner"}, pagination.DefaultParams()).
			Return([]domain.Product{*sneaker()}, 1, nil)

		docs, total, err := f.svc.Search(context.Background(), " runner ", nil, pagination.DefaultParams())
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, docs, 1)
		assert.Equal(t, "p1", docs[0].ID)
		assert.Equal(t, []string{"negro", "azul-marino"}, docs[0].ColorSlugs)
	})

	t.Run("empty query", func(t *testing.T) {
		f := newCatalogFixture()
		_, _, err := f.svc.Search(context.Background(), "  ", nil, pagination.DefaultParams())
		assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	})
}
