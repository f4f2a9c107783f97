package search_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/search"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/search/noop"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"
)

func TestFromProduct(t *testing.T) {
	p := &domain.Product{
		ID: "p1", Title: "Remera", Brand: "Adidas Originals", Types: []string{"Remeras"},
		Price: money.FromMajor(15),
		Variants: []domain.Variant{
			{Color: "Azul Marino", Sizes: []domain.Size{{Size: "M", Stock: 2}, {Size: "L", Stock: 0}}},
			{Color: "Blanco", Sizes: []domain.Size{{Size: "M", Stock: 1}, {Size: "S", Stock: 3}}},
		},
	}
	p.Normalize()

	d := search.FromProduct(p)
	assert.Equal(t, "adidas-originals", d.BrandSlug)
	assert.Equal(t, []string{"azul-marino", "blanco"}, d.ColorSlugs)
	assert.Equal(t, []string{"M", "S"}, d.Sizes)
	assert.Equal(t, money.FromMajor(15), d.PriceAmount())
}

func TestNoop(t *testing.T) {
	var e search.Engine = noop.New()
	assert.NoError(t, e.Index(context.Background(), &search.Document{}))
	assert.NoError(t, e.Delete(context.Background(), "x"))
	_, err := e.Search(context.Background(), &search.Query{Text: "x"})
	assert.ErrorIs(t, err, search.ErrDisabled)
}
