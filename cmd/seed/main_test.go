package main

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
)

func TestBuildProduct_Deterministic(t *testing.T) {
	a := buildProduct(rand.New(rand.NewPCG(7, 7)), categories[domain.CategoryFootwear], 1)
	b := buildProduct(rand.New(rand.NewPCG(7, 7)), categories[domain.CategoryFootwear], 1)

	assert.Equal(t, a, b)
}

func TestBuildProduct_Shape(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	for category, def := range categories {
		for i := 0; i < 50; i++ {
			p := buildProduct(r, def, i)

			require.NotEmpty(t, p.Title, category)
			assert.Positive(t, int64(p.Price))
			assert.Zero(t, int64(p.Price)%10000, "price is whole hundreds")
			if p.PromoPrice != nil {
				assert.Less(t, int64(*p.PromoPrice), int64(p.Price))
			}
			require.NotEmpty(t, p.Variants)
			seen := map[string]bool{}
			for _, v := range p.Variants {
				assert.False(t, seen[v.Color], "duplicate color %s", v.Color)
				seen[v.Color] = true
				assert.Len(t, v.Sizes, len(def.Sizes))
			}
		}
	}
}
