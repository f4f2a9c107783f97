// Command seed populates an empty storefront database with demo products in
// every category. Categories that already hold products are left alone, so
// it is safe to run on every deploy.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/event"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/repository/postgres"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/search/noop"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/service"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/storage/memory"
	"github.com/Rodrigo-Schwindt/Backend-Render/migrations"
	pkgconfig "github.com/Rodrigo-Schwindt/Backend-Render/pkg/config"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/database"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/logger"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/pagination"
)

type seedConfig struct {
	DatabaseURL  string `env:"DATABASE_URL"`
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"storefront"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"storefront"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	PerCategory int    `env:"SEED_PRODUCTS_PER_CATEGORY" envDefault:"40"`
	RandomSeed  uint64 `env:"SEED_RANDOM_SEED" envDefault:"42"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// ---------------------------------------------------------------------------
// Catalog vocabulary
// ---------------------------------------------------------------------------

type colorDef struct {
	Name string
	Code string
}

var (
	brands = []string{"Nike", "Adidas", "Puma", "Topper", "Fila", "New Balance", "Reebok", "Vans"}

	colors = []colorDef{
		{"Negro", "#000000"},
		{"Blanco", "#FFFFFF"},
		{"Azul Marino", "#1F2A44"},
		{"Rojo", "#C62828"},
		{"Gris Melange", "#9E9E9E"},
		{"Verde Oliva", "#556B2F"},
	}

	generos = []string{"hombre", "mujer", "unisex"}
)

type categoryDef struct {
	Nouns []string
	Types []string
	Sizes []string
	Price [2]int64
}

var categories = map[domain.Category]categoryDef{
	domain.CategoryFootwear: {
		Nouns: []string{"Zapatilla", "Botín", "Sandalia", "Ojota"},
		Types: []string{"running", "urbana", "training", "outdoor"},
		Sizes: []string{"38", "39", "40", "41", "42", "43", "44"},
		Price: [2]int64{45000, 180000},
	},
	domain.CategoryClothing: {
		Nouns: []string{"Remera", "Buzo", "Campera", "Pantalón", "Short"},
		Types: []string{"deportiva", "casual", "abrigo"},
		Sizes: []string{"XS", "S", "M", "L", "XL", "XXL"},
		Price: [2]int64{15000, 120000},
	},
	domain.CategoryAccessories: {
		Nouns: []string{"Gorra", "Mochila", "Medias", "Bolso", "Riñonera"},
		Types: []string{"deportivo", "urbano", "viaje"},
		Sizes: []string{"U"},
		Price: [2]int64{5000, 60000},
	},
}

var adjectives = []string{"Classic", "Pro", "Flex", "Air", "Urban", "Trail", "Essential", "Retro"}

// ---------------------------------------------------------------------------
// Generation
// ---------------------------------------------------------------------------

func pick[T any](r *rand.Rand, s []T) T {
	return s[r.IntN(len(s))]
}

func pickN[T any](r *rand.Rand, s []T, n int) []T {
	idx := r.Perm(len(s))
	if n > len(s) {
		n = len(s)
	}
	out := make([]T, n)
	for i := range out {
		out[i] = s[idx[i]]
	}
	return out
}

func buildProduct(r *rand.Rand, def categoryDef, i int) *service.ProductInput {
	brand := pick(r, brands)
	noun := pick(r, def.Nouns)
	title := fmt.Sprintf("%s %s %s", noun, brand, pick(r, adjectives))

	// Whole hundreds.
	major := def.Price[0] + r.Int64N(def.Price[1]-def.Price[0])
	major -= major % 100
	price := money.FromMajor(major)

	input := &service.ProductInput{
		Title:       title,
		Price:       price,
		SKU:         fmt.Sprintf("SEED-%05d", i),
		Brand:       brand,
		Types:       pickN(r, def.Types, 1+r.IntN(2)),
		Genero:      []string{pick(r, generos)},
		Description: fmt.Sprintf("%s de %s. Producto de demostración.", noun, brand),
		Dimensions: domain.Dimensions{
			WeightKg: float64(2+r.IntN(18)) / 10,
			DepthCm:  float64(10 + r.IntN(30)),
			WidthCm:  float64(10 + r.IntN(30)),
			HeightCm: float64(5 + r.IntN(20)),
		},
	}
	if r.IntN(5) == 0 {
		promo := money.FromMajor(major * 80 / 100)
		input.PromoPrice = &promo
	}

	for _, c := range pickN(r, colors, 1+r.IntN(3)) {
		v := service.VariantInput{Color: c.Name, ColorCode: c.Code}
		for _, size := range def.Sizes {
			v.Sizes = append(v.Sizes, service.SizeInput{Size: size, Stock: r.IntN(15)})
		}
		input.Variants = append(input.Variants, v)
	}
	return input
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	if err := pkgconfig.LoadDotenv(); err != nil {
		slog.Error("failed to load .env", slog.String("error", err.Error()))
		os.Exit(1)
	}
	var cfg seedConfig
	if err := pkgconfig.Load(&cfg); err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("storefront-seed", cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg seedConfig, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pgCfg := database.DefaultPostgresConfig()
	pgCfg.URL = cfg.DatabaseURL
	pgCfg.Host = cfg.PostgresHost
	pgCfg.Port = cfg.PostgresPort
	pgCfg.User = cfg.PostgresUser
	pgCfg.Password = cfg.PostgresPass
	pgCfg.DBName = cfg.PostgresDB
	pgCfg.SSLMode = cfg.PostgresSSL

	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	catalog := service.NewCatalogService(
		postgres.NewProductRepository(pool),
		memory.New(""),
		noop.New(),
		event.NewProducer(event.NoopPublisher{}, log),
		log,
	)

	r := rand.New(rand.NewPCG(cfg.RandomSeed, cfg.RandomSeed))
	n := 0
	for _, category := range []domain.Category{domain.CategoryFootwear, domain.CategoryClothing, domain.CategoryAccessories} {
		_, total, err := catalog.List(ctx, category, pagination.DefaultParams())
		if err != nil {
			return fmt.Errorf("count %s: %w", category, err)
		}
		if total > 0 {
			log.Info("category already seeded", slog.String("category", string(category)), slog.Int("products", total))
			continue
		}

		for i := 0; i < cfg.PerCategory; i++ {
			n++
			if _, err := catalog.Create(ctx, category, buildProduct(r, categories[category], n)); err != nil {
				return fmt.Errorf("create %s product %d: %w", category, i, err)
			}
		}
		log.Info("seeded category", slog.String("category", string(category)), slog.Int("products", cfg.PerCategory))
	}
	return nil
}
