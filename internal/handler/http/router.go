package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/service"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/storage"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/health"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/middleware"
)

const serviceName = "storefront"

// RouterConfig holds everything the router mounts.
type RouterConfig struct {
	Cart     *service.CartValidator
	Catalog  *service.CatalogService
	Payments *service.PaymentService
	Users    *service.UserService

	Tokens  middleware.TokenValidator
	Cookie  SessionCookie
	Health  *health.Handler
	CORS    middleware.CORSConfig
	Uploads http.Handler

	// AuthLimiter and PaymentLimiter are optional per-IP limits.
	AuthLimiter    *middleware.RateLimiter
	PaymentLimiter *middleware.RateLimiter

	PprofCIDRs []string
	Logger     *slog.Logger
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if cfg.Cookie.Name == "" {
		cfg.Cookie.Name = DefaultSessionCookie
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))

	// Health check and metrics endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	if cfg.Uploads != nil {
		r.Handle(storage.PublicPrefix+"*", http.StripPrefix(storage.PublicPrefix, cfg.Uploads))
	}

	authCfg := middleware.AuthConfig{Validate: cfg.Tokens, CookieName: cfg.Cookie.Name}
	requireAuth := middleware.Auth(authCfg)
	requireAdmin := middleware.RequireRole(domain.RoleAdmin)

	cartHandler := NewCartHandler(cfg.Cart, logger)
	catalogHandler := NewCatalogHandler(cfg.Catalog, logger)
	paymentHandler := NewPaymentHandler(cfg.Payments, logger)
	userHandler := NewUserHandler(cfg.Users, cfg.Cookie, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/cart/validate", cartHandler.Validate)

		// Payments
		r.Route("/payments", func(r chi.Router) {
			r.Post("/webhook", paymentHandler.Webhook)

			r.Group(func(r chi.Router) {
				r.Use(limit(cfg.PaymentLimiter))
				r.Use(middleware.OptionalAuth(authCfg))

				r.Post("/preference", paymentHandler.CreatePreference)
				r.Post("/charge", paymentHandler.Charge)
			})
		})

		r.With(requireAuth, requireAdmin).Get("/orders/{id}", paymentHandler.GetOrder)

		// Cross-category product queries
		r.Route("/products", func(r chi.Router) {
			r.Use(middleware.CacheControl(60))

			r.Get("/filter", catalogHandler.Filter)
			r.Get("/search", catalogHandler.Search)
		})

		// Per-category catalog
		r.Route("/catalog/{category}", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.CacheControl(60))

				r.Get("/", catalogHandler.List)
				r.Get("/filter", catalogHandler.FilterCategory)
				r.Get("/types-brands", catalogHandler.TypesAndBrands)
				r.Get("/{id}", catalogHandler.Get)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, requireAdmin)

				r.Post("/", catalogHandler.Create)
				r.Put("/{id}", catalogHandler.Replace)
				r.Patch("/{id}", catalogHandler.Update)
				r.Delete("/{id}", catalogHandler.Delete)
				r.Put("/{id}/cover", catalogHandler.SetCover)

				r.Post("/{id}/variants", catalogHandler.AddVariant)
				r.Post("/{id}/variants/increment", catalogHandler.IncrementStock)
				r.Post("/{id}/variants/decrement", catalogHandler.DecrementStock)
				r.Put("/{id}/variants/{color}", catalogHandler.UpdateVariant)
				r.Delete("/{id}/variants/{color}", catalogHandler.DeleteVariant)
				r.Post("/{id}/variants/{color}/images", catalogHandler.AddVariantImages)
				r.Delete("/{id}/variants/{color}/images", catalogHandler.RemoveVariantImage)
			})
		})

		// Users and auth
		r.Route("/users", func(r chi.Router) {
			r.Get("/verify", userHandler.Verify)
			r.Post("/logout", userHandler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(limit(cfg.AuthLimiter))

				r.Post("/register", userHandler.Register)
				r.Post("/login", userHandler.Login)
				r.Post("/auth/google", userHandler.LoginWithGoogle)
				r.Post("/resend-verification", userHandler.ResendVerification)
				r.Post("/forgot-password", userHandler.ForgotPassword)
				r.Post("/reset-password", userHandler.ResetPassword)
			})

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)

				r.Get("/me", userHandler.Me)
				r.Post("/send-invoice", userHandler.SendInvoice)
				r.With(requireAdmin).Get("/", userHandler.List)
			})
		})
	})

	return r
}

func limit(l *middleware.RateLimiter) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return l.Middleware
}
