package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/auth"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/config"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/event"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/gateway"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/gateway/mercadopago"
	gatewaymock "github.com/Rodrigo-Schwindt/Backend-Render/internal/gateway/mock"
	handler "github.com/Rodrigo-Schwindt/Backend-Render/internal/handler/http"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/mailer"
	mailermock "github.com/Rodrigo-Schwindt/Backend-Render/internal/mailer/mock"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/mailer/smtp"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/repository/postgres"
	redisrepo "github.com/Rodrigo-Schwindt/Backend-Render/internal/repository/redis"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/search"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/search/elasticsearch"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/search/noop"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/service"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/storage/local"
	"github.com/Rodrigo-Schwindt/Backend-Render/migrations"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/database"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/health"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/httpclient"
	pkgkafka "github.com/Rodrigo-Schwindt/Backend-Render/pkg/kafka"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/middleware"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/tracing"
)

const (
	serviceName    = "storefront"
	serviceVersion = "0.1.0"

	idempotencyPrefix = "storefront:consumed:"
	idempotencyTTL    = 24 * time.Hour
)

// App wires together all dependencies and runs the storefront backend.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumers      []*pkgkafka.Consumer
	payments       *service.PaymentService
	limiters       []*middleware.RateLimiter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// Resources opened before a failure are closed again.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.closeResources()
		}
	}()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		Insecure:       cfg.OTELInsecure,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	logger.Info("connected to PostgreSQL", slog.String("database", pgCfg.DBName))

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Initialize Redis.
	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = redisClient
	logger.Info("connected to Redis")

	// Events. Without Kafka they are dropped and no notifier runs.
	var publisher event.Publisher = event.NoopPublisher{}
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = a.producer
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	eventProducer := event.NewProducer(publisher, logger)

	// Outbound HTTP for third-party APIs.
	baseClient := httpclient.New(httpclient.DefaultConfig())

	gw, err := newGateway(cfg, baseClient, logger)
	if err != nil {
		return nil, err
	}

	engine, err := newSearchEngine(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	sender := newMailSender(cfg, logger)
	composer := mailer.NewComposer(cfg.FrontendURL)

	if cfg.KafkaEnabled {
		a.dlq = pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)
		store := pkgkafka.NewRedisIdempotencyStore(redisClient, idempotencyPrefix, idempotencyTTL)
		consumerHandler := event.NewConsumerHandler(composer, sender, logger)
		a.consumers = event.NewConsumers(cfg.KafkaBrokers, consumerHandler, store, a.dlq, logger)
	}

	images, err := local.New(cfg.UploadDir, cfg.BackendURL)
	if err != nil {
		return nil, fmt.Errorf("init image storage: %w", err)
	}

	// Build the dependency graph.
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiry)
	productRepo := postgres.NewProductRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	dedup := redisrepo.NewWebhookDeduplicator(redisClient)

	var google service.IdentityVerifier
	if cfg.GoogleClientID != "" {
		googleClient := httpclient.NewCircuitBreakerClient(baseClient, httpclient.DefaultCircuitBreakerConfig("google"), logger)
		google = auth.NewGoogleVerifier(googleClient, cfg.GoogleClientID, cfg.GoogleTokenInfoURL)
	}

	cartValidator := service.NewCartValidator(productRepo, logger)
	reconciler := service.NewReconciler(cartValidator, logger)
	catalogService := service.NewCatalogService(productRepo, images, engine, eventProducer, logger)
	a.payments = service.NewPaymentService(reconciler, orderRepo, gw, dedup, eventProducer, service.PaymentConfig{
		BackendURL:     cfg.BackendURL,
		FrontendURL:    cfg.FrontendURL,
		DedupTTL:       cfg.WebhookDedupTTL,
		WebhookTimeout: cfg.WebhookTimeout,
	}, logger)
	userService := service.NewUserService(userRepo, jwtManager, google, composer, sender, eventProducer, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	if a.producer != nil {
		producer := a.producer
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return producer.Ping(ctx)
		})
	}
	if es, isES := engine.(*elasticsearch.Engine); isES {
		healthHandler.RegisterNonCritical("elasticsearch", es.Ping)
	}

	authLimiter := middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst, logger)
	paymentLimiter := middleware.NewRateLimiter(cfg.PaymentRateLimit, cfg.PaymentRateBurst, logger)
	a.limiters = []*middleware.RateLimiter{authLimiter, paymentLimiter}

	// HTTP router.
	router := handler.NewRouter(handler.RouterConfig{
		Cart:           cartValidator,
		Catalog:        catalogService,
		Payments:       a.payments,
		Users:          userService,
		Tokens:         jwtManager.Validate,
		Cookie:         handler.SessionCookie{Name: handler.DefaultSessionCookie, Secure: cfg.CookieSecure},
		Health:         healthHandler,
		CORS:           middleware.DefaultCORSConfig(cfg.Origins()...),
		Uploads:        http.FileServer(http.Dir(images.Root())),
		AuthLimiter:    authLimiter,
		PaymentLimiter: paymentLimiter,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		Logger:         logger,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ok = true
	return a, nil
}

func newGateway(cfg *config.Config, base httpclient.Doer, logger *slog.Logger) (gateway.Gateway, error) {
	if cfg.PaymentGateway == config.GatewayMock {
		logger.Warn("using mock payment gateway")
		return gatewaymock.New(), nil
	}
	doer := httpclient.NewCircuitBreakerClient(base, httpclient.DefaultCircuitBreakerConfig("mercadopago"), logger)
	client, err := mercadopago.New(mercadopago.Config{
		AccessToken: cfg.MPAccessToken,
		BaseURL:     cfg.MPBaseURL,
	}, doer, logger)
	if err != nil {
		return nil, fmt.Errorf("init mercadopago: %w", err)
	}
	return client, nil
}

func newSearchEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (search.Engine, error) {
	if len(cfg.ElasticsearchURLs) == 0 {
		logger.Info("elasticsearch not configured, searching the database")
		return noop.New(), nil
	}
	engine, err := elasticsearch.New(ctx, elasticsearch.Config{
		Addresses: cfg.ElasticsearchURLs,
		Username:  cfg.ElasticsearchUser,
		Password:  cfg.ElasticsearchPassword,
		IndexName: cfg.ElasticsearchIndex,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init elasticsearch: %w", err)
	}
	return engine, nil
}

func newMailSender(cfg *config.Config, logger *slog.Logger) mailer.Sender {
	if cfg.MailDriver == config.MailSMTP {
		return smtp.New(smtp.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		}, logger)
	}
	return mailermock.New(logger)
}

// Run starts the HTTP server, the rate limiter janitors and the Kafka
// consumers, and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	bgCtx, stopBackground := context.WithCancel(ctx)
	var wg sync.WaitGroup

	for _, l := range a.limiters {
		wg.Add(1)
		go func(l *middleware.RateLimiter) {
			defer wg.Done()
			l.Run(bgCtx)
		}(l)
	}

	for _, c := range a.consumers {
		wg.Add(1)
		go func(c *pkgkafka.Consumer) {
			defer wg.Done()
			if err := c.Start(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("kafka consumer stopped", slog.String("error", err.Error()))
			}
		}(c)
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	stopBackground()
	wg.Wait()

	return errors.Join(runErr, a.Shutdown())
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. In-flight webhook fulfillment
// 3. Tracer (flush pending spans)
// 4. Kafka consumers and producers, Redis, PostgreSQL
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Webhook goroutines are bounded by their own timeout.
	a.payments.Wait()

	// 3. Flush pending spans.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Remaining resources.
	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error
	for _, c := range a.consumers {
		if err := c.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("kafka dlq close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errors.Join(errs...)
}
