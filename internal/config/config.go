package config

import (
	"fmt"
	"strings"
	"time"

	pkgconfig "github.com/Rodrigo-Schwindt/Backend-Render/pkg/config"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/database"
)

// Payment gateway drivers.
const (
	GatewayMercadoPago = "mercadopago"
	GatewayMock        = "mock"
)

// Mail drivers.
const (
	MailSMTP = "smtp"
	MailLog  = "log"
)

const minJWTSecretLength = 32

// Config holds all configuration for the storefront backend.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort       int           `env:"PORT" envDefault:"8080"`
	BackendURL     string        `env:"BACKEND_URL" envDefault:"http://localhost:8080"`
	FrontendURL    string        `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	ReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`

	// PostgreSQL. DATABASE_URL wins over the discrete fields.
	DatabaseURL  string `env:"DATABASE_URL"`
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"storefront"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"storefront"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis. REDIS_URL wins over the discrete fields.
	RedisURL  string `env:"REDIS_URL"`
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Elasticsearch. Search falls back to the database when no address is set.
	ElasticsearchURLs     []string `env:"ELASTICSEARCH_URLS" envSeparator:","`
	ElasticsearchUser     string   `env:"ELASTICSEARCH_USERNAME"`
	ElasticsearchPassword string   `env:"ELASTICSEARCH_PASSWORD"`
	ElasticsearchIndex    string   `env:"ELASTICSEARCH_INDEX" envDefault:"products"`

	// Payments
	PaymentGateway     string        `env:"PAYMENT_GATEWAY" envDefault:"mercadopago"`
	MPAccessToken      string        `env:"MP_ACCESS_TOKEN"`
	MPBaseURL          string        `env:"MP_BASE_URL" envDefault:"https://api.mercadopago.com"`
	WebhookDedupTTL    time.Duration `env:"WEBHOOK_DEDUP_TTL" envDefault:"24h"`
	WebhookTimeout     time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"30s"`
	PaymentRateLimit   float64       `env:"PAYMENT_RATE_LIMIT_RPS" envDefault:"2"`
	PaymentRateBurst   int           `env:"PAYMENT_RATE_LIMIT_BURST" envDefault:"10"`
	AuthRateLimit      float64       `env:"AUTH_RATE_LIMIT_RPS" envDefault:"1"`
	AuthRateBurst      int           `env:"AUTH_RATE_LIMIT_BURST" envDefault:"5"`
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleTokenInfoURL string        `env:"GOOGLE_TOKENINFO_URL"`

	// Sessions
	JWTSecret    string        `env:"JWT_SECRET"`
	JWTExpiry    time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`

	// Mail
	MailDriver   string `env:"MAIL_DRIVER" envDefault:"log"`
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM" envDefault:"no-reply@localhost"`

	// Product images
	UploadDir string `env:"UPLOAD_DIR" envDefault:"./uploads"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELInsecure   bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads .env (when present) and then the environment.
func Load() (*Config, error) {
	if err := pkgconfig.LoadDotenv(); err != nil {
		return nil, fmt.Errorf("load dotenv: %w", err)
	}
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.DatabaseURL == "" && c.PostgresHost == "" {
		return fmt.Errorf("DATABASE_URL or POSTGRES_HOST is required")
	}
	if len(c.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if c.JWTExpiry <= 0 {
		return fmt.Errorf("JWT_EXPIRY must be positive, got %s", c.JWTExpiry)
	}
	switch c.PaymentGateway {
	case GatewayMercadoPago:
		if c.MPAccessToken == "" {
			return fmt.Errorf("MP_ACCESS_TOKEN is required when PAYMENT_GATEWAY=%s", GatewayMercadoPago)
		}
	case GatewayMock:
		if c.IsProduction() {
			return fmt.Errorf("PAYMENT_GATEWAY=%s is not allowed in production", GatewayMock)
		}
	default:
		return fmt.Errorf("unknown PAYMENT_GATEWAY %q", c.PaymentGateway)
	}
	switch c.MailDriver {
	case MailSMTP:
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when MAIL_DRIVER=%s", MailSMTP)
		}
	case MailLog:
	default:
		return fmt.Errorf("unknown MAIL_DRIVER %q", c.MailDriver)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// IsProduction reports whether ENVIRONMENT is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Origins returns the CORS allowlist, defaulting to the frontend URL.
func (c *Config) Origins() []string {
	if len(c.AllowedOrigins) > 0 {
		return c.AllowedOrigins
	}
	return []string{strings.TrimRight(c.FrontendURL, "/")}
}

// Postgres returns the pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		URL:             c.DatabaseURL,
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the client configuration.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		URL:      c.RedisURL,
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPass,
		DB:       c.RedisDB,
	}
}
