package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the environment driven configuration shared by the API and
// the outbox publisher.
type Config struct {
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"truetestify"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8081"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	DatabaseURL    string        `env:"DATABASE_URL,notEmpty"`
	DBMaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	DBAutoMigrate  bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	JWTSecret string `env:"JWT_SECRET"`

	// "s3" or "local"
	StorageBackend      string        `env:"STORAGE_BACKEND" envDefault:"s3"`
	LocalStoragePath    string        `env:"LOCAL_STORAGE_PATH" envDefault:"./media-data"`
	LocalStorageBaseURL string        `env:"LOCAL_STORAGE_BASE_URL"`
	S3Endpoint          string        `env:"S3_ENDPOINT"`
	S3Region            string        `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket            string        `env:"S3_BUCKET"`
	S3AccessKeyID       string        `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey         string        `env:"S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle      bool          `env:"S3_USE_PATH_STYLE" envDefault:"true"`
	SignedURLTTL        time.Duration `env:"SIGNED_URL_TTL" envDefault:"15m"`

	MaxUploadBytes  int64  `env:"MAX_UPLOAD_BYTES" envDefault:"209715200"`
	TranscodeTarget string `env:"TRANSCODE_TARGET" envDefault:"h264-720p"`

	KafkaBrokers    []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaTopic      string        `env:"KAFKA_TOPIC" envDefault:"truetestify.reviews"`
	OutboxInterval  time.Duration `env:"OUTBOX_INTERVAL" envDefault:"1s"`
	OutboxBatchSize int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	StripePriceStarter  string `env:"STRIPE_PRICE_STARTER"`
	StripePricePro      string `env:"STRIPE_PRICE_PRO"`
	StripePriceBusiness string `env:"STRIPE_PRICE_BUSINESS"`
	BillingSuccessURL   string `env:"BILLING_SUCCESS_URL" envDefault:"http://localhost:3000/billing/success"`
	BillingCancelURL    string `env:"BILLING_CANCEL_URL" envDefault:"http://localhost:3000/billing/cancel"`
	BillingReturnURL    string `env:"BILLING_RETURN_URL" envDefault:"http://localhost:3000/billing"`
}

// Load parses environment variables into Config and checks the settings
// that depend on each other.
func Load() (*Config, error) {
	return load(env.Options{})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.S3Bucket = strings.TrimSpace(cfg.S3Bucket)
	cfg.S3AccessKeyID = strings.TrimSpace(cfg.S3AccessKeyID)
	cfg.S3SecretKey = strings.TrimSpace(cfg.S3SecretKey)
	cfg.S3Endpoint = strings.TrimSpace(cfg.S3Endpoint)
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))

	switch cfg.StorageBackend {
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND is s3")
		}
	case "local":
		if strings.TrimSpace(cfg.LocalStoragePath) == "" {
			return nil, fmt.Errorf("LOCAL_STORAGE_PATH is required when STORAGE_BACKEND is local")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}

	if strings.TrimSpace(cfg.JWTSecret) == "" && !cfg.IsDevelopment() {
		return nil, fmt.Errorf("JWT_SECRET is required outside development")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 200 << 20
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "development")
}

func (c *Config) IsLocalStorage() bool {
	return c.StorageBackend == "local"
}

// StripeEnabled reports whether real Stripe calls should be made. In
// development without a key, billing runs against the simulated provider.
func (c *Config) StripeEnabled() bool {
	return strings.TrimSpace(c.StripeSecretKey) != ""
}
