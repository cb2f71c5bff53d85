// Package config defines the global configuration structure for Postroom.
// Configuration is loaded once at process startup and is immutable
// thereafter, following 12-Factor principles: code and configuration stay
// strictly separated, and any missing required value fails the process
// immediately.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
package config

import (
	"time"

	"postroom/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for Postroom. It is populated
// once during process initialization and never modified. Sub-components
// receive only the specific config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"postroom-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	LLM      LLMConfig
	Email    EmailConfig
	Billing  BillingConfig
	Security SecurityConfig
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// Public URLs for invite links and dashboard redirects (no trailing slash).
	APIExternalURL string `envconfig:"API_EXTERNAL_URL" validate:"required,url"`
	DashboardURL   string `envconfig:"DASHBOARD_URL" validate:"required,url"`

	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// StorageConfig holds S3 object storage settings for asset uploads.
type StorageConfig struct {
	Region      string        `envconfig:"AWS_REGION" default:"us-east-1"`
	AssetBucket string        `envconfig:"ASSET_BUCKET" validate:"required"`
	PresignTTL  time.Duration `envconfig:"PRESIGN_TTL" default:"15m"`

	// LocalStack / MinIO support; empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// LLMConfig holds the hosted chat-completion gateway settings for the spark
// generation feature.
type LLMConfig struct {
	APIKey   SecretString  `envconfig:"LLM_API_KEY" validate:"required"`
	BaseURL  string        `envconfig:"LLM_BASE_URL" validate:"required,url"`
	Model    string        `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`
	Timeout  time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`
	MaxWords int           `envconfig:"LLM_MAX_WORDS" default:"280"`
}

// EmailConfig holds email delivery provider credentials.
type EmailConfig struct {
	SendGridAPIKey SecretString `envconfig:"SENDGRID_API_KEY" validate:"required"`
	FromAddress    string       `envconfig:"EMAIL_FROM_ADDRESS" default:"hello@postroom.app"`
	FromName       string       `envconfig:"EMAIL_FROM_NAME" default:"Postroom"`
	Enabled        bool         `envconfig:"FEATURE_ENABLE_EMAIL" default:"true"`
}

// BillingConfig holds Stripe payment integration credentials.
type BillingConfig struct {
	StripeSecretKey     SecretString `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
	StripeWebhookSecret SecretString `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`
	ProPriceID          string       `envconfig:"STRIPE_PRO_PRICE_ID" validate:"required"`
}

// SecurityConfig holds CORS and admin access settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	BcryptCost         int      `envconfig:"BCRYPT_COST" default:"10"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
