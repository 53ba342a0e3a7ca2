// Package config defines the process configuration for the pricebook services.
// Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

// Catalog definition sources.
const (
	SourceDir = "dir"
	SourceS3  = "s3"
	SourceDB  = "db"
)

// Config is the top-level configuration struct.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"pricebook"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Catalog       CatalogConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// CatalogConfig selects where catalog definitions are read from and how the
// loaded catalog behaves.
type CatalogConfig struct {
	Source string `envconfig:"CATALOG_SOURCE" default:"dir" validate:"oneof=dir s3 db"`
	Dir    string `envconfig:"CATALOG_DIR" validate:"required_if=Source dir"`
	Bucket string `envconfig:"CATALOG_BUCKET" validate:"required_if=Source s3"`
	Prefix string `envconfig:"CATALOG_PREFIX"`

	// AllowEarlyDates resolves dates before the first version against the
	// first version instead of failing.
	AllowEarlyDates bool `envconfig:"ALLOW_EARLY_DATES" default:"true"`
	CacheSize       int  `envconfig:"CACHE_SIZE" default:"4096" validate:"min=0"`
}

// DatabaseConfig holds database connection parameters. The URL is only
// required when catalogs are read from or published to Postgres.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"omitempty,url"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	ReloadQueueURL string        `envconfig:"RELOAD_QUEUE_URL" validate:"omitempty,url"`
	ReloadPollWait time.Duration `envconfig:"RELOAD_POLL_WAIT" default:"20s"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Pricebook"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)

// NewLogger creates a JSON slog.Logger writing to w at the configured level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(c.LogLevel)})
	return slog.New(handler).With("service", c.Service, "environment", c.Environment)
}

// ParseLevel maps a LOG_LEVEL value to a slog.Level. Unknown values are Info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
