// Package config defines the process configuration for PlanSwitch.
// Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format is a startup error.
package config

import (
	"time"

	"planswitch/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Components receive only the
// subsets they need.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"OTEL_SERVICE_NAME" default:"planswitch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	Portal        PortalConfig
	Scheduler     SchedulerConfig
	Security      SecurityConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// IsLocal reports whether the process runs in local development mode.
func (c *Config) IsLocal() bool {
	return c.Environment == localEnv
}

// RequireAdminAPIKey reports a missing ADMIN_API_KEY. Entry points that
// mount the operator API call it after LoadConfig.
func (c *Config) RequireAdminAPIKey() error {
	if c.Security.AdminAPIKey.IsZero() {
		return &ConfigError{
			Type:    ErrMissingEnv,
			Message: "required configuration missing: Config.Security.AdminAPIKey (ADMIN_API_KEY)",
		}
	}
	return nil
}

// ServerConfig holds the operator HTTP API settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"5"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`

	// AutoMigrate applies db.Schema at startup. Local development only.
	AutoMigrate bool `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// PortalConfig controls how the automation engine talks to the portal.
type PortalConfig struct {
	// RequestTimeout applies when the stored run configuration has none.
	RequestTimeout     time.Duration `envconfig:"PORTAL_REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`
	LoginPath          string        `envconfig:"PORTAL_LOGIN_PATH" default:"/login" validate:"startswith=/"`
	ConfirmPath        string        `envconfig:"PORTAL_CONFIRM_PATH" default:"/confirm_service" validate:"startswith=/"`
	ServiceDetailsPath string        `envconfig:"PORTAL_SERVICE_DETAILS_PATH" default:"/service_details" validate:"startswith=/"`
	SuccessKeywords    []string      `envconfig:"PORTAL_SUCCESS_KEYWORDS" default:"confirmed,success,submitted,thank you" validate:"min=1"`

	BreakerThreshold uint32        `envconfig:"PORTAL_BREAKER_THRESHOLD" default:"5" validate:"gte=1"`
	BreakerCooldown  time.Duration `envconfig:"PORTAL_BREAKER_COOLDOWN" default:"60s"`
}

// SchedulerConfig controls the in-process trigger scheduler. The tick period
// is fixed at one minute and is not configurable.
type SchedulerConfig struct {
	Enabled           bool `envconfig:"SCHEDULER_ENABLED" default:"true"`
	MaxConcurrentRuns int  `envconfig:"SCHEDULER_MAX_CONCURRENT_RUNS" default:"4" validate:"gte=1"`
}

// SecurityConfig holds operator access and at-rest sealing secrets.
type SecurityConfig struct {
	// AdminAPIKey is needed only by processes serving the operator API; see
	// RequireAdminAPIKey.
	AdminAPIKey SecretString `envconfig:"ADMIN_API_KEY"`
	// SealingKey is a hex-encoded 32-byte key sealing stored portal secrets.
	SealingKey SecretString `envconfig:"SEALING_KEY" validate:"required,len=64,hexadecimal"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// ResultsQueueURL receives one message per recorded run. Optional.
	ResultsQueueURL string `envconfig:"RESULTS_QUEUE_URL" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"PlanSwitch"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
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
