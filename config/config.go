package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const VERSION = "1.4"

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Worker      WorkerConfig
	Webhook     WebhookConfig
	Security    SecurityConfig
	Tracing     TracingConfig
	Environment string
	LogLevel    string
	Version     string
}

type ServerConfig struct {
	Port int
	Host string

	// APIEndpoint is the externally reachable base URL of this API, used to
	// build absolute poll URLs. Empty means relative URLs.
	APIEndpoint string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the lib/pq connection string for the configured database.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type WorkerConfig struct {
	// EmailConcurrency is the number of email delivery workers
	EmailConcurrency int

	// WebhookConcurrency is the number of webhook delivery workers
	WebhookConcurrency int

	// PollInterval is how long an idle worker sleeps between dequeue attempts
	PollInterval time.Duration

	// VisibilityTimeout is how long a dequeued task stays invisible to other
	// workers before it is redelivered
	VisibilityTimeout time.Duration

	// ReconcileInterval is how often the reconciler looks for jobs that were
	// committed but never enqueued
	ReconcileInterval time.Duration

	// EmailMaxRetries is the retry budget stamped onto new email jobs
	EmailMaxRetries int
}

type WebhookConfig struct {
	// Timeout is the per-request timeout for webhook POSTs
	Timeout time.Duration

	// MaxAttempts is the number of completed failed attempts before a
	// delivery is abandoned
	MaxAttempts int
}

type SecurityConfig struct {
	// SecretKey is the passphrase for SMTP credential encryption and
	// webhook payload signing
	SecretKey string
}

type TracingConfig struct {
	Enabled             bool
	ServiceName         string
	SamplingProbability float64

	// Trace exporter configuration
	TraceExporter string // "jaeger", "zipkin", "none"

	// Jaeger settings
	JaegerEndpoint string

	// Zipkin settings
	ZipkinEndpoint string

	// Metrics exporter configuration
	MetricsExporter string // "prometheus", "none"
	PrometheusPort  int
}

// LoadOptions contains options for loading configuration
type LoadOptions struct {
	EnvFile string // Optional environment file to load (e.g., ".env", ".env.test")
}

// Load loads the configuration with default options
func Load() (*Config, error) {
	// Try to load .env file but don't require it
	return LoadWithOptions(LoadOptions{EnvFile: ".env"})
}

// LoadWithOptions loads the configuration with the specified options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("API_ENDPOINT", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "easeemail")
	v.SetDefault("DB_SSLMODE", "require")
	v.SetDefault("ENVIRONMENT", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("VERSION", VERSION)

	// Worker defaults
	v.SetDefault("WORKER_EMAIL_CONCURRENCY", 4)
	v.SetDefault("WORKER_WEBHOOK_CONCURRENCY", 2)
	v.SetDefault("WORKER_POLL_INTERVAL", "1s")
	v.SetDefault("WORKER_VISIBILITY_TIMEOUT", "5m")
	v.SetDefault("WORKER_RECONCILE_INTERVAL", "1m")
	v.SetDefault("EMAIL_MAX_RETRIES", 3)

	// Webhook defaults
	v.SetDefault("WEBHOOK_TIMEOUT", "10s")
	v.SetDefault("WEBHOOK_MAX_ATTEMPTS", 3)

	// Default tracing config
	v.SetDefault("TRACING_ENABLED", false)
	v.SetDefault("TRACING_SERVICE_NAME", "easeemail-api")
	v.SetDefault("TRACING_SAMPLING_PROBABILITY", 0.1)
	v.SetDefault("TRACING_TRACE_EXPORTER", "none")
	v.SetDefault("TRACING_JAEGER_ENDPOINT", "http://localhost:14268/api/traces")
	v.SetDefault("TRACING_ZIPKIN_ENDPOINT", "http://localhost:9411/api/v2/spans")
	v.SetDefault("TRACING_METRICS_EXPORTER", "none")
	v.SetDefault("TRACING_PROMETHEUS_PORT", 9464)

	// Load environment file if specified
	if opts.EnvFile != "" {
		v.SetConfigName(opts.EnvFile)
		v.SetConfigType("env")

		currentPath, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("error getting current directory: %w", err)
		}

		v.AddConfigPath(currentPath)

		if err := v.ReadInConfig(); err != nil {
			// It's okay if config file doesn't exist
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	// Read environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Validate required configuration
	secretKey := v.GetString("SECRET_KEY")
	if secretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY is required")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        v.GetInt("SERVER_PORT"),
			Host:        v.GetString("SERVER_HOST"),
			APIEndpoint: strings.TrimRight(v.GetString("API_ENDPOINT"), "/"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Worker: WorkerConfig{
			EmailConcurrency:   v.GetInt("WORKER_EMAIL_CONCURRENCY"),
			WebhookConcurrency: v.GetInt("WORKER_WEBHOOK_CONCURRENCY"),
			PollInterval:       v.GetDuration("WORKER_POLL_INTERVAL"),
			VisibilityTimeout:  v.GetDuration("WORKER_VISIBILITY_TIMEOUT"),
			ReconcileInterval:  v.GetDuration("WORKER_RECONCILE_INTERVAL"),
			EmailMaxRetries:    v.GetInt("EMAIL_MAX_RETRIES"),
		},
		Webhook: WebhookConfig{
			Timeout:     v.GetDuration("WEBHOOK_TIMEOUT"),
			MaxAttempts: v.GetInt("WEBHOOK_MAX_ATTEMPTS"),
		},
		Security: SecurityConfig{
			SecretKey: secretKey,
		},
		Tracing: TracingConfig{
			Enabled:             v.GetBool("TRACING_ENABLED"),
			ServiceName:         v.GetString("TRACING_SERVICE_NAME"),
			SamplingProbability: v.GetFloat64("TRACING_SAMPLING_PROBABILITY"),
			TraceExporter:       v.GetString("TRACING_TRACE_EXPORTER"),
			JaegerEndpoint:      v.GetString("TRACING_JAEGER_ENDPOINT"),
			ZipkinEndpoint:      v.GetString("TRACING_ZIPKIN_ENDPOINT"),
			MetricsExporter:     v.GetString("TRACING_METRICS_EXPORTER"),
			PrometheusPort:      v.GetInt("TRACING_PROMETHEUS_PORT"),
		},
		Environment: v.GetString("ENVIRONMENT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		Version:     v.GetString("VERSION"),
	}

	return config, nil
}

// IsDevelopment returns true if the environment is set to development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
