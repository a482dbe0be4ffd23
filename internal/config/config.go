// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Compare   CompareConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	Retention RetentionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading the request, including uploads (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing the response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 2m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"2m"`
}

// DatabaseConfig holds database connection settings. Runs are kept in
// memory when URL is empty.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate applies schema migrations on startup (default: true)
	Migrate bool `env:"DB_MIGRATE" default:"true"`
}

// CompareConfig holds comparison run settings.
type CompareConfig struct {
	// MaxFileSize is the maximum size of each input, e.g. 50MB (default: 50MB)
	MaxFileSize int64 `env:"COMPARE_MAX_FILE_SIZE" default:"50MB" unit:"bytes"`

	// MaxConcurrent is the maximum number of comparisons running at once (default: 4)
	MaxConcurrent int `env:"COMPARE_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a run waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"COMPARE_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration of a single comparison (default: 5m)
	Timeout time.Duration `env:"COMPARE_TIMEOUT" default:"5m"`

	// Snapshot makes every run's transforms all-or-nothing (default: false)
	Snapshot bool `env:"COMPARE_SNAPSHOT" default:"false"`
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerSecond is the sustained rate per client IP (default: 5)
	RequestsPerSecond float64 `env:"RATE_LIMIT_RPS" default:"5"`

	// Burst is how many requests a client may make at once (default: 20)
	Burst int `env:"RATE_LIMIT_BURST" default:"20"`

	// CompareRequestsPerMinute limits POST /api/compare per client IP (default: 10)
	CompareRequestsPerMinute int `env:"RATE_LIMIT_COMPARE" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey protects /api with the X-API-Key header (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// AllowedOrigins is a comma-separated list of CORS origins for /api
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// SeqURL sends logs to a Seq server as well, e.g. http://localhost:5341/ingest/clef
	SeqURL string `env:"LOG_SEQ_URL"`

	// SeqAPIKey authenticates with the Seq server
	SeqAPIKey string `env:"LOG_SEQ_API_KEY"`
}

// RetentionConfig holds run pruning settings.
type RetentionConfig struct {
	// Enabled turns on scheduled pruning of old runs (default: true)
	Enabled bool `env:"RETENTION_ENABLED" default:"true"`

	// MaxAge is how long runs are kept (default: 720h)
	MaxAge time.Duration `env:"RETENTION_MAX_AGE" default:"720h"`

	// Schedule is a cron expression for the prune job (default: @daily)
	Schedule string `env:"RETENTION_SCHEDULE" default:"@daily"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// UsesDatabase reports whether runs are stored in PostgreSQL.
func (c *DatabaseConfig) UsesDatabase() bool {
	return c.URL != ""
}
