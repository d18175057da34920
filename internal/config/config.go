// Package config provides centralized configuration management for the
// offer loader. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Store drivers.
const (
	DriverNone     = ""
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Import   ImportConfig
	Export   ExportConfig
	Upstream UpstreamConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request, body
	// included (default: 0, imports stream their body)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"0s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-import requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Driver is postgres, mongo or memory. Empty means no store: the CLI
	// prints imported offers instead of saving them and the server falls
	// back to memory.
	Driver string `env:"STORE_DRIVER"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI            string        `env:"MONGO_URI" default:"mongodb://localhost:27017"`
	Database       string        `env:"MONGO_DATABASE" default:"offerloader"`
	ConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT" default:"10s"`
}

// RedisConfig holds the optional Redis connection used for cross-process
// host locks. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" default:"0"`
	LockTTL  time.Duration `env:"REDIS_LOCK_TTL" default:"10s"`
}

// ImportConfig holds TSV import settings.
type ImportConfig struct {
	// MaxInFlight bounds rows persisted concurrently per import (default: 8)
	MaxInFlight int `env:"IMPORT_MAX_IN_FLIGHT" default:"8"`

	// FailurePolicy is isolate or abort (default: isolate)
	FailurePolicy string `env:"IMPORT_FAILURE_POLICY" default:"isolate"`

	// MaxLineBytes bounds a single input line (default: 1MiB)
	MaxLineBytes int `env:"IMPORT_MAX_LINE_BYTES" default:"1048576"`

	// MaxConcurrent is the maximum number of imports the server runs at once (default: 2)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long a request waits for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// MaxFileSize is the maximum accepted request body in bytes (default: 100MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"104857600"`

	// Timeout is the maximum duration of one import (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`
}

// ExportConfig sizes the generated file writer.
type ExportConfig struct {
	QueueSize  int `env:"EXPORT_QUEUE_SIZE" default:"64"`
	BufferSize int `env:"EXPORT_BUFFER_SIZE" default:"65536"`
}

// UpstreamConfig holds settings for fetching template offers.
type UpstreamConfig struct {
	Timeout time.Duration `env:"UPSTREAM_TIMEOUT" default:"30s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
