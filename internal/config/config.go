package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Store         StoreConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
	Bootstrap     BootstrapConfig
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// StoreConfig selects the storage backend
type StoreConfig struct {
	Driver string // postgres, memory
}

// AuthConfig holds bearer token validation settings. Tokens are issued by
// the Identity Store; this service only verifies them.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
	Leeway    time.Duration
}

// ObservabilityConfig holds logging, tracing and metrics configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	MetricsEnabled bool
	SamplingRate   float64
	ServiceName    string
	ServiceVersion string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	Argon2Memory      uint32
	Argon2Iterations  uint32
	Argon2Parallelism uint8
	Argon2SaltLength  uint32
	Argon2KeyLength   uint32
}

// BootstrapConfig holds first-run settings
type BootstrapConfig struct {
	SuperAdminEmail string
	SeedDemo        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout:    parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:     parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
			RequestTimeout:  parseDuration("SERVER_REQUEST_TIMEOUT", "30s"),
			ShutdownTimeout: parseDuration("SERVER_SHUTDOWN_TIMEOUT", "10s"),
		},
		Database: LoadDatabase(),
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", DriverPostgres),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			Issuer:    getEnv("AUTH_JWT_ISSUER", ""),
			Audience:  getEnv("AUTH_JWT_AUDIENCE", ""),
			Leeway:    parseDuration("AUTH_JWT_LEEWAY", "30s"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			MetricsEnabled: parseBool("METRICS_ENABLED", false),
			SamplingRate:   parseFloat("OTEL_SAMPLING_RATE", 1.0),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "coachgrid"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		Security: SecurityConfig{
			Argon2Memory:      uint32(parseInt("ARGON2_MEMORY", 65536)),
			Argon2Iterations:  uint32(parseInt("ARGON2_ITERATIONS", 3)),
			Argon2Parallelism: uint8(parseInt("ARGON2_PARALLELISM", 4)),
			Argon2SaltLength:  uint32(parseInt("ARGON2_SALT_LENGTH", 16)),
			Argon2KeyLength:   uint32(parseInt("ARGON2_KEY_LENGTH", 32)),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: parseFloat("RATELIMIT_RPS", 10),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
		Bootstrap: BootstrapConfig{
			SuperAdminEmail: getEnv("SUPER_ADMIN_EMAIL", ""),
			SeedDemo:        parseBool("SEED_DEMO", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadDatabase reads only the database section. Tools that do not serve
// requests use it to skip validation of unrelated settings.
func LoadDatabase() DatabaseConfig {
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnv("DB_PORT", "5432"),
		User:            getEnv("DB_USER", "coachgrid"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "coachgrid"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Database.Password == "" {
			return errors.New("DB_PASSWORD is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.Store.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	if c.Bootstrap.SeedDemo && c.Store.Driver != DriverMemory {
		return errors.New("SEED_DEMO is only supported with STORE_DRIVER=memory")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
