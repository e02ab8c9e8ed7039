package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
	Auth          AuthConfig
	Cache         CacheConfig
	Bootstrap     BootstrapConfig
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// URL takes precedence over the individual fields when set.
	URL          string
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
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

// SecurityConfig holds the Argon2id parameters
type SecurityConfig struct {
	Argon2Memory      uint32
	Argon2Iterations  uint32
	Argon2Parallelism uint8
	Argon2SaltLength  uint32
	Argon2KeyLength   uint32
}

// AuthConfig holds token and identity settings
type AuthConfig struct {
	AppSecret  string
	Issuer     string
	Audience   string
	TokenTTL   time.Duration
	RefreshTTL time.Duration
	// DefaultTenant is used for identities without a tenant claim. May be nil.
	DefaultTenant *uuid.UUID
	Environment   string
}

// Production reports whether the runtime environment is production
func (a AuthConfig) Production() bool {
	return strings.EqualFold(strings.TrimSpace(a.Environment), "production")
}

// CacheConfig holds the role cache settings
type CacheConfig struct {
	RoleCacheSize int
	RoleCacheTTL  time.Duration
}

// BootstrapConfig names the first application administrator
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
}

// Load loads configuration from environment variables. When CONFIG_FILE
// names a YAML file, its keys serve as defaults beneath the environment.
func Load() (*Config, error) {
	src := &source{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		file, err := readFile(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}

	defaultTenant, err := src.uuid("AUTH_DEFAULT_TENANT")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           src.getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           src.getEnv("SERVER_PORT", "8080"),
			ReadTimeout:    src.parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout:   src.parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:    src.parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
			RequestTimeout: src.parseDuration("SERVER_REQUEST_TIMEOUT", "30s"),
		},
		Database: DatabaseConfig{
			URL:          src.getEnv("DATABASE_URL", ""),
			Host:         src.getEnv("DB_HOST", "localhost"),
			Port:         src.getEnv("DB_PORT", "5432"),
			User:         src.getEnv("DB_USER", "tenantmgmt"),
			Password:     src.getEnv("DB_PASSWORD", ""),
			Database:     src.getEnv("DB_NAME", "tenantmgmt"),
			SSLMode:      src.getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: src.parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: src.parseInt("DB_MAX_IDLE_CONNS", 5),
		},
		Observability: ObservabilityConfig{
			LogLevel:       src.getEnv("LOG_LEVEL", "info"),
			LogFormat:      src.getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    src.parseBool("OTEL_ENABLED", false),
			MetricsEnabled: src.parseBool("METRICS_ENABLED", false),
			SamplingRate:   src.parseFloat("OTEL_SAMPLING_RATE", 1.0),
			ServiceName:    src.getEnv("OTEL_SERVICE_NAME", "tenantmgmt"),
			ServiceVersion: src.getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		Security: SecurityConfig{
			Argon2Memory:      uint32(src.parseInt("ARGON2_MEMORY", 65536)),
			Argon2Iterations:  uint32(src.parseInt("ARGON2_ITERATIONS", 3)),
			Argon2Parallelism: uint8(src.parseInt("ARGON2_PARALLELISM", 4)),
			Argon2SaltLength:  uint32(src.parseInt("ARGON2_SALT_LENGTH", 16)),
			Argon2KeyLength:   uint32(src.parseInt("ARGON2_KEY_LENGTH", 32)),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: src.parseFloat("RATELIMIT_RPS", 10),
			Burst:             src.parseInt("RATELIMIT_BURST", 20),
		},
		Auth: AuthConfig{
			AppSecret:     src.getEnv("AUTH_APP_SECRET", ""),
			Issuer:        src.getEnv("AUTH_ISSUER", "tenantmgmt"),
			Audience:      src.getEnv("AUTH_AUDIENCE", "tenantmgmt"),
			TokenTTL:      src.parseDuration("AUTH_TOKEN_TTL", "1h"),
			RefreshTTL:    src.parseDuration("AUTH_REFRESH_TTL", "168h"),
			DefaultTenant: defaultTenant,
			Environment:   src.getEnv("APP_ENVIRONMENT", src.getEnv("ENVIRONMENT", "development")),
		},
		Cache: CacheConfig{
			RoleCacheSize: src.parseInt("ROLE_CACHE_SIZE", 64),
			RoleCacheTTL:  src.parseDuration("ROLE_CACHE_TTL", "10m"),
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:    src.getEnv("BOOTSTRAP_ADMIN_EMAIL", ""),
			AdminPassword: src.getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" && c.Database.Password == "" {
		errs = append(errs, errors.New("DB_PASSWORD or DATABASE_URL is required"))
	}
	if len(c.Auth.AppSecret) < 32 {
		errs = append(errs, errors.New("AUTH_APP_SECRET must be at least 32 characters"))
	}
	if c.Auth.TokenTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	return errors.Join(errs...)
}

// source resolves keys from the environment first, then the config file
type source struct {
	file map[string]string
}

func readFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	file := make(map[string]string, len(values))
	for k, v := range values {
		if v == nil {
			continue
		}
		file[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return file, nil
}

func (s *source) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return s.file[key]
}

// Helper functions
func (s *source) getEnv(key, defaultValue string) string {
	if value := s.lookup(key); value != "" {
		return value
	}
	return defaultValue
}

func (s *source) parseInt(key string, defaultValue int) int {
	if value := s.lookup(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func (s *source) parseFloat(key string, defaultValue float64) float64 {
	if value := s.lookup(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func (s *source) parseBool(key string, defaultValue bool) bool {
	if value := s.lookup(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func (s *source) parseDuration(key string, defaultValue string) time.Duration {
	value := s.getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}

func (s *source) uuid(key string) (*uuid.UUID, error) {
	value := strings.TrimSpace(s.lookup(key))
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("%s is not a valid UUID: %w", key, err)
	}
	return &id, nil
}
