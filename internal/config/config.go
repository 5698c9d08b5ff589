// Copyright 2026 The Workery Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `envconfig:"SERVER"`
	Database      DatabaseConfig      `envconfig:"DB"`
	Session       SessionConfig       `envconfig:"SESSION"`
	Observability ObservabilityConfig `envconfig:"OBSERVABILITY"`
	Security      SecurityConfig      `envconfig:"SECURITY"`
	RateLimit     RateLimitConfig     `envconfig:"RATELIMIT"`
	Tenant        TenantConfig        `envconfig:"TENANT"`
	AccessCode    AccessCodeConfig    `envconfig:"ACCESSCODE"`
	Queue         QueueConfig         `envconfig:"QUEUE"`
	Provision     ProvisionConfig     `envconfig:"PROVISION"`
	Bootstrap     BootstrapConfig     `envconfig:"BOOTSTRAP"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64 `envconfig:"RPS" default:"10"`
	Burst             int     `envconfig:"BURST" default:"20"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `envconfig:"HOST" default:"0.0.0.0"`
	Port         string        `envconfig:"PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `envconfig:"HOST" default:"localhost"`
	Port            string        `envconfig:"PORT" default:"5432"`
	User            string        `envconfig:"USER" default:"workery"`
	Password        string        `envconfig:"PASSWORD"`
	Database        string        `envconfig:"NAME" default:"workery"`
	SSLMode         string        `envconfig:"SSLMODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"5m"`
	Tracing         bool          `envconfig:"TRACING" default:"false"`
}

// DSN returns the keyword/value connection string understood by pgx.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// SessionConfig holds session management configuration
type SessionConfig struct {
	CookieName     string        `envconfig:"COOKIE_NAME" default:"workery_session"`
	CookieDomain   string        `envconfig:"COOKIE_DOMAIN"`
	CookiePath     string        `envconfig:"COOKIE_PATH" default:"/"`
	CookieSecure   bool          `envconfig:"COOKIE_SECURE" default:"false"`
	CookieHTTPOnly bool          `envconfig:"COOKIE_HTTP_ONLY" default:"true"`
	CookieSameSite string        `envconfig:"COOKIE_SAME_SITE" default:"Lax"`
	Lifetime       time.Duration `envconfig:"LIFETIME" default:"24h"`
	IdleTimeout    time.Duration `envconfig:"IDLE_TIMEOUT" default:"30m"`
	SigningSecret  string        `envconfig:"SIGNING_SECRET"`
	Issuer         string        `envconfig:"ISSUER" default:"workery"`
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string `envconfig:"LOG_FORMAT" default:"json"`
	OTELEnabled    bool   `envconfig:"OTEL_ENABLED" default:"false"`
	ServiceName    string `envconfig:"SERVICE_NAME" default:"workery"`
	ServiceVersion string `envconfig:"SERVICE_VERSION" default:"0.1.0"`

	OTLPEndpoint      string  `envconfig:"OTLP_ENDPOINT"`
	TraceSamplingRate float64 `envconfig:"TRACE_SAMPLING_RATE" default:"1"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	Argon2Memory       uint32        `envconfig:"ARGON2_MEMORY" default:"65536"`
	Argon2Iterations   uint32        `envconfig:"ARGON2_ITERATIONS" default:"3"`
	Argon2Parallelism  uint8         `envconfig:"ARGON2_PARALLELISM" default:"4"`
	Argon2SaltLength   uint32        `envconfig:"ARGON2_SALT_LENGTH" default:"16"`
	Argon2KeyLength    uint32        `envconfig:"ARGON2_KEY_LENGTH" default:"32"`
	LockoutMaxAttempts int           `envconfig:"LOCKOUT_MAX_ATTEMPTS" default:"5"`
	LockoutDuration    time.Duration `envconfig:"LOCKOUT_DURATION" default:"15m"`
}

// TenantConfig controls how requests are routed to franchises.
type TenantConfig struct {
	BaseDomain string        `envconfig:"BASE_DOMAIN" default:"workery.localhost"`
	Scheme     string        `envconfig:"SCHEME" default:"https"`
	CacheTTL   time.Duration `envconfig:"CACHE_TTL" default:"5s"`
	CacheBytes int64         `envconfig:"CACHE_BYTES" default:"8388608"`
}

// AccessCodeConfig controls single-use access codes.
type AccessCodeConfig struct {
	TTL time.Duration `envconfig:"TTL" default:"24h"`
}

// QueueConfig selects the background job backend.
type QueueConfig struct {
	Driver  string `envconfig:"DRIVER" default:"memory"`
	NATSURL string `envconfig:"NATS_URL" default:"nats://127.0.0.1:4222"`
	Workers int    `envconfig:"WORKERS" default:"2"`
}

// ProvisionConfig bounds the franchise provisioning retries.
type ProvisionConfig struct {
	MaxAttempts    int           `envconfig:"MAX_ATTEMPTS" default:"5"`
	InitialBackoff time.Duration `envconfig:"INITIAL_BACKOFF" default:"2s"`
	MaxBackoff     time.Duration `envconfig:"MAX_BACKOFF" default:"1m"`
	StaleAfter     time.Duration `envconfig:"STALE_AFTER" default:"10m"`
}

// BootstrapConfig describes the root account created on first start.
type BootstrapConfig struct {
	Email    string `envconfig:"EMAIL"`
	Username string `envconfig:"USERNAME" default:"root"`
	Password string `envconfig:"PASSWORD"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Password == "" {
		errs = append(errs, errors.New("DB_PASSWORD is required"))
	}
	if len(c.Session.SigningSecret) < 32 {
		errs = append(errs, errors.New("SESSION_SIGNING_SECRET must be at least 32 characters"))
	}
	if c.Provision.MaxAttempts < 1 {
		errs = append(errs, errors.New("PROVISION_MAX_ATTEMPTS must be positive"))
	}
	if c.Provision.StaleAfter <= c.Provision.MaxBackoff {
		errs = append(errs, errors.New("PROVISION_STALE_AFTER must exceed PROVISION_MAX_BACKOFF"))
	}
	if c.AccessCode.TTL <= 0 {
		errs = append(errs, errors.New("ACCESSCODE_TTL must be positive"))
	}
	switch c.Queue.Driver {
	case "memory", "nats":
	default:
		errs = append(errs, fmt.Errorf("QUEUE_DRIVER %q is not supported", c.Queue.Driver))
	}
	if c.Tenant.BaseDomain == "" {
		errs = append(errs, errors.New("TENANT_BASE_DOMAIN is required"))
	}
	return errors.Join(errs...)
}
