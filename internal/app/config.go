package app

import (
	"os"
	"slices"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Backend names accepted by the Storage, Admin, Email and Notify sections.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendS3       = "s3"
	BackendLog      = "log"
	BackendSES      = "ses"
	BackendRedis    = "redis"
)

// Config holds the complete application configuration, loadable from
// environment variables (PLANTPASS_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (PLANTPASS_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Storage     string `default:"postgres" usage:"Order, catalog and settings storage: postgres or memory"`
	JWT         JWTConfig
	Admin       AdminConfig
	Email       EmailConfig
	Notify      NotifyConfig
	RateLimit   RateLimitConfig
	LoginLimit  LoginLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// JWTConfig controls access token signing.
type JWTConfig struct {
	Secret   string        `usage:"HMAC secret for access tokens (PLANTPASS_JWT_SECRET)"`
	AdminTTL time.Duration `default:"24h" usage:"Admin token lifetime" flag:"jwt-admin-ttl"`
	TempTTL  time.Duration `default:"1h" usage:"Lifetime of tokens obtained with a temporary password" flag:"jwt-temp-ttl"`
	StaffTTL time.Duration `default:"24h" usage:"Staff token lifetime" flag:"jwt-staff-ttl"`
}

// AdminConfig selects where the admin password hash lives.
type AdminConfig struct {
	Credentials     string        `usage:"Admin password hash backend: s3, or empty to keep it in storage"`
	TempPasswordTTL time.Duration `default:"15m" usage:"Temporary password lifetime" flag:"temp-password-ttl"`
	S3              S3Config
}

// S3Config locates the admin password document.
type S3Config struct {
	Bucket   string
	Key      string `default:"admin/password.json"`
	Region   string
	Endpoint string `usage:"Custom S3 endpoint (MinIO, LocalStack)"`
}

// EmailConfig controls receipt and password reset delivery.
type EmailConfig struct {
	Backend     string `default:"log" usage:"Email backend: log or ses"`
	From        string `usage:"Sender address"`
	ClubAddress string `usage:"Recipient of password reset emails" flag:"club-address"`
	Region      string
	Endpoint    string `usage:"Custom SES endpoint (LocalStack)"`
}

// NotifyConfig controls the live transaction feed.
type NotifyConfig struct {
	Registry       string        `default:"memory" usage:"Connection registry: memory or redis"`
	ConnectionTTL  time.Duration `default:"2h" usage:"Registry entry lifetime without a pong" flag:"connection-ttl"`
	Concurrency    int           `default:"16" usage:"Concurrent deliveries per broadcast"`
	MaxConnections int           `default:"2000" usage:"Websocket viewers before the instance reports not ready" flag:"max-connections"`
	Redis          RedisConfig
}

// RedisConfig locates the Redis connection registry.
type RedisConfig struct {
	Addr     string `default:"localhost:6379"`
	Password string
	DB       int
	Key      string `default:"plantpass:connections"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// LoginLimitConfig throttles the password and passphrase endpoints.
type LoginLimitConfig struct {
	Rate  float64 `default:"0.2" usage:"Sustained credential attempts per second per client"`
	Burst int     `default:"5" usage:"Credential attempt burst per client"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PLANTPASS",
		Files:     []string{"config.yaml", "/etc/plantpass/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's PLANTPASS_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

func oneOf(section, value string, allowed ...string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return errors.Errorf("%s: unknown backend %q", section, value)
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT secret is required: set PLANTPASS_JWT_SECRET")
	}
	if err := oneOf("storage", c.Storage, BackendPostgres, BackendMemory); err != nil {
		return err
	}
	if c.Storage == BackendPostgres && c.DatabaseURL == "" {
		return errors.New("database URL is required: set PLANTPASS_DATABASE_URL or DATABASE_URL")
	}
	if err := oneOf("admin credentials", c.Admin.Credentials, "", BackendPostgres, BackendS3); err != nil {
		return err
	}
	if c.Admin.Credentials == BackendPostgres && c.Storage != BackendPostgres {
		return errors.New("admin credentials in postgres require postgres storage")
	}
	if c.Admin.Credentials == BackendS3 && c.Admin.S3.Bucket == "" {
		return errors.New("admin S3 bucket is required for s3 credentials")
	}
	if err := oneOf("email", c.Email.Backend, BackendLog, BackendSES); err != nil {
		return err
	}
	if c.Email.Backend == BackendSES && (c.Email.From == "" || c.Email.ClubAddress == "") {
		return errors.New("email sender and club address are required for ses")
	}
	return oneOf("notify registry", c.Notify.Registry, BackendMemory, BackendRedis)
}
