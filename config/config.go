package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Env       string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	AWS       AWSConfig
	Metrics   MetricsConfig
	RateLimit RateLimitConfig
	Email     EmailConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// AllowedOrigins returns the CORS origins as a list.
func (c ServerConfig) AllowedOrigins() []string {
	return splitTrim(c.CORSAllowedOrigins, ",")
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
	Issuer      string
}

// AWSConfig holds AWS credentials and the poster bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	Endpoint             string
	PostersBucket        string
	PublicBaseURL        string
	PresignExpireMinutes int
}

// MetricsConfig holds the Prometheus listener settings.
type MetricsConfig struct {
	Port string // empty disables the listener
}

// RateLimitConfig holds per-IP limits for sensitive routes.
type RateLimitConfig struct {
	AuthPerMinute int
}

// EmailConfig holds SMTP settings for moderation notifications. An empty host
// logs notifications instead of sending them.
type EmailConfig struct {
	FromAddress string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set it is used as-is; otherwise it is built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

const defaultJWTSecret = "change-me-in-production"

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// Load reads configuration from environment, with optional .env file.
// Malformed numeric values are reported together with validation failures.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var e env
	cfg := &Config{
		Env: e.str("APP_ENV", "development"),
		Server: ServerConfig{
			Port:               e.str("PORT", "8080"),
			ReadTimeout:        e.num("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       e.num("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: e.str("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      e.str("DATABASE_URL", ""),
			Host:     e.str("DB_HOST", "localhost"),
			Port:     e.str("DB_PORT", "5432"),
			User:     e.str("DB_USER", "postgres"),
			Password: e.str("DB_PASSWORD", "postgres"),
			DBName:   e.str("DB_NAME", "calendar"),
			SSLMode:  e.str("DB_SSLMODE", "disable"),
			MaxConns: int32(e.num("DB_MAX_CONNS", 20)),
		},
		Redis: RedisConfig{
			Addr:     e.str("REDIS_ADDR", "localhost:6379"),
			Password: e.str("REDIS_PASSWORD", ""),
			DB:       e.num("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      e.str("JWT_SECRET", defaultJWTSecret),
			ExpireHours: e.num("JWT_EXPIRE_HOURS", 24),
			Issuer:      e.str("JWT_ISSUER", "calendint"),
		},
		AWS: AWSConfig{
			Region:               e.str("AWS_REGION", "eu-west-1"),
			AccessKeyID:          e.str("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      e.str("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:             e.str("AWS_S3_ENDPOINT", ""),
			PostersBucket:        e.str("AWS_S3_POSTERS_BUCKET", "calendar-posters"),
			PublicBaseURL:        e.str("POSTERS_PUBLIC_BASE_URL", ""),
			PresignExpireMinutes: e.num("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Metrics: MetricsConfig{
			Port: e.str("METRICS_PORT", "9090"),
		},
		RateLimit: RateLimitConfig{
			AuthPerMinute: e.num("RATE_LIMIT_AUTH_PER_MINUTE", 10),
		},
		Email: EmailConfig{
			FromAddress: e.str("EMAIL_FROM_ADDRESS", "noreply@example.org"),
			SMTPHost:    e.str("SMTP_HOST", ""),
			SMTPPort:    e.num("SMTP_PORT", 587),
			SMTPUser:    e.str("SMTP_USER", ""),
			SMTPPass:    e.str("SMTP_PASS", ""),
		},
	}
	if err := errors.Join(append(e.errs, cfg.validate()...)...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	if c.IsProduction() && c.JWT.Secret == defaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	if c.JWT.ExpireHours <= 0 {
		errs = append(errs, errors.New("JWT_EXPIRE_HOURS must be positive"))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, errors.New("DB_MAX_CONNS must be positive"))
	}
	if c.RateLimit.AuthPerMinute <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_AUTH_PER_MINUTE must be positive"))
	}
	return errs
}

// env reads variables and remembers the ones that failed to parse.
type env struct {
	errs []error
}

func (e *env) str(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func (e *env) num(key string, fallback int) int {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a number", key, v))
		return fallback
	}
	return n
}

func splitTrim(s, sep string) []string {
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
