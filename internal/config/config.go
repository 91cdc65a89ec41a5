package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	AppEnv   string
	HTTPAddr string
	// PublicURL is where clients reach this server; used for locally served files.
	PublicURL string

	// Storage
	Storage     string
	DatabaseURL string

	// Authentication
	JWTSecret   string
	JWTLifetime time.Duration

	// Object storage (ImageKit)
	ImageKitPrivateKey string
	ImageKitUploadURL  string
	ImageKitAPIURL     string
	ImageKitFolder     string
	UploadMaxBytes     int64

	// Cache
	RedisURL string
	CacheTTL time.Duration

	// HTTP
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int

	// Mail
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; variables already set take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env file", "error", err)
	}

	c := &Config{}
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	loadEnvString(&c.AppEnv, "APP_ENV", "development")
	loadEnvString(&c.HTTPAddr, "HTTP_ADDR", ":8080")
	loadEnvString(&c.PublicURL, "PUBLIC_URL", "")
	if c.PublicURL == "" {
		c.PublicURL = defaultPublicURL(c.HTTPAddr)
	}

	loadEnvString(&c.Storage, "STORAGE", StoragePostgres)
	loadEnvString(&c.DatabaseURL, "DATABASE_URL", "")

	loadEnvString(&c.JWTSecret, "JWT_SECRET", "")
	collect(loadEnvDuration(&c.JWTLifetime, "JWT_LIFETIME", time.Hour))

	loadEnvString(&c.ImageKitPrivateKey, "IMAGEKIT_PRIVATE_KEY", "")
	loadEnvString(&c.ImageKitUploadURL, "IMAGEKIT_UPLOAD_URL", "https://upload.imagekit.io/api/v1/files/upload")
	loadEnvString(&c.ImageKitAPIURL, "IMAGEKIT_API_URL", "https://api.imagekit.io/v1")
	loadEnvString(&c.ImageKitFolder, "IMAGEKIT_FOLDER", "/uploads")
	collect(loadEnvInt64(&c.UploadMaxBytes, "UPLOAD_MAX_BYTES", 10<<20))

	loadEnvString(&c.RedisURL, "REDIS_URL", "")
	collect(loadEnvDuration(&c.CacheTTL, "CACHE_TTL", 30*time.Second))

	loadEnvStringSlice(&c.CORSOrigins, "CORS_ORIGINS", []string{"*"})
	collect(loadEnvFloat(&c.RateLimitRPS, "RATE_LIMIT_RPS", 5))
	collect(loadEnvInt(&c.RateLimitBurst, "RATE_LIMIT_BURST", 10))

	loadEnvString(&c.SMTPHost, "SMTP_HOST", "")
	loadEnvString(&c.SMTPPort, "SMTP_PORT", "")
	loadEnvString(&c.SMTPUser, "SMTP_USER", "")
	loadEnvString(&c.SMTPPass, "SMTP_PASS", "")
	loadEnvString(&c.SMTPFrom, "SMTP_FROM", "")

	loadEnvString(&c.LogLevel, "LOG_LEVEL", "info")
	loadEnvString(&c.LogFormat, "LOG_FORMAT", "text")

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORAGE=postgres"))
		}
		if c.ImageKitPrivateKey == "" {
			errs = append(errs, errors.New("IMAGEKIT_PRIVATE_KEY is required when STORAGE=postgres"))
		}
	case StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage))
	}

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if c.IsProduction() && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters in production"))
	}
	if c.JWTLifetime <= 0 {
		errs = append(errs, errors.New("JWT_LIFETIME must be positive"))
	}
	if c.UploadMaxBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_BYTES must be positive"))
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS must not be negative"))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_BURST must be at least 1"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// defaultPublicURL guesses a local URL from the listen address.
func defaultPublicURL(addr string) string {
	host, port, found := strings.Cut(addr, ":")
	if !found {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return "http://" + host + ":" + port
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MailEnabled reports whether all SMTP settings are present.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPPort != "" && c.SMTPUser != "" && c.SMTPPass != "" && c.SMTPFrom != ""
}

// Helper functions for type conversion
func loadEnvString(target *string, key, defaultValue string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	value := os.Getenv(key)
	if value == "" {
		*target = defaultValue
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	*target = n
	return nil
}

func loadEnvInt64(target *int64, key string, defaultValue int64) error {
	value := os.Getenv(key)
	if value == "" {
		*target = defaultValue
		return nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	*target = n
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	value := os.Getenv(key)
	if value == "" {
		*target = defaultValue
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid number for %s: %w", key, err)
	}
	*target = f
	return nil
}

func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		*target = defaultValue
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	*target = d
	return nil
}

func loadEnvStringSlice(target *[]string, key string, defaultValue []string) {
	value := os.Getenv(key)
	if value == "" {
		*target = defaultValue
		return
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*target = out
}
