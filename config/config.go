package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Catalog  CatalogConfig
	Jobs     JobsConfig
	Mail     MailConfig
}

type ServerConfig struct {
	Port           string
	Environment    string
	AllowedOrigins []string
	BodyLimit      int
	FrontendURL    string
	PublicURL      string
	Location       *time.Location
}

type DatabaseConfig struct {
	Driver         string // postgres | memory
	URL            string
	MaxOpenConns   int
	ConnectRetries int
}

type AuthConfig struct {
	JWTSecret  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BCryptCost int
}

type RedisConfig struct {
	URL            string
	IdempotencyTTL time.Duration
}

type StorageConfig struct {
	Provider        string // r2 | local
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
	UploadDir       string
}

type CatalogConfig struct {
	SeedFile string
}

type JobsConfig struct {
	StreakResetEnabled   bool
	TokenCleanupInterval time.Duration
}

type MailConfig struct {
	From string
}

const devJWTSecret = "slangmaster-dev-secret"

// Load reads .env.<GO_ENV> (or .env) if present, then the environment.
func Load() (*Config, error) {
	env := getEnv("GO_ENV", "development")
	_ = godotenv.Load(".env." + env)
	_ = godotenv.Load()

	loc, err := time.LoadLocation(getEnv("APP_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8000"),
			Environment:    env,
			AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
			BodyLimit:      getEnvInt("BODY_LIMIT_MB", 10) * 1024 * 1024,
			FrontendURL:    strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/"),
			PublicURL:      strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8000"), "/"),
			Location:       loc,
		},
		Database: DatabaseConfig{
			Driver:         strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			URL:            getEnv("DATABASE_URL", ""),
			MaxOpenConns:   getEnvInt("DB_MAX_OPEN_CONNS", 20),
			ConnectRetries: getEnvInt("DB_CONNECT_RETRIES", 5),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			AccessTTL:  getEnvDuration("JWT_ACCESS_TTL", 30*time.Minute),
			RefreshTTL: getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
			BCryptCost: getEnvInt("BCRYPT_COST", 12),
		},
		Redis: RedisConfig{
			URL:            getEnv("REDIS_URL", ""),
			IdempotencyTTL: getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Storage: StorageConfig{
			Provider:        strings.ToLower(getEnv("STORAGE_PROVIDER", "local")),
			AccountID:       getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			AccessKeySecret: getEnv("R2_ACCESS_KEY_SECRET", ""),
			Bucket:          getEnv("R2_BUCKET_NAME", ""),
			CDNBaseURL:      getEnv("CDN_BASE_URL", ""),
			UploadDir:       getEnv("UPLOAD_DIR", "./uploads"),
		},
		Catalog: CatalogConfig{
			SeedFile: getEnv("CATALOG_SEED_FILE", ""),
		},
		Jobs: JobsConfig{
			StreakResetEnabled:   getEnvBool("STREAK_RESET_ENABLED", true),
			TokenCleanupInterval: getEnvDuration("TOKEN_CLEANUP_INTERVAL", time.Hour),
		},
		Mail: MailConfig{
			From: getEnv("MAIL_FROM", "no-reply@slangmaster.app"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	if c.Auth.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		c.Auth.JWTSecret = devJWTSecret
	}

	switch c.Storage.Provider {
	case "local":
	case "r2":
		if c.Storage.AccountID == "" || c.Storage.Bucket == "" {
			return fmt.Errorf("CLOUDFLARE_ACCOUNT_ID and R2_BUCKET_NAME are required when STORAGE_PROVIDER=r2")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_PROVIDER %q", c.Storage.Provider)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
