package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port      string
	Env       string
	JWTSecret string
	JWTExpiry time.Duration

	DB      DatabaseConfig
	Redis   RedisConfig
	S3      S3Config
	AWS     AWSConfig
	Catalog CatalogConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters for the resolver cache.
type RedisConfig struct {
	Host        string
	Port        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// S3Config contains S3 media storage configuration.
type S3Config struct {
	Region          string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// AWSConfig contains AWS configuration for the image moderation service.
type AWSConfig struct {
	AccessKeyID      string
	SecretAccessKey  string
	ModerationRegion string
}

// CatalogConfig tunes catalog lookup behavior.
type CatalogConfig struct {
	SearchPageSize int
	ResolverTTL    time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")

	var err error
	if cfg.JWTExpiry, err = parseDurationEnv("JWT_EXPIRY", "24h"); err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRY: %w", err)
	}

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}
	if cfg.Redis.DialTimeout, err = parseDurationEnv("REDIS_DIAL_TIMEOUT", "5s"); err != nil {
		return nil, fmt.Errorf("invalid REDIS_DIAL_TIMEOUT: %w", err)
	}

	// S3 media storage
	cfg.S3 = S3Config{
		Region:          getEnv("S3_REGION", "ap-southeast-1"),
		Bucket:          getEnv("S3_BUCKET", "bazaar-media"),
		Endpoint:        getEnv("S3_ENDPOINT", "https://s3.ap-southeast-1.amazonaws.com"),
		AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}

	// AWS (Rekognition image moderation)
	cfg.AWS = AWSConfig{
		AccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		ModerationRegion: getEnv("AWS_MODERATION_REGION", "ap-southeast-1"),
	}

	// Catalog
	cfg.Catalog.SearchPageSize = getEnvInt("CATALOG_SEARCH_PAGE_SIZE", 100)
	if cfg.Catalog.ResolverTTL, err = parseDurationEnv("CATALOG_RESOLVER_TTL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid CATALOG_RESOLVER_TTL: %w", err)
	}

	// Basic validation for DB parameters — keeps messages concise and helpful.
	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}

	// Validate JWT_SECRET
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set for authentication")
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
