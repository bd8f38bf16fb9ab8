// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cache backends
const (
	CacheBackendSQLite = "sqlite"
	CacheBackendS3     = "s3"
	CacheBackendMemory = "memory"
)

// Config holds application configuration
type Config struct {
	DataDir     string // Base directory for all databases (always absolute)
	Port        int
	LogLevel    string
	DevMode     bool
	JWTSecret   string
	TokenExpiry time.Duration

	// Third-party credentials. Missing keys are reported per request, never at startup.
	GeminiAPIKey  string
	GeminiModel   string
	FinnhubAPIKey string

	Cache  CacheConfig
	Market MarketConfig
	Jobs   JobsConfig
	Backup BackupConfig
}

// CacheConfig configures the commentary response cache
type CacheConfig struct {
	Backend   string        // sqlite, s3 or memory
	Namespace string        // durable key prefix
	TTL       time.Duration // default freshness window
	S3        S3Config
}

// S3Config configures the S3-compatible durable cache store (AWS, R2, MinIO)
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// MarketConfig configures the index board
type MarketConfig struct {
	IndexSymbols    []string // SYMBOL=Name pairs, e.g. ^GSPC=S&P 500
	RefreshInterval time.Duration
}

// JobsConfig holds cron schedules for background jobs
type JobsConfig struct {
	CacheCleanupSchedule string
	MaintenanceSchedule  string
	VacuumSchedule       string
}

// BackupConfig configures database backups. Archives go to Bucket under
// Prefix using the cache S3 credentials and endpoint.
type BackupConfig struct {
	Enabled       bool
	Bucket        string
	Prefix        string
	Schedule      string
	RetentionDays int // 0 keeps every archive
}

// DefaultIndexSymbols are the four indices shown on the dashboard
var DefaultIndexSymbols = []string{
	"^GSPC=S&P 500",
	"^IXIC=NASDAQ",
	"^DJI=Dow Jones",
	"^RUT=Russell 2000",
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("COMPASS_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:       absDataDir,
		Port:          getEnvAsInt("COMPASS_PORT", 8080),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		JWTSecret:     getEnv("JWT_SECRET", "dev-jwt-secret-change-in-production"),
		TokenExpiry:   getEnvAsDuration("TOKEN_EXPIRY", 24*time.Hour),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		FinnhubAPIKey: getEnv("FINNHUB_API_KEY", ""),
		Cache: CacheConfig{
			Backend:   strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendSQLite)),
			Namespace: getEnv("CACHE_NAMESPACE", "openai_cache_"),
			TTL:       getEnvAsDuration("CACHE_TTL", 24*time.Hour),
			S3: S3Config{
				Bucket:    getEnv("CACHE_S3_BUCKET", ""),
				Prefix:    getEnv("CACHE_S3_PREFIX", ""),
				Region:    getEnv("CACHE_S3_REGION", "auto"),
				Endpoint:  getEnv("CACHE_S3_ENDPOINT", ""),
				AccessKey: getEnv("CACHE_S3_ACCESS_KEY", ""),
				SecretKey: getEnv("CACHE_S3_SECRET_KEY", ""),
			},
		},
		Market: MarketConfig{
			IndexSymbols:    getEnvAsList("INDEX_SYMBOLS", DefaultIndexSymbols),
			RefreshInterval: getEnvAsDuration("INDEX_REFRESH_INTERVAL", 5*time.Minute),
		},
		Jobs: JobsConfig{
			CacheCleanupSchedule: getEnv("CACHE_CLEANUP_SCHEDULE", "@daily"),
			MaintenanceSchedule:  getEnv("MAINTENANCE_SCHEDULE", "@hourly"),
			VacuumSchedule:       getEnv("VACUUM_SCHEDULE", "0 4 * * 0"),
		},
		Backup: BackupConfig{
			Enabled:       getEnvAsBool("BACKUP_ENABLED", false),
			Bucket:        getEnv("BACKUP_S3_BUCKET", getEnv("CACHE_S3_BUCKET", "")),
			Prefix:        getEnv("BACKUP_S3_PREFIX", "backups/"),
			Schedule:      getEnv("BACKUP_SCHEDULE", "0 3 * * *"),
			RetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks structural configuration. API keys are deliberately not required here.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheBackendSQLite, CacheBackendMemory:
	case CacheBackendS3:
		if c.Cache.S3.Bucket == "" {
			return fmt.Errorf("CACHE_S3_BUCKET is required when CACHE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.Cache.TTL)
	}

	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("BACKUP_S3_BUCKET or CACHE_S3_BUCKET is required when BACKUP_ENABLED=true")
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("BACKUP_RETENTION_DAYS must not be negative, got %d", c.Backup.RetentionDays)
	}

	if c.Market.RefreshInterval <= 0 {
		return fmt.Errorf("INDEX_REFRESH_INTERVAL must be positive, got %s", c.Market.RefreshInterval)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
