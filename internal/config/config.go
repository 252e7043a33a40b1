// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported values of STORE_DRIVER.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// LogFile, when set, sends logs to a rotating file instead of stdout.
	LogFile string
	// Rotation limits for LogFile.
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// StoreDriver selects the datastore: "postgres" (default) or "mongo".
	StoreDriver string

	// DatabaseURL is the Postgres connection string. Required for postgres.
	DatabaseURL string

	// MongoURI and MongoDatabase locate the document store. Required for mongo.
	MongoURI      string
	MongoDatabase string

	// JWTSecret verifies identity provider tokens. Required.
	JWTSecret string
	// JWTIssuer, when set, must match the token's iss claim.
	JWTIssuer string

	// CatalogFile is the TOML file holding departments and vehicles.
	CatalogFile string

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64

	// Location is the time zone trip codes and "today" are computed in.
	// Defaults to Asia/Manila.
	Location *time.Location

	// MetricsEnabled exposes /metrics. Defaults to true.
	MetricsEnabled bool
}

// LoadDotEnv copies variables from the given .env files into the process
// environment. Variables already set win. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config.LoadDotEnv: %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set, or the
// first malformed value.
func Load() (Config, error) {
	cfg := Config{
		Port:          getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       os.Getenv("LOG_FILE"),
		CORSOrigins:   splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),
		MongoDatabase: getEnv("MONGODB_DATABASE", "vehicle_requests"),
		JWTIssuer:     os.Getenv("JWT_ISSUER"),
		CatalogFile:   getEnv("CATALOG_FILE", "catalog.toml"),
	}

	var err error
	if cfg.LogMaxSizeMB, err = getInt("LOG_MAX_SIZE_MB", 100); err != nil {
		return Config{}, err
	}
	if cfg.LogMaxBackups, err = getInt("LOG_MAX_BACKUPS", 3); err != nil {
		return Config{}, err
	}
	if cfg.LogMaxAgeDays, err = getInt("LOG_MAX_AGE_DAYS", 28); err != nil {
		return Config{}, err
	}
	maxBody, err := getInt("MAX_BODY_BYTES", 1<<20)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxBodyBytes = int64(maxBody)
	if cfg.MetricsEnabled, err = getBool("METRICS_ENABLED", true); err != nil {
		return Config{}, err
	}
	tz := getEnv("TIMEZONE", "Asia/Manila")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return Config{}, fmt.Errorf("TIMEZONE: %w", err)
	}

	var missing []string

	switch cfg.StoreDriver {
	case StorePostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StoreMongo:
		cfg.MongoURI = os.Getenv("MONGODB_URI")
		if cfg.MongoURI == "" {
			missing = append(missing, "MONGODB_URI")
		}
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER: unsupported value %q (want %s or %s)", cfg.StoreDriver, StorePostgres, StoreMongo)
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: want a non-negative integer, got %q", key, v)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: want a boolean, got %q", key, v)
	}
	return b, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
