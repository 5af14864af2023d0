package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Source kinds accepted by SOURCE.
const (
	SourceBulk     = "bulk"
	SourceDir      = "dir"
	SourcePostgres = "postgres"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	Source           string        `mapstructure:"SOURCE"`
	BulkPublishURL   string        `mapstructure:"BULK_PUBLISH_URL"`
	URLRewriteFrom   string        `mapstructure:"URL_REWRITE_FROM"`
	URLRewriteTo     string        `mapstructure:"URL_REWRITE_TO"`
	DataDir          string        `mapstructure:"DATA_DIR"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	Timezone         string        `mapstructure:"TIMEZONE"`
	HTTPTimeout      time.Duration `mapstructure:"HTTP_TIMEOUT"`
	FetchConcurrency int           `mapstructure:"FETCH_CONCURRENCY"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	RedisURL         string        `mapstructure:"REDIS_URL"`
	SnapshotTTL      time.Duration `mapstructure:"SNAPSHOT_TTL"`

	location *time.Location
}

var keys = []string{
	"PORT",
	"ENV",
	"SOURCE",
	"BULK_PUBLISH_URL",
	"URL_REWRITE_FROM",
	"URL_REWRITE_TO",
	"DATA_DIR",
	"DATABASE_URL",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"TIMEZONE",
	"HTTP_TIMEOUT",
	"FETCH_CONCURRENCY",
	"REQUEST_TIMEOUT",
	"CORS_ORIGINS",
	"REDIS_URL",
	"SNAPSHOT_TTL",
}

// DefaultBulkPublishURL is the SMART Scheduling Links example publisher,
// used when BULK_PUBLISH_URL is unset. Its manifest still points at the
// upstream smart-on-fhir repository, so the default also rewrites file URLs
// to the fork that serves them.
const (
	DefaultBulkPublishURL = "https://raw.githubusercontent.com/Culby/smart-scheduling-links/refs/heads/master/examples/%24bulk-publish"
	defaultRewriteFrom    = "smart-on-fhir"
	defaultRewriteTo      = "Culby"
)

// Load reads configuration with Read and validates it for serving and for
// the month and day commands.
func Load() (*Config, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read loads configuration from the environment, falling back to a .env
// file in the working directory when present. Nothing is validated.
func Read() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("SOURCE", SourceBulk)
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("HTTP_TIMEOUT", "30s")
	v.SetDefault("FETCH_CONCURRENCY", 4)
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("SNAPSHOT_TTL", "24h")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = nil
	for _, o := range strings.Split(v.GetString("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if cfg.BulkPublishURL == "" {
		cfg.BulkPublishURL = DefaultBulkPublishURL
		if cfg.URLRewriteFrom == "" {
			cfg.URLRewriteFrom = defaultRewriteFrom
			cfg.URLRewriteTo = defaultRewriteTo
		}
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the selected source has what it needs and that
// TIMEZONE names a loadable location.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceBulk:
		if c.BulkPublishURL == "" {
			return fmt.Errorf("BULK_PUBLISH_URL is required when SOURCE=%s", SourceBulk)
		}
		if c.URLRewriteTo != "" && c.URLRewriteFrom == "" {
			return fmt.Errorf("URL_REWRITE_TO requires URL_REWRITE_FROM")
		}
	case SourceDir:
		if c.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required when SOURCE=%s", SourceDir)
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when SOURCE=%s", SourcePostgres)
		}
		if c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
		}
	default:
		return fmt.Errorf("SOURCE must be %q, %q, or %q, got %q", SourceBulk, SourceDir, SourcePostgres, c.Source)
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.SnapshotTTL < 0 {
		return fmt.Errorf("SNAPSHOT_TTL must not be negative, got %s", c.SnapshotTTL)
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be at least 1, got %d", c.FetchConcurrency)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	c.location = loc
	return nil
}

// ValidateImport checks what the import command needs: a database to write
// to and a directory to read from. The selected SOURCE is irrelevant.
func (c *Config) ValidateImport() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for import")
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR or --dir is required for import")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}

// Location is the zone calendar days are computed in. It is UTC until
// Validate has succeeded.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}
