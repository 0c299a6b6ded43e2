// Package config loads medtracker settings from defaults, an optional config
// file and MEDTRACKER_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"medtracker/internal/blob"
	"medtracker/internal/core"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MEDTRACKER"

// Config is the full runtime configuration of the medtracker binary. Every
// field can be set from a config file or a MEDTRACKER_* environment variable.
type Config struct {
	StorageDriver string `mapstructure:"storage_driver"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`

	BlobDriver            string `mapstructure:"blob_driver"`
	BlobFSRoot            string `mapstructure:"blob_fs_root"`
	BlobKey               string `mapstructure:"blob_key"`
	BlobHistory           int    `mapstructure:"blob_history"`
	BlobS3Bucket          string `mapstructure:"blob_s3_bucket"`
	BlobS3Region          string `mapstructure:"blob_s3_region"`
	BlobS3Endpoint        string `mapstructure:"blob_s3_endpoint"`
	BlobS3PathStyle       bool   `mapstructure:"blob_s3_path_style"`
	BlobS3AccessKeyID     string `mapstructure:"blob_s3_access_key_id"`
	BlobS3SecretAccessKey string `mapstructure:"blob_s3_secret_access_key"`

	PollInterval  time.Duration `mapstructure:"poll_interval"`
	SaveTimeout   time.Duration `mapstructure:"save_timeout"`
	NaiveTimeZone string        `mapstructure:"naive_time_zone"`

	HTTPAddr  string `mapstructure:"http_addr"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	SeedFile  string `mapstructure:"seed_file"`
}

var defaults = map[string]any{
	"storage_driver":            string(core.StorageSQLite),
	"sqlite_path":               "./medtracker.db",
	"postgres_dsn":              "postgres://localhost/medtracker?sslmode=disable",
	"blob_driver":               string(blob.DriverFilesystem),
	"blob_fs_root":              "./blobdata",
	"blob_key":                  "medtracker/document.json",
	"blob_history":              0,
	"blob_s3_bucket":            "",
	"blob_s3_region":            "us-east-1",
	"blob_s3_endpoint":          "",
	"blob_s3_path_style":        false,
	"blob_s3_access_key_id":     "",
	"blob_s3_secret_access_key": "",
	"poll_interval":             core.DefaultPollInterval,
	"save_timeout":              core.DefaultSaveTimeout,
	"naive_time_zone":           "UTC",
	"http_addr":                 ":8080",
	"log_level":                 "info",
	"log_format":                "json",
	"seed_file":                 "",
}

// Load builds a Config. When path is set the file must exist; its format
// follows the extension. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch core.StorageDriver(strings.ToLower(c.StorageDriver)) {
	case core.StorageMemory, core.StorageSQLite, core.StoragePostgres, core.StorageBlob:
	default:
		return fmt.Errorf("storage_driver must be memory, sqlite, postgres or blob, got %q", c.StorageDriver)
	}
	switch blob.Driver(strings.ToLower(c.BlobDriver)) {
	case blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if core.StorageDriver(strings.ToLower(c.StorageDriver)) == core.StorageBlob && c.BlobS3Bucket == "" {
			return fmt.Errorf("blob_s3_bucket is required when blob_driver is s3")
		}
	default:
		return fmt.Errorf("blob_driver must be fs, s3 or memory, got %q", c.BlobDriver)
	}
	if c.BlobHistory < 0 {
		return fmt.Errorf("blob_history must not be negative")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if c.SaveTimeout <= 0 {
		return fmt.Errorf("save_timeout must be positive, got %s", c.SaveTimeout)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if f := strings.ToLower(c.LogFormat); f != "json" && f != "console" {
		return fmt.Errorf("log_format must be json or console, got %q", c.LogFormat)
	}
	return nil
}

// Location resolves naive_time_zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.NaiveTimeZone)
	if err != nil {
		return nil, fmt.Errorf("naive_time_zone: %w", err)
	}
	return loc, nil
}

// Storage maps the persistence settings onto core.StorageConfig.
func (c *Config) Storage(logger core.Logger) core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.StorageDriver),
		SQLitePath:  c.SQLitePath,
		PostgresDSN: c.PostgresDSN,
		Blob: blob.Config{
			Driver: blob.Driver(c.BlobDriver),
			FSRoot: c.BlobFSRoot,
			S3: blob.S3Config{
				Region:          c.BlobS3Region,
				Bucket:          c.BlobS3Bucket,
				Endpoint:        c.BlobS3Endpoint,
				AccessKeyID:     c.BlobS3AccessKeyID,
				SecretAccessKey: c.BlobS3SecretAccessKey,
				PathStyle:       c.BlobS3PathStyle,
			},
		},
		BlobKey:     c.BlobKey,
		BlobHistory: c.BlobHistory,
		Logger:      logger,
	}
}
