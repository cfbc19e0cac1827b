// Package config loads waterboard configuration from environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage drivers.
const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// Blob drivers.
const (
	BlobFS     = "fs"
	BlobS3     = "s3"
	BlobMemory = "memory"
)

// Config contains every configuration value of the daemon and the CLI.
type Config struct {
	// HTTP listen address
	HTTPAddr string `env:"WATERBOARD_HTTP_ADDR" envDefault:":3000"`
	// Serve HTTPS with a self-signed certificate
	TLS bool `env:"WATERBOARD_TLS" envDefault:"false"`
	// Graceful shutdown budget
	ShutdownTimeout time.Duration `env:"WATERBOARD_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Store StoreConfig
	Blob  BlobConfig

	// Session lifetime for logged-in principals
	SessionTTL time.Duration `env:"WATERBOARD_SESSION_TTL" envDefault:"12h"`
	// Key sealing session cookies; random per process when empty
	SessionKey string `env:"WATERBOARD_SESSION_KEY"`
	// Mark cookies Secure
	SecureCookies bool `env:"WATERBOARD_SECURE_COOKIES" envDefault:"false"`

	// Upload limits for complaint and maintenance attachments
	MaxUploadBytes int64 `env:"WATERBOARD_MAX_UPLOAD_BYTES" envDefault:"10485760"`
	MaxAttachments int   `env:"WATERBOARD_MAX_ATTACHMENTS" envDefault:"5"`

	// Passed to the pipeline map page
	GoogleMapsKey string `env:"GOOGLE_MAPS_API_KEY"`

	LogLevel  string `env:"WATERBOARD_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"WATERBOARD_LOG_FORMAT" envDefault:"text"`
}

// StoreConfig selects the record backend.
type StoreConfig struct {
	Driver     string `env:"WATERBOARD_STORE_DRIVER" envDefault:"json"`
	DataDir    string `env:"WATERBOARD_DATA_DIR" envDefault:"./data"`
	SQLitePath string `env:"WATERBOARD_SQLITE_PATH" envDefault:"./data/waterboard.db"`
}

// BlobConfig selects where attachments are written.
type BlobConfig struct {
	Driver string `env:"WATERBOARD_BLOB_DRIVER" envDefault:"fs"`
	Root   string `env:"WATERBOARD_BLOB_ROOT" envDefault:"./data/uploads"`

	S3Bucket          string `env:"WATERBOARD_BLOB_S3_BUCKET"`
	S3Region          string `env:"WATERBOARD_BLOB_S3_REGION" envDefault:"us-east-1"`
	S3Endpoint        string `env:"WATERBOARD_BLOB_S3_ENDPOINT"`
	S3PathStyle       bool   `env:"WATERBOARD_BLOB_S3_PATH_STYLE" envDefault:"false"`
	S3AccessKeyID     string `env:"WATERBOARD_BLOB_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"WATERBOARD_BLOB_S3_SECRET_ACCESS_KEY"`
}

// Load parses the environment and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field rules that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreJSON:
		if c.Store.DataDir == "" {
			return fmt.Errorf("WATERBOARD_DATA_DIR: required for the json store")
		}
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("WATERBOARD_SQLITE_PATH: required for the sqlite store")
		}
	default:
		return fmt.Errorf("WATERBOARD_STORE_DRIVER: invalid value %q, allowed: json, sqlite", c.Store.Driver)
	}

	switch c.Blob.Driver {
	case BlobFS, BlobMemory:
	case BlobS3:
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("WATERBOARD_BLOB_S3_BUCKET: required for the s3 blob driver")
		}
	default:
		return fmt.Errorf("WATERBOARD_BLOB_DRIVER: invalid value %q, allowed: fs, s3, memory", c.Blob.Driver)
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("WATERBOARD_MAX_UPLOAD_BYTES: must be positive")
	}
	if c.MaxAttachments < 0 {
		return fmt.Errorf("WATERBOARD_MAX_ATTACHMENTS: must not be negative")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("WATERBOARD_SESSION_TTL: must be positive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("WATERBOARD_LOG_FORMAT: invalid value %q, allowed: text, json", c.LogFormat)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("WATERBOARD_LOG_LEVEL: invalid value %q, allowed: debug, info, warn, error", s)
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
