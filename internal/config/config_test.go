package config

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPAddr != ":3000" {
		t.Errorf("Expected :3000, got %s", cfg.HTTPAddr)
	}
	if cfg.Store.Driver != StoreJSON || cfg.Store.DataDir != "./data" {
		t.Errorf("Unexpected store config: %+v", cfg.Store)
	}
	if cfg.Blob.Driver != BlobFS {
		t.Errorf("Expected fs blob driver, got %s", cfg.Blob.Driver)
	}
	if cfg.SessionTTL != 12*time.Hour {
		t.Errorf("Expected 12h session TTL, got %s", cfg.SessionTTL)
	}
	if cfg.MaxAttachments != 5 || cfg.MaxUploadBytes != 10<<20 {
		t.Errorf("Unexpected upload limits: %d / %d", cfg.MaxAttachments, cfg.MaxUploadBytes)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("WATERBOARD_HTTP_ADDR", ":8080")
	t.Setenv("WATERBOARD_STORE_DRIVER", "sqlite")
	t.Setenv("WATERBOARD_SQLITE_PATH", "/var/lib/waterboard/db.sqlite")
	t.Setenv("WATERBOARD_SESSION_TTL", "30m")
	t.Setenv("GOOGLE_MAPS_API_KEY", "maps-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.Store.Driver != StoreSQLite || cfg.Store.SQLitePath != "/var/lib/waterboard/db.sqlite" {
		t.Errorf("Env not applied: %+v", cfg)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("Expected 30m, got %s", cfg.SessionTTL)
	}
	if cfg.GoogleMapsKey != "maps-key" {
		t.Errorf("Expected maps key, got %q", cfg.GoogleMapsKey)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"store driver":   {"WATERBOARD_STORE_DRIVER": "postgres"},
		"blob driver":    {"WATERBOARD_BLOB_DRIVER": "ftp"},
		"s3 bucket":      {"WATERBOARD_BLOB_DRIVER": "s3"},
		"upload limit":   {"WATERBOARD_MAX_UPLOAD_BYTES": "0"},
		"log level":      {"WATERBOARD_LOG_LEVEL": "loud"},
		"log format":     {"WATERBOARD_LOG_FORMAT": "xml"},
		"bad duration":   {"WATERBOARD_SESSION_TTL": "soon"},
		"zero ttl":       {"WATERBOARD_SESSION_TTL": "0s"},
		"negative files": {"WATERBOARD_MAX_ATTACHMENTS": "-1"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: "warn", LogFormat: "json"}
	log := cfg.NewLogger(&buf)

	log.Info("hidden")
	log.Warn("shown", "collection", "notices")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("Info should be filtered at warn level")
	}
	if !strings.Contains(out, `"collection":"notices"`) {
		t.Errorf("Expected JSON output, got %q", out)
	}
}
