package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	if err != nil {
		t.Fatalf("from env: %v", err)
	}

	want := &Config{
		Port:              "8080",
		DBPath:            "frisfocus.db",
		LogLevel:          "info",
		LogFormat:         "text",
		Timezone:          "UTC",
		BaseURL:           "http://localhost:8080",
		SessionTTL:        720 * time.Hour,
		SchedulerInterval: time.Minute,
		SchedulerWorkers:  4,
		VAPIDSubscriber:   "mailto:noreply@frisfocus.app",
		StorageBackend:    StorageNone,
		S3Region:          "us-east-1",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate defaults: %v", err)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"FRISFOCUS_PORT":            "9090",
		"FRISFOCUS_SESSION_TTL":     "2h",
		"FRISFOCUS_STORAGE_BACKEND": "GCS",
		"FRISFOCUS_STORAGE_BUCKET":  "proofs",
		"FRISFOCUS_ALLOWED_ORIGINS": "app.example.com, *.example.org ,",
	}))
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Port != "9090" || cfg.SessionTTL != 2*time.Hour {
		t.Errorf("port = %s ttl = %s, want 9090 and 2h", cfg.Port, cfg.SessionTTL)
	}
	if cfg.StorageBackend != StorageGCS {
		t.Errorf("backend = %q, want %q", cfg.StorageBackend, StorageGCS)
	}
	if diff := cmp.Diff([]string{"app.example.com", "*.example.org"}, cfg.AllowedOrigins); diff != "" {
		t.Errorf("origins mismatch (-want +got):\n%s", diff)
	}
}

func TestFromEnvRejectsBadDuration(t *testing.T) {
	for _, v := range []string{"soon", "-1h", "0s"} {
		if _, err := FromEnv(env(map[string]string{"FRISFOCUS_SCHEDULER_INTERVAL": v})); err == nil {
			t.Errorf("interval %q: expected error", v)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"half vapid", func(c *Config) { c.VAPIDPublicKey = "pub" }, "VAPID"},
		{"bad port", func(c *Config) { c.Port = "http" }, "port"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"s3 without bucket", func(c *Config) { c.StorageBackend = StorageS3 }, "bucket"},
		{"s3 half keys", func(c *Config) {
			c.StorageBackend = StorageS3
			c.StorageBucket = "b"
			c.S3AccessKey = "ak"
		}, "secret"},
		{"unknown backend", func(c *Config) { c.StorageBackend = "ftp" }, "unknown storage"},
		{"no workers", func(c *Config) { c.SchedulerWorkers = 0 }, "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := FromEnv(env(nil))
			if err != nil {
				t.Fatalf("from env: %v", err)
			}
			tt.mutate(cfg)
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("FRISFOCUS_DB_PATH=/tmp/from-file.db\nFRISFOCUS_LOG_FORMAT=json\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("FRISFOCUS_LOG_FORMAT", "text")
	t.Cleanup(func() { os.Unsetenv("FRISFOCUS_DB_PATH") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/from-file.db" {
		t.Errorf("db path = %q, want value from file", cfg.DBPath)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("log format = %q, environment should win over file", cfg.LogFormat)
	}
}

func TestLoadMissingEnvFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}
}
