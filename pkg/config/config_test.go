package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Without a config file the defaults must produce a valid config.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with defaults failed: %v", err)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Expected default storage type memory, got %q", cfg.Storage.Type)
	}
	if cfg.Access.Mode != "presigned" {
		t.Errorf("Expected default access mode presigned, got %q", cfg.Access.Mode)
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: debug
server:
  port: 9000
  shutdown_timeout: 10s
storage:
  type: s3
  staging_bucket: stage
  persistent_bucket: keep
  s3:
    region: eu-west-1
    endpoint: http://localhost:9000
records:
  type: badger
  badger:
    db_path: /var/lib/filegate
access:
  mode: presigned
  default_ttl: 30m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized DEBUG level, got %q", cfg.Logging.Level)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected shutdown timeout 10s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Storage.Type != "s3" {
		t.Errorf("Expected storage type s3, got %q", cfg.Storage.Type)
	}
	if cfg.Storage.Scheme != "s3" {
		t.Errorf("Expected derived scheme s3, got %q", cfg.Storage.Scheme)
	}
	if cfg.Storage.StagingBucket != "stage" || cfg.Storage.PersistentBucket != "keep" {
		t.Errorf("Unexpected buckets: %q, %q", cfg.Storage.StagingBucket, cfg.Storage.PersistentBucket)
	}
	if cfg.Records.Type != "badger" {
		t.Errorf("Expected records type badger, got %q", cfg.Records.Type)
	}
	if cfg.Access.DefaultTTL != 30*time.Minute {
		t.Errorf("Expected default TTL 30m, got %v", cfg.Access.DefaultTTL)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: info
`)
	t.Setenv("FILEGATE_LOGGING_LEVEL", "ERROR")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected env override ERROR, got %q", cfg.Logging.Level)
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := writeConfigFile(t, `
storage:
  type: s3
  staging_bucket: shared
  persistent_bucket: shared
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Expected validation error for identical buckets")
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfigFile(t, "not: [valid: yaml")

	_, err := Load(path)
	if err == nil {
		t.Fatal("Expected error for malformed config file")
	}
}
