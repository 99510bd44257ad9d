package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_Empty(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level INFO, got %q", cfg.Logging.Level)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.RequestTimeout != 60*time.Second {
		t.Errorf("Expected default request timeout 60s, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Expected default storage type memory, got %q", cfg.Storage.Type)
	}
	if cfg.Records.Type != "memory" {
		t.Errorf("Expected default records type memory, got %q", cfg.Records.Type)
	}
	if cfg.Access.Mode != "presigned" {
		t.Errorf("Expected default access mode presigned, got %q", cfg.Access.Mode)
	}
	if cfg.Access.DefaultTTL != 15*time.Minute {
		t.Errorf("Expected default TTL 15m, got %v", cfg.Access.DefaultTTL)
	}
}

func TestApplyDefaults_LogLevelNormalization(t *testing.T) {
	cfg := &Config{}
	cfg.Logging.Level = "debug"
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized log level DEBUG, got %q", cfg.Logging.Level)
	}
}

func TestApplyDefaults_SchemeFollowsBackend(t *testing.T) {
	tests := []struct {
		storageType string
		wantScheme  string
	}{
		{storageType: "s3", wantScheme: "s3"},
		{storageType: "memory", wantScheme: "mem"},
	}

	for _, tt := range tests {
		cfg := &Config{}
		cfg.Storage.Type = tt.storageType
		ApplyDefaults(cfg)

		if cfg.Storage.Scheme != tt.wantScheme {
			t.Errorf("Storage type %q: expected scheme %q, got %q",
				tt.storageType, tt.wantScheme, cfg.Storage.Scheme)
		}
	}
}

func TestApplyDefaults_ExplicitSchemePreserved(t *testing.T) {
	cfg := &Config{}
	cfg.Storage.Type = "s3"
	cfg.Storage.Scheme = "gs"
	ApplyDefaults(cfg)

	if cfg.Storage.Scheme != "gs" {
		t.Errorf("Expected explicit scheme to be preserved, got %q", cfg.Storage.Scheme)
	}
}

func TestApplyDefaults_MetricsPort(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Metrics.Enabled = true
	ApplyDefaults(cfg)

	if cfg.Server.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Server.Metrics.Port)
	}

	// Port stays zero when metrics are disabled
	disabled := &Config{}
	ApplyDefaults(disabled)
	if disabled.Server.Metrics.Port != 0 {
		t.Errorf("Expected metrics port 0 when disabled, got %d", disabled.Server.Metrics.Port)
	}
}

func TestApplyDefaults_MapsInitialized(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Storage.S3 == nil || cfg.Storage.Memory == nil {
		t.Error("Expected storage config maps to be initialized")
	}
	if cfg.Records.Memory == nil || cfg.Records.Badger == nil {
		t.Error("Expected records config maps to be initialized")
	}
	if cfg.Access.Roles == nil {
		t.Error("Expected roles map to be initialized")
	}
}

func TestGetDefaultConfig_Valid(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected default config to validate, got: %v", err)
	}
}
