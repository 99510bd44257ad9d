package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyStorageDefaults(&cfg.Storage)
	applyRecordsDefaults(&cfg.Records)
	applyAccessDefaults(&cfg.Access)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// applyStorageDefaults sets object storage defaults.
func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	if cfg.Scheme == "" {
		switch cfg.Type {
		case "s3":
			cfg.Scheme = "s3"
		default:
			cfg.Scheme = "mem"
		}
	}

	if cfg.StagingBucket == "" {
		cfg.StagingBucket = "filegate-staging"
	}
	if cfg.PersistentBucket == "" {
		cfg.PersistentBucket = "filegate-persistent"
	}

	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
}

// applyRecordsDefaults sets record store defaults.
func applyRecordsDefaults(cfg *RecordsConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
}

// applyAccessDefaults sets signed-access defaults.
func applyAccessDefaults(cfg *AccessConfig) {
	if cfg.Mode == "" {
		cfg.Mode = "presigned"
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = 15 * time.Minute
	}
	if cfg.MaxCredentialDuration == 0 {
		cfg.MaxCredentialDuration = time.Hour
	}
	if cfg.RoleCacheSize == 0 {
		cfg.RoleCacheSize = 128
	}
	if cfg.RoleCacheTTL == 0 {
		cfg.RoleCacheTTL = 10 * time.Minute
	}
	if cfg.Roles == nil {
		cfg.Roles = make(map[string]string)
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			S3:     make(map[string]any),
			Memory: make(map[string]any),
		},
		Records: RecordsConfig{
			Memory: make(map[string]any),
			Badger: make(map[string]any),
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
