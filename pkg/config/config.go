package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Filegate configuration.
//
// This structure captures all configurable aspects of the service including:
//   - Logging configuration
//   - Server-wide settings (HTTP listener, timeouts, metrics)
//   - Object storage backend selection and configuration (backend-specific)
//   - Record store selection and configuration (store-specific)
//   - Signed-access settings (mode, TTLs, partition roles)
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (FILEGATE_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each backend implementation defines its own configuration type and factory
// function. The Config struct contains type-specific sections (e.g.
// storage.s3, storage.memory) and only the section matching the selected
// type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Storage specifies the object storage backend and its configuration
	Storage StorageConfig `mapstructure:"storage"`

	// Records specifies the record store type and type-specific configuration
	Records RecordsConfig `mapstructure:"records"`

	// Access contains signed-access issuance settings
	Access AccessConfig `mapstructure:"access"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// Port is the HTTP listener port
	Port int `mapstructure:"port" validate:"required,gt=0,lte=65535"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// RequestTimeout bounds each inbound request; all I/O inherits it
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required,gt=0"`

	// RateLimitRPS caps the sustained request rate. Zero disables limiting
	RateLimitRPS uint `mapstructure:"rate_limit_rps"`

	// RateLimitBurst is the burst capacity above the sustained rate
	RateLimitBurst uint `mapstructure:"rate_limit_burst"`

	// Metrics configures the Prometheus metrics endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	// Enabled turns metrics collection and the metrics server on
	Enabled bool `mapstructure:"enabled"`

	// Port is the metrics HTTP listener port
	Port int `mapstructure:"port"`
}

// StorageConfig specifies object storage backend configuration.
//
// The Type field determines which backend implementation is used.
// Only the corresponding type-specific configuration section is used.
type StorageConfig struct {
	// Type specifies which object storage backend to use
	// Valid values: s3, memory
	Type string `mapstructure:"type" validate:"required,oneof=s3 memory"`

	// Scheme is the vendor URI scheme used in physical addresses.
	// Defaults to a scheme matching the backend type.
	Scheme string `mapstructure:"scheme"`

	// StagingBucket holds objects between allocation and commit
	StagingBucket string `mapstructure:"staging_bucket" validate:"required"`

	// PersistentBucket holds committed objects
	PersistentBucket string `mapstructure:"persistent_bucket" validate:"required"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`
}

// RecordsConfig specifies record store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type RecordsConfig struct {
	// Type specifies which record store implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`
}

// AccessConfig contains signed-access issuance settings.
type AccessConfig struct {
	// Mode selects how grants are materialized
	// Valid values: presigned, credential
	Mode string `mapstructure:"mode" validate:"required,oneof=presigned credential"`

	// DefaultTTL applies when a caller does not specify a grant lifetime
	DefaultTTL time.Duration `mapstructure:"default_ttl" validate:"required,gt=0"`

	// MaxCredentialDuration is the hard ceiling on scoped credential
	// lifetime. Requested TTLs above it are clamped.
	MaxCredentialDuration time.Duration `mapstructure:"max_credential_duration" validate:"required,gt=0"`

	// RoleCacheSize bounds the role metadata cache capacity
	RoleCacheSize int `mapstructure:"role_cache_size"`

	// RoleCacheTTL bounds the role metadata cache entry lifetime
	RoleCacheTTL time.Duration `mapstructure:"role_cache_ttl"`

	// Roles maps each tenant partition to the role assumed for scoped
	// credentials. Only used when Mode = "credential".
	Roles map[string]string `mapstructure:"roles"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FILEGATE_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the FILEGATE_ prefix and underscores.
	// Example: FILEGATE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("FILEGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/filegate/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Missing config file is acceptable, defaults apply
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "filegate")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "filegate")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
