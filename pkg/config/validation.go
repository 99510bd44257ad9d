package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// Staging and persistent objects share relative paths, so the buckets
	// must differ or commits would copy objects onto themselves.
	if cfg.Storage.StagingBucket == cfg.Storage.PersistentBucket {
		return fmt.Errorf("storage: staging_bucket and persistent_bucket must differ")
	}

	// Credential mode needs a role to assume for every served partition.
	if cfg.Access.Mode == "credential" {
		if cfg.Storage.Type != "s3" {
			return fmt.Errorf("access: credential mode requires the s3 storage backend")
		}
		if len(cfg.Access.Roles) == 0 {
			return fmt.Errorf("access: credential mode requires at least one partition role")
		}
		for partition, role := range cfg.Access.Roles {
			if role == "" {
				return fmt.Errorf("access: empty role for partition %q", partition)
			}
		}
	}

	if cfg.Access.DefaultTTL > cfg.Access.MaxCredentialDuration && cfg.Access.Mode == "credential" {
		return fmt.Errorf("access: default_ttl %s exceeds max_credential_duration %s",
			cfg.Access.DefaultTTL, cfg.Access.MaxCredentialDuration)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
