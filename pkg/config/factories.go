package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/filegate/internal/logger"
	"github.com/marmos91/filegate/pkg/access"
	"github.com/marmos91/filegate/pkg/store/object"
	objectMemory "github.com/marmos91/filegate/pkg/store/object/memory"
	objectS3 "github.com/marmos91/filegate/pkg/store/object/s3"
	"github.com/marmos91/filegate/pkg/store/record"
	recordBadger "github.com/marmos91/filegate/pkg/store/record/badger"
	recordMemory "github.com/marmos91/filegate/pkg/store/record/memory"
)

// s3Options is the S3-specific configuration shared by the object store and
// the STS token exchange.
type s3Options struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// CreateObjectStore creates an object storage backend based on configuration.
//
// This factory function uses the Type field to determine which backend
// implementation to create, then decodes the type-specific configuration
// from the corresponding map and passes it to the backend's constructor.
//
// Supported types:
//   - "s3": Uses pkg/store/object/s3 (Amazon S3 or compatible storage)
//   - "memory": Uses pkg/store/object/memory (in-memory, ephemeral)
func CreateObjectStore(ctx context.Context, cfg *StorageConfig) (object.Store, error) {
	switch cfg.Type {
	case "s3":
		return createS3ObjectStore(ctx, cfg.S3)
	case "memory":
		return objectMemory.NewMemoryObjectStore(), nil
	default:
		return nil, fmt.Errorf("unknown object storage type: %q (supported: s3, memory)", cfg.Type)
	}
}

// createS3ObjectStore creates an S3-backed object store.
func createS3ObjectStore(ctx context.Context, options map[string]any) (object.Store, error) {
	var opts s3Options
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode S3 storage config: %w", err)
	}

	if opts.Region == "" {
		return nil, fmt.Errorf("S3 storage: region is required")
	}

	awsCfg, err := loadAWSConfig(ctx, opts)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Force path-style addressing for compatibility with MinIO/Localstack
		if opts.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	store, err := objectS3.NewS3ObjectStore(objectS3.S3ObjectStoreConfig{
		Client: client,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 object store: %w", err)
	}

	logger.Info("S3 object store initialized: region=%s, endpoint=%s", opts.Region, opts.Endpoint)
	return store, nil
}

// loadAWSConfig builds an AWS SDK config from the S3 options.
func loadAWSConfig(ctx context.Context, opts s3Options) (aws.Config, error) {
	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(opts.Region))

	// Custom endpoint for MinIO, Localstack, etc.
	if opts.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               opts.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	// Static credentials if provided, otherwise the default credential chain
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// CreateRecordStore creates a record store based on configuration.
//
// Supported types:
//   - "memory": Uses pkg/store/record/memory (in-memory, ephemeral)
//   - "badger": Uses pkg/store/record/badger (BadgerDB, persistent)
func CreateRecordStore(ctx context.Context, cfg *RecordsConfig) (record.Repository, error) {
	switch cfg.Type {
	case "memory":
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return recordMemory.NewMemoryRecordStore(), nil
	case "badger":
		return createBadgerRecordStore(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown record store type: %q (supported: memory, badger)", cfg.Type)
	}
}

// createBadgerRecordStore creates a BadgerDB-backed persistent record store.
func createBadgerRecordStore(ctx context.Context, options map[string]any) (record.Repository, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type badgerRecordStoreOptions struct {
		DBPath   string `mapstructure:"db_path"`
		InMemory bool   `mapstructure:"in_memory"`
	}

	var storeOpts badgerRecordStoreOptions
	if err := mapstructure.Decode(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("failed to decode badger record store options: %w", err)
	}

	if storeOpts.DBPath == "" && !storeOpts.InMemory {
		return nil, fmt.Errorf("badger record store: db_path is required")
	}

	store, err := recordBadger.NewBadgerRecordStore(ctx, recordBadger.BadgerRecordStoreConfig{
		DBPath:   storeOpts.DBPath,
		InMemory: storeOpts.InMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger record store: %w", err)
	}

	return store, nil
}

// CreateAccessService creates the signed-access service, including the
// credential vendor when the deployment runs in credential mode.
func CreateAccessService(ctx context.Context, cfg *Config, backend object.Store) (*access.Service, error) {
	serviceCfg := access.ServiceConfig{
		Backend:    backend,
		Mode:       access.Mode(cfg.Access.Mode),
		DefaultTTL: cfg.Access.DefaultTTL,
	}

	if cfg.Access.Mode == "credential" {
		vendor, err := createPolicyVendor(ctx, cfg)
		if err != nil {
			return nil, err
		}
		serviceCfg.Vendor = vendor
	}

	svc, err := access.NewService(serviceCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create access service: %w", err)
	}
	return svc, nil
}

// createPolicyVendor builds the STS-backed credential vendor.
func createPolicyVendor(ctx context.Context, cfg *Config) (*access.PolicyVendor, error) {
	var opts s3Options
	if err := mapstructure.Decode(cfg.Storage.S3, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode S3 storage config: %w", err)
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("credential mode: storage.s3.region is required")
	}

	awsCfg, err := loadAWSConfig(ctx, opts)
	if err != nil {
		return nil, err
	}

	exchanger, err := access.NewSTSExchanger(access.STSExchangerConfig{
		Client: sts.NewFromConfig(awsCfg),
	})
	if err != nil {
		return nil, err
	}

	vendor, err := access.NewPolicyVendor(access.PolicyVendorConfig{
		Exchanger:     exchanger,
		Resolver:      access.StaticRoleResolver(cfg.Access.Roles),
		MaxDuration:   cfg.Access.MaxCredentialDuration,
		RoleCacheSize: cfg.Access.RoleCacheSize,
		RoleCacheTTL:  cfg.Access.RoleCacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create policy vendor: %w", err)
	}

	logger.Info("Credential vendor initialized for %d partition roles", len(cfg.Access.Roles))
	return vendor, nil
}
