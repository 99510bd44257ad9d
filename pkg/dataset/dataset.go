// Package dataset builds the per-dataset storage and retrieval
// instructions handed to clients: where to upload new content and how to
// fetch committed content, each carrying a signed grant.
package dataset

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/marmos91/filegate/internal/logger"
	"github.com/marmos91/filegate/pkg/access"
	"github.com/marmos91/filegate/pkg/identity"
	"github.com/marmos91/filegate/pkg/store/object"
	"github.com/marmos91/filegate/pkg/store/record"
)

// StorageEntry tells a client where to upload content for one dataset.
type StorageEntry struct {
	// DatasetRegistryID echoes the dataset the entry was built for.
	DatasetRegistryID string `json:"dataset_registry_id"`

	// ProviderKey is the backend vendor tag, so the client knows how to
	// interpret the signing properties.
	ProviderKey string `json:"provider_key"`

	// Location is the upload grant for the freshly allocated staging
	// address.
	Location *access.SignedAccess `json:"storage_location"`
}

// RetrievalEntry tells a client how to fetch one committed dataset. A
// failed entry carries its reason in Message and never affects the other
// entries of the batch.
type RetrievalEntry struct {
	// DatasetRegistryID echoes the request so multi-item responses can be
	// correlated.
	DatasetRegistryID string `json:"dataset_registry_id"`

	// ProviderKey is the backend vendor tag.
	ProviderKey string `json:"provider_key,omitempty"`

	// Location is the download grant. Nil when the entry failed.
	Location *access.SignedAccess `json:"retrieval_properties,omitempty"`

	// Message carries the failure reason for this entry, empty on success.
	Message string `json:"message,omitempty"`
}

// Registry resolves a dataset registry id to the recorded vendor URI of
// its committed object.
type Registry interface {
	ResolveDatasetPath(ctx context.Context, partition, registryID string) (string, error)
}

// RecordRegistry resolves dataset paths from the local record store.
type RecordRegistry struct {
	Repository record.DatasetRepository
}

// ResolveDatasetPath implements Registry. Returns a NotFound error when no
// dataset record exists for the id.
func (r RecordRegistry) ResolveDatasetPath(ctx context.Context, partition, registryID string) (string, error) {
	rec, err := r.Repository.FindDataset(ctx, partition, registryID)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", &object.StoreError{
			Code:    object.ErrNotFound,
			Message: "no dataset record for registry id",
			Path:    registryID,
		}
	}
	return rec.PersistentURI, nil
}

// BuilderConfig holds the dependencies for creating a Builder.
type BuilderConfig struct {
	// Access issues the grants embedded in instruction entries.
	Access *access.Service

	// Backend supplies the vendor tag reported as ProviderKey.
	Backend object.Store

	// Registry resolves committed dataset paths for retrieval entries.
	Registry Registry

	// Scheme is the vendor URI scheme of the backend.
	Scheme string

	// StagingBucket is the bucket storage instructions allocate under.
	StagingBucket string
}

// Builder constructs storage and retrieval instruction entries.
type Builder struct {
	access        *access.Service
	backend       object.Store
	registry      Registry
	scheme        string
	stagingBucket string
}

// NewBuilder creates an instruction builder.
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if cfg.Access == nil {
		return nil, fmt.Errorf("dataset builder: access service is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("dataset builder: backend is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("dataset builder: registry is required")
	}
	if cfg.Scheme == "" || cfg.StagingBucket == "" {
		return nil, fmt.Errorf("dataset builder: scheme and staging bucket are required")
	}

	return &Builder{
		access:        cfg.Access,
		backend:       cfg.Backend,
		registry:      cfg.Registry,
		scheme:        cfg.Scheme,
		stagingBucket: cfg.StagingBucket,
	}, nil
}

// BuildStorageInstructions allocates a fresh staging address under the
// dataset's prefix and returns an upload grant for it. Every call
// allocates a new address; addresses are never reused.
func (b *Builder) BuildStorageInstructions(ctx context.Context, datasetID string) (*StorageEntry, error) {
	if datasetID == "" {
		return nil, &object.StoreError{
			Code:    object.ErrMalformedLocation,
			Message: "dataset id is required",
		}
	}

	principal, _ := identity.FromContext(ctx)
	addr := object.Address{
		Scheme: b.scheme,
		Bucket: b.stagingBucket,
		Key:    principal.Partition + "/" + datasetID + "/" + freshObjectName(),
	}

	grant, err := b.access.GrantUpload(ctx, addr, 0)
	if err != nil {
		return nil, err
	}

	return &StorageEntry{
		DatasetRegistryID: datasetID,
		ProviderKey:       b.backend.Kind(),
		Location:          grant,
	}, nil
}

// BuildRetrievalInstructions resolves each registry id to its committed
// object and issues a download grant. A bad id fails only its own entry;
// the rest of the batch is unaffected.
func (b *Builder) BuildRetrievalInstructions(ctx context.Context, registryIDs []string) []RetrievalEntry {
	principal, _ := identity.FromContext(ctx)

	entries := make([]RetrievalEntry, 0, len(registryIDs))
	for _, id := range registryIDs {
		entry := RetrievalEntry{DatasetRegistryID: id}

		grant, err := b.retrievalGrant(ctx, principal.Partition, id)
		if err != nil {
			entry.Message = err.Error()
			logger.Warn("Retrieval instructions for dataset %s failed: %v", id, err)
		} else {
			entry.ProviderKey = b.backend.Kind()
			entry.Location = grant
		}
		entries = append(entries, entry)
	}
	return entries
}

func (b *Builder) retrievalGrant(ctx context.Context, partition, registryID string) (*access.SignedAccess, error) {
	uri, err := b.registry.ResolveDatasetPath(ctx, partition, registryID)
	if err != nil {
		return nil, err
	}

	addr, err := object.ParseAddress(uri)
	if err != nil {
		return nil, invalidSourcePath(registryID, uri)
	}
	// The recorded path must denote a single object, never a prefix.
	if strings.HasSuffix(addr.Key, "/") || addr.Validate() != nil {
		return nil, invalidSourcePath(registryID, uri)
	}

	return b.access.GrantDownload(ctx, addr, 0)
}

func invalidSourcePath(registryID, uri string) error {
	return &object.StoreError{
		Code:    object.ErrInvalidSourcePath,
		Message: fmt.Sprintf("dataset %s records an unusable source path %q", registryID, uri),
		Path:    uri,
	}
}

// freshObjectName returns a random 32-character hex object name.
func freshObjectName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
