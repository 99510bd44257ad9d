// Package commit implements the staging-to-persistent promotion workflow:
// copy the staged object to its persistent address, record durable dataset
// metadata, and clean up, with a compensating delete when the metadata
// write fails after the copy succeeded.
package commit

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/filegate/internal/logger"
	"github.com/marmos91/filegate/pkg/identity"
	"github.com/marmos91/filegate/pkg/store/object"
	"github.com/marmos91/filegate/pkg/store/record"
)

// Request asks for one staged file to be promoted to persistent storage.
type Request struct {
	// DatasetID identifies the dataset the file belongs to.
	DatasetID string `json:"id"`

	// FilePath is the object path relative to the bucket, shared between
	// the staging and persistent locations.
	FilePath string `json:"file_path"`
}

// ItemResult reports the outcome of one promotion within a batch. A failed
// item never affects the other items in the batch.
type ItemResult struct {
	// DatasetID echoes the request so batch responses can be correlated.
	DatasetID string `json:"id"`

	// Path is the persistent vendor URI on success, empty on failure.
	Path string `json:"path,omitempty"`

	// Checksum is the backend content digest recorded at commit time.
	Checksum string `json:"checksum,omitempty"`

	// Success reports whether the promotion completed.
	Success bool `json:"success"`

	// Message carries the failure reason when Success is false.
	Message string `json:"message,omitempty"`
}

// WorkflowConfig holds the dependencies for creating a Workflow.
type WorkflowConfig struct {
	// Backend performs the object copy and deletes.
	Backend object.Store

	// Repository persists committed-dataset records.
	Repository record.DatasetRepository

	// Scheme is the vendor URI scheme of the backend.
	Scheme string

	// StagingBucket holds objects before promotion.
	StagingBucket string

	// PersistentBucket holds committed objects.
	PersistentBucket string
}

// Workflow promotes staged objects to persistent storage.
//
// Promotion is the subsystem's only multi-step, cross-resource operation.
// The ordering is fixed: copy first, then metadata. A copy failure aborts
// before any metadata write; a metadata failure after a successful copy
// triggers a compensating delete of the persistent object so no orphaned,
// unreferenced object survives. Cleanup of the staging copy is best-effort
// only, since the object has already been durably copied.
//
// Retrying a promotion is at-least-once, not exactly-once: re-copying an
// already-copied object is a backend no-op and re-recording the dataset
// overwrites the previous record.
type Workflow struct {
	backend          object.Store
	repo             record.DatasetRepository
	scheme           string
	stagingBucket    string
	persistentBucket string
}

// NewWorkflow creates a commit workflow.
func NewWorkflow(cfg WorkflowConfig) (*Workflow, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("commit workflow: backend is required")
	}
	if cfg.Repository == nil {
		return nil, fmt.Errorf("commit workflow: repository is required")
	}
	if cfg.Scheme == "" || cfg.StagingBucket == "" || cfg.PersistentBucket == "" {
		return nil, fmt.Errorf("commit workflow: scheme and bucket names are required")
	}

	return &Workflow{
		backend:          cfg.Backend,
		repo:             cfg.Repository,
		scheme:           cfg.Scheme,
		stagingBucket:    cfg.StagingBucket,
		persistentBucket: cfg.PersistentBucket,
	}, nil
}

// Addresses maps a relative file path to its staging and persistent
// addresses. Pure path mapping, no I/O.
func (w *Workflow) Addresses(filePath string) (staging, persistent object.Address) {
	staging = object.Address{Scheme: w.scheme, Bucket: w.stagingBucket, Key: filePath}
	persistent = object.Address{Scheme: w.scheme, Bucket: w.persistentBucket, Key: filePath}
	return staging, persistent
}

// Commit promotes every request in the batch, isolating failures per item.
func (w *Workflow) Commit(ctx context.Context, requests []Request) []ItemResult {
	results := make([]ItemResult, 0, len(requests))
	for _, req := range requests {
		result := ItemResult{DatasetID: req.DatasetID}

		rec, err := w.commitOne(ctx, req)
		if err != nil {
			result.Message = err.Error()
			logger.Warn("Commit of dataset %s failed: %v", req.DatasetID, err)
		} else {
			result.Success = true
			result.Path = rec.PersistentURI
			result.Checksum = rec.Checksum
		}
		results = append(results, result)
	}
	return results
}

// commitOne runs the promotion for a single file.
func (w *Workflow) commitOne(ctx context.Context, req Request) (*record.DatasetRecord, error) {
	staging, persistent := w.Addresses(req.FilePath)
	if err := staging.Validate(); err != nil {
		return nil, err
	}

	if err := w.backend.Copy(ctx, staging, persistent); err != nil {
		return nil, &object.StoreError{
			Code:    object.ErrCopyFailed,
			Message: fmt.Sprintf("failed to copy staged object: %v", err),
			Path:    staging.String(),
		}
	}

	checksum, err := w.backend.Digest(ctx, persistent)
	if err != nil {
		// The digest is recorded opportunistically; a missing digest does
		// not fail the commit.
		logger.Warn("Could not read digest of %s: %v", persistent.String(), err)
		checksum = ""
	}

	principal, _ := identity.FromContext(ctx)
	rec := record.DatasetRecord{
		ID:            req.DatasetID,
		Partition:     principal.Partition,
		PersistentURI: persistent.String(),
		Checksum:      checksum,
		CreatedBy:     principal.UserID,
		CreatedAt:     time.Now().UTC(),
	}

	if err := w.repo.SaveDataset(ctx, rec); err != nil {
		// Compensating action: the copy succeeded but the record did not,
		// so remove the persistent object rather than orphan it. The
		// original metadata failure is what the caller sees.
		if delErr := w.backend.Delete(ctx, persistent); delErr != nil {
			logger.Error("Rollback delete of %s failed: %v", persistent.String(), delErr)
		}
		return nil, fmt.Errorf("failed to record committed dataset %s: %w", req.DatasetID, err)
	}

	// The staged copy is now redundant. Deletion failures are logged and
	// swallowed; the promotion has already completed durably.
	if err := w.backend.Delete(ctx, staging); err != nil {
		logger.Warn("Could not delete staged object %s: %v", staging.String(), err)
	}

	return &rec, nil
}
