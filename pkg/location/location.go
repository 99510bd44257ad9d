// Package location implements logical file location allocation: binding a
// collision-resistant identifier to a physical staging address and handing
// the caller an upload grant for it.
package location

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/filegate/internal/logger"
	"github.com/marmos91/filegate/pkg/access"
	"github.com/marmos91/filegate/pkg/identity"
	"github.com/marmos91/filegate/pkg/store/object"
	"github.com/marmos91/filegate/pkg/store/record"
)

// Result is the outcome of a location allocation: the bound identifier and
// an upload grant for its staging address.
type Result struct {
	// ID is the logical file identifier, either caller-supplied or
	// generated.
	ID string `json:"file_id"`

	// Location is the upload grant for the staging address.
	Location *access.SignedAccess `json:"location"`
}

// ServiceConfig holds the dependencies for creating a Service.
type ServiceConfig struct {
	// Access issues the upload grant returned with each allocation.
	Access *access.Service

	// Backend is the deployment's object storage backend; its vendor tag
	// is recorded on every location.
	Backend object.Store

	// Repository persists the id to physical-location mapping.
	Repository record.LocationRepository

	// Scheme is the vendor URI scheme of the backend (e.g. "s3").
	Scheme string

	// StagingBucket is the bucket staging objects are allocated under.
	StagingBucket string
}

// Service allocates and resolves logical file locations.
//
// Allocation relies on the repository's atomic insert-if-absent: two
// concurrent allocations of the same caller-supplied id result in exactly
// one success, with the loser surfacing AlreadyExists. Exactly one
// repository write happens per successful allocation; lookups never write.
type Service struct {
	access        *access.Service
	backend       object.Store
	repo          record.LocationRepository
	scheme        string
	stagingBucket string
}

// NewService creates a location service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Access == nil {
		return nil, fmt.Errorf("location service: access service is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("location service: backend is required")
	}
	if cfg.Repository == nil {
		return nil, fmt.Errorf("location service: repository is required")
	}
	if cfg.Scheme == "" || cfg.StagingBucket == "" {
		return nil, fmt.Errorf("location service: scheme and staging bucket are required")
	}

	return &Service{
		access:        cfg.Access,
		backend:       cfg.Backend,
		repo:          cfg.Repository,
		scheme:        cfg.Scheme,
		stagingBucket: cfg.StagingBucket,
	}, nil
}

// CreateLocation allocates a staging location. When requestedID is empty a
// fresh collision-resistant id is generated; a caller-supplied id that is
// already bound in the partition fails with AlreadyExists.
func (s *Service) CreateLocation(ctx context.Context, requestedID string) (*Result, error) {
	principal, _ := identity.FromContext(ctx)

	id := requestedID
	if id == "" {
		id = generateID()
	}

	addr := object.Address{
		Scheme: s.scheme,
		Bucket: s.stagingBucket,
		Key:    principal.Partition + "/" + id,
	}

	grant, err := s.access.GrantUpload(ctx, addr, 0)
	if err != nil {
		return nil, err
	}

	loc := record.FileLocation{
		ID:          id,
		BackendKind: s.backend.Kind(),
		PhysicalURI: grant.URI,
		CreatedBy:   principal.UserID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Save(ctx, principal.Partition, loc); err != nil {
		return nil, err
	}

	logger.Debug("Allocated location %s in partition %s for %s", id, principal.Partition, principal.UserID)
	return &Result{ID: id, Location: grant}, nil
}

// GetLocation resolves the location bound to id within the caller's
// partition. Fails with NotFound when the id is unbound.
func (s *Service) GetLocation(ctx context.Context, id string) (*record.FileLocation, error) {
	principal, _ := identity.FromContext(ctx)

	loc, err := s.repo.FindByID(ctx, principal.Partition, id)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		return nil, &object.StoreError{
			Code:    object.ErrNotFound,
			Message: "no location bound to id",
			Path:    id,
		}
	}
	return loc, nil
}

// ListLocations returns one page of the caller's locations matching the
// filter. The partition is always taken from the caller's identity; the
// cursor is opaque and passed back unmodified to continue the scan.
func (s *Service) ListLocations(ctx context.Context, filter record.ListFilter, pageSize int, cursor string) (*record.Page, error) {
	principal, _ := identity.FromContext(ctx)
	filter.Partition = principal.Partition

	return s.repo.Scan(ctx, filter, pageSize, cursor)
}

// generateID returns a fresh 32-character hex identifier.
func generateID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
