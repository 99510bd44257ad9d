// Package record defines the durable record stores behind the location
// service and the commit workflow: the logical-id to physical-location
// mapping, and the committed-dataset metadata records.
//
// Like the object backend, exactly one implementation is selected per
// deployment from configuration (badger for persistence, memory for tests
// and hermetic runs).
package record

import (
	"context"
	"time"
)

// FileLocation maps a logical file identifier to its physical storage
// location. Created once by the location service and never mutated; at most
// one FileLocation exists per id within a partition.
type FileLocation struct {
	// ID is the opaque logical identifier of the file.
	ID string `json:"id"`

	// BackendKind is the vendor tag of the backend holding the object.
	BackendKind string `json:"backend_kind"`

	// PhysicalURI is the fully-qualified vendor URI of the object.
	PhysicalURI string `json:"physical_uri"`

	// CreatedBy is the principal that requested the location.
	CreatedBy string `json:"created_by"`

	// CreatedAt is the record creation time.
	CreatedAt time.Time `json:"created_at"`
}

// DatasetRecord describes a committed dataset: the durable metadata written
// by the commit workflow after a successful staging-to-persistent copy.
type DatasetRecord struct {
	// ID is the dataset identifier.
	ID string `json:"id"`

	// Partition scopes the record to one tenant.
	Partition string `json:"partition"`

	// PersistentURI is the vendor URI of the committed object.
	PersistentURI string `json:"persistent_uri"`

	// Checksum is the backend content digest recorded at commit time.
	Checksum string `json:"checksum"`

	// CreatedBy is the principal that committed the dataset.
	CreatedBy string `json:"created_by"`

	// CreatedAt is the commit time.
	CreatedAt time.Time `json:"created_at"`
}

// ListFilter selects locations for a paginated scan. Scans are always
// scoped to exactly one partition; cross-partition queries are not
// supported.
type ListFilter struct {
	// Partition is the tenant scope of the scan. Required.
	Partition string

	// CreatedBy restricts results to one principal when non-empty.
	CreatedBy string

	// TimeFrom restricts results to records created at or after this time
	// when non-zero.
	TimeFrom time.Time

	// TimeTo restricts results to records created at or before this time
	// when non-zero.
	TimeTo time.Time
}

// Matches reports whether loc satisfies the optional filter fields.
// Partition scoping happens in the store, not here.
func (f ListFilter) Matches(loc *FileLocation) bool {
	if f.CreatedBy != "" && loc.CreatedBy != f.CreatedBy {
		return false
	}
	if !f.TimeFrom.IsZero() && loc.CreatedAt.Before(f.TimeFrom) {
		return false
	}
	if !f.TimeTo.IsZero() && loc.CreatedAt.After(f.TimeTo) {
		return false
	}
	return true
}

// Page is one page of a filtered location scan.
type Page struct {
	// Items are the locations on this page, ordered by creation time.
	Items []FileLocation

	// PageSize is the requested page size.
	PageSize int

	// Cursor is the opaque continuation token for the next page. Empty when
	// the scan is exhausted. Callers pass it back unmodified.
	Cursor string

	// TotalReturned is the number of items on this page.
	TotalReturned int
}

// LocationRepository stores the logical-id to physical-location mapping.
//
// Implementations must be safe for concurrent use and must make Save an
// atomic insert-if-absent: two concurrent saves of the same id within a
// partition result in exactly one success.
type LocationRepository interface {
	// Save inserts a location record. Fails with a StoreError carrying
	// ErrAlreadyExists when the id is already bound in the partition.
	Save(ctx context.Context, partition string, loc FileLocation) error

	// FindByID returns the location for id, or (nil, nil) when absent.
	// Callers that need a NotFound error translate at the service boundary.
	FindByID(ctx context.Context, partition, id string) (*FileLocation, error)

	// Scan returns at most pageSize locations matching the filter, in
	// creation-time order. The cursor is opaque; implementations using a
	// page-number scheme treat an empty or non-positive value as "start
	// from the beginning". A cursor the implementation cannot decode fails
	// with ErrPagination.
	Scan(ctx context.Context, filter ListFilter, pageSize int, cursor string) (*Page, error)
}

// DatasetRepository stores committed-dataset metadata records.
type DatasetRepository interface {
	// SaveDataset persists a committed-dataset record, overwriting any
	// previous record for the same id (commits are at-least-once).
	SaveDataset(ctx context.Context, rec DatasetRecord) error

	// FindDataset returns the record for id, or (nil, nil) when absent.
	FindDataset(ctx context.Context, partition, id string) (*DatasetRecord, error)
}

// Repository is the combined durable record store selected per deployment.
type Repository interface {
	LocationRepository
	DatasetRepository

	// Ping verifies the store is reachable; used by readiness checks.
	Ping(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}
