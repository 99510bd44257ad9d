// Package object defines the storage backend capability used by the
// location and signed-access services.
//
// One concrete Store implementation is selected per deployment from
// configuration (see pkg/config). Services receive the interface and never
// dispatch on the concrete type.
package object

import (
	"context"
	"time"
)

// SignedGrant is a freshly minted, time-bounded means for a client to read
// or write exactly one object directly against storage.
//
// Grants are produced per request and never persisted; the expiry is
// embedded in the signed payload, not tracked server-side.
type SignedGrant struct {
	// URI is the fully-qualified vendor URI of the object
	// (e.g. "s3://bucket/partition/id").
	URI string

	// URL is the pre-signed HTTP URL a client can use directly.
	URL string

	// FileSource is the object path relative to the bucket, with a leading
	// separator (e.g. "/partition/id"). Callers use it to correlate the
	// grant with the logical file.
	FileSource string

	// CreatedAt is the grant mint time.
	CreatedAt time.Time
}

// Store is the per-vendor object storage capability.
//
// All operations are network-bound and respect context cancellation and
// deadlines. Implementations must be safe for concurrent use.
type Store interface {
	// Kind returns the vendor tag of this backend (e.g. "s3", "memory").
	// It is recorded on every FileLocation and returned to dataset callers
	// as the provider key.
	Kind() string

	// SignUpload mints a grant allowing a single PUT of the object at addr.
	// Each call produces an independent, fresh grant; grants are never
	// renewed or extended.
	SignUpload(ctx context.Context, addr Address, ttl time.Duration) (*SignedGrant, error)

	// SignDownload mints a grant allowing a single GET of the object at addr.
	SignDownload(ctx context.Context, addr Address, ttl time.Duration) (*SignedGrant, error)

	// Exists reports whether an object is present at addr.
	Exists(ctx context.Context, addr Address) (bool, error)

	// Copy duplicates the object at src to dst within the backend. Copying
	// over an existing identical object is accepted as a no-op, which makes
	// the commit workflow's copy step safe to retry.
	Copy(ctx context.Context, src, dst Address) error

	// Delete removes the object at addr. Deleting a non-existent object is
	// not an error.
	Delete(ctx context.Context, addr Address) error

	// Digest returns the backend's content digest for the object at addr
	// (vendor-defined format, e.g. an S3 checksum or ETag).
	Digest(ctx context.Context, addr Address) (string, error)
}
