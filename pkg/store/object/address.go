package object

import (
	"fmt"
	"strings"
)

// Address identifies a single object (or key prefix) inside a storage
// backend. It is the parsed form of a vendor URI such as
// "s3://bucket/partition/file.bin".
//
// Invariants:
//   - Bucket and Key are non-empty for any valid address
//   - A Key ending in "/" denotes a prefix (a collection of objects) and is
//     rejected by single-object operations
type Address struct {
	// Scheme is the URI scheme used when rendering the address back to a
	// vendor URI (e.g. "s3", "mem"). Kept so render(parse(uri)) == uri.
	Scheme string

	// Bucket is the bucket or container name.
	Bucket string

	// Key is the object key inside the bucket.
	Key string
}

// ParseAddress parses a fully-qualified vendor URI into an Address.
//
// The expected format is "<scheme>://<bucket>/<key>". Parsing is purely
// syntactic and performs no network calls, so malformed input can be
// rejected before any backend is touched.
//
// Returns a StoreError with ErrMalformedLocation for any URI that does not
// contain a scheme, a bucket segment, and a non-empty key.
func ParseAddress(uri string) (Address, error) {
	scheme, rest, found := strings.Cut(uri, "://")
	if !found || scheme == "" {
		return Address{}, &StoreError{
			Code:    ErrMalformedLocation,
			Message: "location URI has no scheme",
			Path:    uri,
		}
	}

	bucket, key, found := strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return Address{}, &StoreError{
			Code:    ErrMalformedLocation,
			Message: "location URI must be <scheme>://<bucket>/<key>",
			Path:    uri,
		}
	}

	return Address{Scheme: scheme, Bucket: bucket, Key: key}, nil
}

// String renders the address back into its vendor URI form.
func (a Address) String() string {
	return fmt.Sprintf("%s://%s/%s", a.Scheme, a.Bucket, a.Key)
}

// IsPrefix reports whether the address denotes a key prefix (collection)
// rather than a single object.
func (a Address) IsPrefix() bool {
	return strings.HasSuffix(a.Key, "/")
}

// Validate checks the single-object invariants of the address.
//
// It fails with ErrMalformedLocation when the bucket or key is empty, or
// when the key carries a trailing separator (which would make it a prefix,
// not an object).
func (a Address) Validate() error {
	if a.Bucket == "" {
		return &StoreError{
			Code:    ErrMalformedLocation,
			Message: "object address has no bucket",
			Path:    a.String(),
		}
	}
	if a.Key == "" {
		return &StoreError{
			Code:    ErrMalformedLocation,
			Message: "object address has no key",
			Path:    a.String(),
		}
	}
	if a.IsPrefix() {
		return &StoreError{
			Code:    ErrMalformedLocation,
			Message: "object address denotes a prefix, not a single object",
			Path:    a.String(),
		}
	}
	return nil
}
