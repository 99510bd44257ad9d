package object

import "errors"

// StoreError represents a domain error from storage operations.
//
// These are business logic errors (location not found, already exists,
// malformed URI, etc.) as opposed to infrastructure errors (network failure,
// disk error), which are wrapped with fmt.Errorf and surfaced separately.
//
// The HTTP layer translates StoreError codes to status codes; everything
// that is not a StoreError is treated as a server-side failure.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the location id, URI, or object key related to the error
	// (if applicable). This helps with debugging and error reporting.
	Path string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode represents the category of a storage domain error.
type ErrorCode int

const (
	// ErrMalformedLocation indicates an input path or URI that does not
	// parse into a valid object address. Always a client error; detected
	// before any network call and never retried.
	ErrMalformedLocation ErrorCode = iota

	// ErrAlreadyExists indicates a uniqueness violation on location
	// creation (an id was requested that is already bound).
	ErrAlreadyExists

	// ErrNotFound indicates a lookup miss for a location id.
	ErrNotFound

	// ErrConfigurationMissing indicates backend identity/role metadata is
	// absent. Fatal and operator-visible; never retried automatically,
	// since it signals infrastructure misconfiguration rather than a
	// request fault.
	ErrConfigurationMissing

	// ErrCopyFailed indicates the backend copy step of the commit workflow
	// failed. No metadata write is attempted after this.
	ErrCopyFailed

	// ErrDeleteFailed indicates a backend delete failed. During staging
	// cleanup this is logged and swallowed; elsewhere it is surfaced.
	ErrDeleteFailed

	// ErrPagination indicates a malformed or expired continuation token.
	// Surfaced as a processing error, not a client-input error.
	ErrPagination

	// ErrInvalidSourcePath indicates a per-item batch failure: the recorded
	// source path for a dataset does not denote a single object. Sibling
	// items in the same batch are unaffected.
	ErrInvalidSourcePath
)

// String returns the wire name of the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrMalformedLocation:
		return "MalformedLocation"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrNotFound:
		return "NotFound"
	case ErrConfigurationMissing:
		return "ConfigurationMissing"
	case ErrCopyFailed:
		return "CopyFailed"
	case ErrDeleteFailed:
		return "DeleteFailed"
	case ErrPagination:
		return "PaginationError"
	case ErrInvalidSourcePath:
		return "InvalidSourcePath"
	default:
		return "Unknown"
	}
}

// IsCode reports whether err is (or wraps) a StoreError with the given code.
func IsCode(err error, code ErrorCode) bool {
	se, ok := AsStoreError(err)
	return ok && se.Code == code
}

// AsStoreError unwraps err into a *StoreError if possible.
func AsStoreError(err error) (*StoreError, bool) {
	var se *StoreError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
