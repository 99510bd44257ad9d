// Package identity carries the authenticated caller identity and tenant
// partition through request contexts. The HTTP layer populates it from
// propagated headers; services read it where they need a principal or a
// partition scope.
package identity

import "context"

// Principal identifies the authenticated caller of a request.
type Principal struct {
	// UserID is the caller's identifier as supplied by the upstream
	// authentication layer.
	UserID string

	// Partition is the tenant-scoping key segmenting buckets, repository
	// rows, and credential scoping.
	Partition string
}

type contextKey struct{}

// NewContext returns a context carrying the principal.
func NewContext(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext extracts the principal from ctx. The second return value is
// false when no principal was attached.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}
