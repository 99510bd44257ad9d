// Package access implements signed-access issuance: translating a logical
// intent (upload or download of one object) into a time-bounded grant a
// client can use directly against storage, either as a pre-signed URL or as
// a scoped temporary credential.
package access

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/filegate/pkg/identity"
	"github.com/marmos91/filegate/pkg/store/object"
)

// Mode selects how grants are materialized. The choice is backend-dependent
// and fixed per deployment, never per call.
type Mode string

const (
	// ModePresigned returns grants as pre-signed URLs minted by the object
	// storage backend.
	ModePresigned Mode = "presigned"

	// ModeCredential returns grants as scoped temporary credentials
	// rendered into a connection string.
	ModeCredential Mode = "credential"
)

// SignedAccess is the normalized grant returned to callers. Produced fresh
// per request and never persisted; expiry is embedded in the signed payload
// or credential, not tracked server-side.
type SignedAccess struct {
	// URI is the fully-qualified vendor URI of the object.
	URI string `json:"uri"`

	// URL is the pre-signed URL. Empty in credential mode.
	URL string `json:"url,omitempty"`

	// FileSource is the object path relative to the bucket.
	FileSource string `json:"file_source"`

	// ConnectionString carries the scoped temporary credential. Present
	// only in credential mode.
	ConnectionString string `json:"connection_string,omitempty"`

	// CreatedBy is the principal the grant was issued to.
	CreatedBy string `json:"created_by"`

	// CreatedAt is the grant mint time.
	CreatedAt time.Time `json:"created_at"`
}

// ServiceConfig holds the dependencies for creating a Service.
type ServiceConfig struct {
	// Backend is the deployment's object storage backend.
	Backend object.Store

	// Vendor supplies scoped temporary credentials. Required when Mode is
	// ModeCredential, unused otherwise.
	Vendor *PolicyVendor

	// Mode selects pre-signed URLs or scoped credentials.
	Mode Mode

	// DefaultTTL applies when a caller does not specify a grant lifetime.
	DefaultTTL time.Duration
}

// Service issues signed access grants.
//
// Every call validates the target address before any network activity,
// applies the configured default TTL, and produces an independent fresh
// grant; grants are never renewed or extended.
type Service struct {
	backend    object.Store
	vendor     *PolicyVendor
	mode       Mode
	defaultTTL time.Duration
}

// NewService creates a signed-access service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("access service: backend is required")
	}
	switch cfg.Mode {
	case ModePresigned:
	case ModeCredential:
		if cfg.Vendor == nil {
			return nil, fmt.Errorf("access service: credential mode requires a policy vendor")
		}
	default:
		return nil, fmt.Errorf("access service: unknown mode %q", cfg.Mode)
	}
	if cfg.DefaultTTL <= 0 {
		return nil, fmt.Errorf("access service: default TTL must be positive")
	}

	return &Service{
		backend:    cfg.Backend,
		vendor:     cfg.Vendor,
		mode:       cfg.Mode,
		defaultTTL: cfg.DefaultTTL,
	}, nil
}

// GrantUpload issues a write grant for the single object at addr.
func (s *Service) GrantUpload(ctx context.Context, addr object.Address, ttl time.Duration) (*SignedAccess, error) {
	return s.grant(ctx, addr, IntentWrite, ttl)
}

// GrantDownload issues a read grant for the single object at addr.
func (s *Service) GrantDownload(ctx context.Context, addr object.Address, ttl time.Duration) (*SignedAccess, error) {
	return s.grant(ctx, addr, IntentRead, ttl)
}

func (s *Service) grant(ctx context.Context, addr object.Address, intent Intent, ttl time.Duration) (*SignedAccess, error) {
	// Malformed addresses are rejected before any network call.
	if err := addr.Validate(); err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	principal := ""
	if p, ok := identity.FromContext(ctx); ok {
		principal = p.UserID
	}

	switch s.mode {
	case ModeCredential:
		cred, err := s.vendor.ScopedCredential(ctx, addr, intent, principal, ttl)
		if err != nil {
			return nil, err
		}
		return &SignedAccess{
			URI:              addr.String(),
			FileSource:       "/" + addr.Key,
			ConnectionString: cred.ConnectionString(),
			CreatedBy:        principal,
			CreatedAt:        time.Now().UTC(),
		}, nil

	default: // ModePresigned
		var grant *object.SignedGrant
		var err error
		if intent == IntentWrite {
			grant, err = s.backend.SignUpload(ctx, addr, ttl)
		} else {
			grant, err = s.backend.SignDownload(ctx, addr, ttl)
		}
		if err != nil {
			return nil, err
		}

		return &SignedAccess{
			URI:        grant.URI,
			URL:        grant.URL,
			FileSource: grant.FileSource,
			CreatedBy:  principal,
			CreatedAt:  grant.CreatedAt,
		}, nil
	}
}
