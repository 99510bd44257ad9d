package access

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/marmos91/filegate/internal/logger"
	"github.com/marmos91/filegate/pkg/store/object"
)

// Intent is the access direction a scoped credential grants.
type Intent int

const (
	// IntentRead grants get/list on one object and its prefix.
	IntentRead Intent = iota

	// IntentWrite grants put/list/multipart-abort on one object's prefix.
	IntentWrite
)

// TemporaryCredential is a short-lived credential scoped to one object.
// Never cached: every grant mints a fresh credential.
type TemporaryCredential struct {
	AccessKeyID  string
	SecretKey    string
	SessionToken string
	ExpiresAt    time.Time
}

// ConnectionString renders the credential in the key=value;... form handed
// to clients that use a bearer-credential model instead of pre-signed URLs.
func (c *TemporaryCredential) ConnectionString() string {
	return fmt.Sprintf("AccessKeyId=%s;SecretAccessKey=%s;SessionToken=%s;Expiration=%s",
		c.AccessKeyID, c.SecretKey, c.SessionToken, c.ExpiresAt.UTC().Format(time.RFC3339))
}

// TokenExchanger exchanges a scoping policy for a short-lived credential
// via the backend's identity/token service (STS AssumeRole for AWS).
type TokenExchanger interface {
	Exchange(ctx context.Context, roleARN, sessionName, policy string, duration time.Duration) (*TemporaryCredential, error)
}

// RoleResolver resolves the role identifier to assume for a partition.
// Returning an empty role with a nil error means no role is configured.
type RoleResolver interface {
	ResolveRole(ctx context.Context, partition, parameterPath string) (string, error)
}

// StaticRoleResolver resolves roles from a fixed partition-to-role map.
type StaticRoleResolver map[string]string

// ResolveRole implements RoleResolver.
func (r StaticRoleResolver) ResolveRole(_ context.Context, partition, _ string) (string, error) {
	return r[partition], nil
}

// PolicyVendorConfig holds configuration for creating a PolicyVendor.
type PolicyVendorConfig struct {
	// Exchanger performs the identity/token exchange.
	Exchanger TokenExchanger

	// Resolver resolves partition role metadata.
	Resolver RoleResolver

	// MaxDuration is the backend's hard ceiling on credential lifetime
	// (e.g. role-chaining limits). Requested TTLs above it are clamped,
	// never rejected.
	MaxDuration time.Duration

	// RoleCacheSize bounds the role metadata cache capacity.
	RoleCacheSize int

	// RoleCacheTTL bounds the role metadata cache entry lifetime.
	RoleCacheTTL time.Duration
}

// PolicyVendor builds least-privilege, time-boxed access policies and
// exchanges them for short-lived credentials.
//
// The vendor caches only role/connection metadata (the partition-to-role
// resolution), never the credentials themselves; those are minted fresh for
// every grant. The cache is a bounded LRU with TTL expiry: entries leave
// when they expire or when capacity evicts them, whichever comes first.
//
// Thread Safety:
// The expirable LRU is safe for concurrent use; the vendor holds no other
// mutable state.
type PolicyVendor struct {
	exchanger   TokenExchanger
	resolver    RoleResolver
	roleCache   *expirable.LRU[string, string]
	maxDuration time.Duration
}

const (
	defaultRoleCacheSize = 128
	defaultRoleCacheTTL  = 10 * time.Minute
)

// NewPolicyVendor creates a credential/policy vendor.
func NewPolicyVendor(cfg PolicyVendorConfig) (*PolicyVendor, error) {
	if cfg.Exchanger == nil {
		return nil, fmt.Errorf("policy vendor: token exchanger is required")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("policy vendor: role resolver is required")
	}
	if cfg.MaxDuration <= 0 {
		return nil, fmt.Errorf("policy vendor: max duration must be positive")
	}

	size := cfg.RoleCacheSize
	if size <= 0 {
		size = defaultRoleCacheSize
	}
	ttl := cfg.RoleCacheTTL
	if ttl <= 0 {
		ttl = defaultRoleCacheTTL
	}

	return &PolicyVendor{
		exchanger:   cfg.Exchanger,
		resolver:    cfg.Resolver,
		roleCache:   expirable.NewLRU[string, string](size, nil, ttl),
		maxDuration: cfg.MaxDuration,
	}, nil
}

// ScopedCredential mints a fresh temporary credential whose policy grants
// the minimum action set for intent, restricted to exactly addr's bucket
// and key prefix.
//
// The requested TTL is clamped to the backend ceiling: min(ttl, max).
// Fails with ErrConfigurationMissing when no role is configured for the
// partition; this is infrastructure misconfiguration, not a request fault,
// and is never retried here.
func (v *PolicyVendor) ScopedCredential(ctx context.Context, addr object.Address, intent Intent, principal string, ttl time.Duration) (*TemporaryCredential, error) {
	if err := addr.Validate(); err != nil {
		return nil, err
	}

	roleARN, err := v.resolveRole(ctx, addr)
	if err != nil {
		return nil, err
	}

	duration := ttl
	if duration <= 0 || duration > v.maxDuration {
		duration = v.maxDuration
	}

	policy, err := buildScopedPolicy(addr, intent)
	if err != nil {
		return nil, err
	}

	cred, err := v.exchanger.Exchange(ctx, roleARN, sessionName(principal), policy, duration)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange policy for credential (role %s): %w", roleARN, err)
	}

	return cred, nil
}

// resolveRole looks up the role for the address's partition scope, caching
// the resolution keyed by (partition, parameter-path).
func (v *PolicyVendor) resolveRole(ctx context.Context, addr object.Address) (string, error) {
	partition := partitionOf(addr)
	parameterPath := "storage/" + addr.Bucket

	cacheKey := partition + "|" + parameterPath
	if role, ok := v.roleCache.Get(cacheKey); ok {
		return role, nil
	}

	role, err := v.resolver.ResolveRole(ctx, partition, parameterPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve role for partition %s: %w", partition, err)
	}
	if role == "" {
		return "", &object.StoreError{
			Code:    object.ErrConfigurationMissing,
			Message: "no role configured for partition",
			Path:    partition,
		}
	}

	v.roleCache.Add(cacheKey, role)
	logger.Debug("Resolved role for partition %s: %s", partition, role)
	return role, nil
}

// partitionOf extracts the tenant partition from an address. Keys are laid
// out as <partition>/<rest>, so the partition is the first key segment.
func partitionOf(addr object.Address) string {
	partition, _, found := strings.Cut(addr.Key, "/")
	if !found {
		return addr.Bucket
	}
	return partition
}

// policyDocument is an IAM-style policy document.
type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string                       `json:"Effect"`
	Action    []string                     `json:"Action"`
	Resource  []string                     `json:"Resource"`
	Condition map[string]map[string]string `json:"Condition,omitempty"`
}

// buildScopedPolicy builds the least-privilege policy for intent, scoped to
// exactly addr's object and its enclosing prefix.
func buildScopedPolicy(addr object.Address, intent Intent) (string, error) {
	bucketARN := "arn:aws:s3:::" + addr.Bucket
	prefix := keyPrefix(addr.Key)

	var statements []policyStatement
	switch intent {
	case IntentWrite:
		statements = []policyStatement{
			{
				Effect: "Allow",
				Action: []string{
					"s3:PutObject",
					"s3:AbortMultipartUpload",
					"s3:ListMultipartUploadParts",
				},
				Resource: []string{bucketARN + "/" + prefix + "*"},
			},
			{
				Effect:   "Allow",
				Action:   []string{"s3:ListBucket"},
				Resource: []string{bucketARN},
				Condition: map[string]map[string]string{
					"StringLike": {"s3:prefix": prefix + "*"},
				},
			},
		}
	default: // IntentRead
		statements = []policyStatement{
			{
				Effect: "Allow",
				Action: []string{
					"s3:GetObject",
					"s3:GetObjectVersion",
				},
				Resource: []string{bucketARN + "/" + addr.Key},
			},
			{
				Effect:   "Allow",
				Action:   []string{"s3:ListBucket"},
				Resource: []string{bucketARN},
				Condition: map[string]map[string]string{
					"StringLike": {"s3:prefix": prefix + "*"},
				},
			},
		}
	}

	doc, err := json.Marshal(policyDocument{Version: "2012-10-17", Statement: statements})
	if err != nil {
		return "", fmt.Errorf("failed to marshal scoping policy: %w", err)
	}
	return string(doc), nil
}

// keyPrefix returns the enclosing prefix of an object key with a trailing
// separator ("a/b/file" -> "a/b/").
func keyPrefix(key string) string {
	dir := path.Dir(key)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir + "/"
}

// sessionName derives a role session name from the principal, restricted
// to the character set and length the token service accepts.
func sessionName(principal string) string {
	if principal == "" {
		principal = "anonymous"
	}

	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '@' || r == '.' || r == '-' || r == '_':
			return r
		default:
			return '-'
		}
	}, principal)

	name := "filegate-" + sanitized
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}
