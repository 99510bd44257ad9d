// Package memory implements the object storage capability in process
// memory. It exists for tests and hermetic local deployments; the signed
// URLs it mints are syntactically valid but only meaningful to itself.
package memory

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/filegate/pkg/store/object"
)

// Kind is the vendor tag reported by this backend.
const Kind = "memory"

// Scheme is the URI scheme used for addresses served by this backend.
const Scheme = "mem"

// MemoryObjectStore implements object.Store with an in-memory object map.
//
// Thread Safety:
// All operations are protected by a read-write mutex.
type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryObjectStore creates an empty in-memory object store.
func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{
		objects: make(map[string][]byte),
	}
}

// Kind returns the vendor tag for this backend.
func (s *MemoryObjectStore) Kind() string {
	return Kind
}

// Put stores object bytes directly. Test helper standing in for the direct
// client-to-storage upload that a signed grant enables in production.
func (s *MemoryObjectStore) Put(addr object.Address, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectKey(addr)] = append([]byte(nil), data...)
}

// Get returns object bytes directly. Test helper.
func (s *MemoryObjectStore) Get(addr object.Address) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[objectKey(addr)]
	return data, ok
}

// SignUpload mints a fresh upload grant for the object at addr.
func (s *MemoryObjectStore) SignUpload(ctx context.Context, addr object.Address, ttl time.Duration) (*object.SignedGrant, error) {
	return s.sign(ctx, addr, "upload", ttl)
}

// SignDownload mints a fresh download grant for the object at addr.
func (s *MemoryObjectStore) SignDownload(ctx context.Context, addr object.Address, ttl time.Duration) (*object.SignedGrant, error) {
	return s.sign(ctx, addr, "download", ttl)
}

// sign builds a grant with a random signature token so that repeated calls
// always produce distinct grants, mirroring real presigning.
func (s *MemoryObjectStore) sign(ctx context.Context, addr object.Address, intent string, ttl time.Duration) (*object.SignedGrant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sig := make([]byte, 16)
	if _, err := rand.Read(sig); err != nil {
		return nil, fmt.Errorf("failed to generate signature: %w", err)
	}

	now := time.Now().UTC()
	signedURL := fmt.Sprintf("https://objects.invalid/%s/%s?intent=%s&sig=%s&expires=%d",
		addr.Bucket, addr.Key, intent, hex.EncodeToString(sig), now.Add(ttl).Unix())

	return &object.SignedGrant{
		URI:        addr.String(),
		URL:        signedURL,
		FileSource: "/" + addr.Key,
		CreatedAt:  now,
	}, nil
}

// Exists reports whether an object is present at addr.
func (s *MemoryObjectStore) Exists(ctx context.Context, addr object.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[objectKey(addr)]
	return ok, nil
}

// Copy duplicates the object at src to dst. Copying onto an existing
// destination overwrites it, matching S3 semantics.
func (s *MemoryObjectStore) Copy(ctx context.Context, src, dst object.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.objects[objectKey(src)]
	if !ok {
		return fmt.Errorf("copy source %s does not exist", src)
	}

	s.objects[objectKey(dst)] = append([]byte(nil), data...)
	return nil
}

// Delete removes the object at addr. Deleting a missing object is a no-op.
func (s *MemoryObjectStore) Delete(ctx context.Context, addr object.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectKey(addr))
	return nil
}

// Digest returns the SHA-256 digest of the object at addr.
func (s *MemoryObjectStore) Digest(ctx context.Context, addr object.Address) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[objectKey(addr)]
	if !ok {
		return "", fmt.Errorf("object %s does not exist", addr)
	}

	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

func objectKey(addr object.Address) string {
	return addr.Bucket + "/" + addr.Key
}
