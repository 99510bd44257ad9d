// Package s3 implements the object storage capability on Amazon S3 and
// S3-compatible services (MinIO, Localstack).
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/filegate/internal/logger"
	"github.com/marmos91/filegate/pkg/store/object"
)

// Kind is the vendor tag reported by this backend.
const Kind = "s3"

// S3ObjectStoreConfig holds the dependencies for creating an S3ObjectStore.
type S3ObjectStoreConfig struct {
	// Client is a fully configured S3 client (credentials, region, endpoint,
	// retryer). Construction happens in pkg/config so deployments against
	// MinIO/Localstack only differ by configuration.
	Client *s3.Client
}

// S3ObjectStore implements object.Store using the AWS SDK v2 S3 client.
//
// Signed grants are minted with the SDK presign client; every call signs a
// fresh request, so two grants for the same address always differ.
//
// Thread Safety:
// The underlying SDK clients are safe for concurrent use, and the store
// itself holds no mutable state.
type S3ObjectStore struct {
	client  *s3.Client
	presign *s3.PresignClient
}

// NewS3ObjectStore creates an S3-backed object store.
func NewS3ObjectStore(cfg S3ObjectStoreConfig) (*S3ObjectStore, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("s3 object store: client is required")
	}

	return &S3ObjectStore{
		client:  cfg.Client,
		presign: s3.NewPresignClient(cfg.Client),
	}, nil
}

// Kind returns the vendor tag for this backend.
func (s *S3ObjectStore) Kind() string {
	return Kind
}

// SignUpload mints a pre-signed PUT URL for the object at addr.
//
// The expiry is embedded in the signature; the grant is independent of any
// previously issued grant and is never renewed.
func (s *S3ObjectStore) SignUpload(ctx context.Context, addr object.Address, ttl time.Duration) (*object.SignedGrant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(addr.Bucket),
		Key:    aws.String(addr.Key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload for %s: %w", addr, err)
	}

	return newGrant(addr, req.URL), nil
}

// SignDownload mints a pre-signed GET URL for the object at addr.
func (s *S3ObjectStore) SignDownload(ctx context.Context, addr object.Address, ttl time.Duration) (*object.SignedGrant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(addr.Bucket),
		Key:    aws.String(addr.Key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to presign download for %s: %w", addr, err)
	}

	return newGrant(addr, req.URL), nil
}

// Exists reports whether an object is present at addr.
func (s *S3ObjectStore) Exists(ctx context.Context, addr object.Address) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(addr.Bucket),
		Key:    aws.String(addr.Key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object %s: %w", addr, err)
	}

	return true, nil
}

// Copy duplicates the object at src to dst.
//
// S3 CopyObject overwrites an existing destination object, so retrying a
// copy that already completed is a no-op from the caller's perspective.
func (s *S3ObjectStore) Copy(ctx context.Context, src, dst object.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// CopySource is "<bucket>/<key>", URL-encoded as required by the API.
	source := url.PathEscape(src.Bucket + "/" + src.Key)

	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dst.Bucket),
		Key:        aws.String(dst.Key),
		CopySource: aws.String(source),
	})
	if err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	logger.Debug("S3 copy complete src=%s dst=%s", src, dst)
	return nil
}

// Delete removes the object at addr. S3 DeleteObject succeeds for missing
// keys, which keeps the operation idempotent.
func (s *S3ObjectStore) Delete(ctx context.Context, addr object.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(addr.Bucket),
		Key:    aws.String(addr.Key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", addr, err)
	}

	return nil
}

// Digest returns the content digest for the object at addr.
//
// Prefers the SHA-256 checksum when the object was uploaded with checksums
// enabled, and falls back to the ETag (MD5 for non-multipart uploads).
func (s *S3ObjectStore) Digest(ctx context.Context, addr object.Address) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket:       aws.String(addr.Bucket),
		Key:          aws.String(addr.Key),
		ChecksumMode: types.ChecksumModeEnabled,
	})
	if err != nil {
		return "", fmt.Errorf("failed to head object %s: %w", addr, err)
	}

	if sum := aws.ToString(head.ChecksumSHA256); sum != "" {
		return "sha256:" + sum, nil
	}

	etag := strings.Trim(aws.ToString(head.ETag), `"`)
	return "etag:" + etag, nil
}

// newGrant normalizes a presigned request into a SignedGrant.
func newGrant(addr object.Address, signedURL string) *object.SignedGrant {
	return &object.SignedGrant{
		URI:        addr.String(),
		URL:        signedURL,
		FileSource: "/" + addr.Key,
		CreatedAt:  time.Now().UTC(),
	}
}
