package dataset_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/filegate/pkg/access"
	"github.com/marmos91/filegate/pkg/dataset"
	"github.com/marmos91/filegate/pkg/identity"
	"github.com/marmos91/filegate/pkg/store/object"
	objectmemory "github.com/marmos91/filegate/pkg/store/object/memory"
	"github.com/marmos91/filegate/pkg/store/record"
	recordmemory "github.com/marmos91/filegate/pkg/store/record/memory"
)

// staticRegistry resolves dataset paths from a fixed map.
type staticRegistry map[string]string

func (r staticRegistry) ResolveDatasetPath(_ context.Context, _, registryID string) (string, error) {
	uri, ok := r[registryID]
	if !ok {
		return "", &object.StoreError{Code: object.ErrNotFound, Message: "unknown dataset", Path: registryID}
	}
	return uri, nil
}

func newBuilder(t *testing.T, registry dataset.Registry) *dataset.Builder {
	t.Helper()

	backend := objectmemory.NewMemoryObjectStore()
	accessSvc, err := access.NewService(access.ServiceConfig{
		Backend:    backend,
		Mode:       access.ModePresigned,
		DefaultTTL: 15 * time.Minute,
	})
	require.NoError(t, err)

	b, err := dataset.NewBuilder(dataset.BuilderConfig{
		Access:        accessSvc,
		Backend:       backend,
		Registry:      registry,
		Scheme:        "mem",
		StagingBucket: "staging",
	})
	require.NoError(t, err)
	return b
}

func testContext() context.Context {
	return identity.NewContext(context.Background(), identity.Principal{
		UserID:    "alice@example.com",
		Partition: "tenant-a",
	})
}

func TestBuildStorageInstructions(t *testing.T) {
	b := newBuilder(t, staticRegistry{})

	entry, err := b.BuildStorageInstructions(testContext(), "ds-1")
	require.NoError(t, err)
	require.Equal(t, "ds-1", entry.DatasetRegistryID)
	require.Equal(t, "memory", entry.ProviderKey)
	require.NotNil(t, entry.Location)
	require.NotEmpty(t, entry.Location.URL)

	addr, err := object.ParseAddress(entry.Location.URI)
	require.NoError(t, err)
	require.Equal(t, "staging", addr.Bucket)
	require.Regexp(t, `^tenant-a/ds-1/[0-9a-f]{32}$`, addr.Key)
}

func TestBuildStorageInstructionsAllocatesFreshAddresses(t *testing.T) {
	b := newBuilder(t, staticRegistry{})

	first, err := b.BuildStorageInstructions(testContext(), "ds-1")
	require.NoError(t, err)
	second, err := b.BuildStorageInstructions(testContext(), "ds-1")
	require.NoError(t, err)

	require.NotEqual(t, first.Location.URI, second.Location.URI)
}

func TestBuildStorageInstructionsEmptyID(t *testing.T) {
	b := newBuilder(t, staticRegistry{})

	_, err := b.BuildStorageInstructions(testContext(), "")
	require.Error(t, err)
	require.True(t, object.IsCode(err, object.ErrMalformedLocation))
}

func TestBuildRetrievalInstructions(t *testing.T) {
	b := newBuilder(t, staticRegistry{
		"ds-1": "mem://persistent/tenant-a/ds-1/file.bin",
	})

	entries := b.BuildRetrievalInstructions(testContext(), []string{"ds-1"})
	require.Len(t, entries, 1)
	require.Equal(t, "ds-1", entries[0].DatasetRegistryID)
	require.Equal(t, "memory", entries[0].ProviderKey)
	require.Empty(t, entries[0].Message)
	require.NotNil(t, entries[0].Location)
	require.Equal(t, "mem://persistent/tenant-a/ds-1/file.bin", entries[0].Location.URI)
	require.NotEmpty(t, entries[0].Location.URL)
}

func TestBuildRetrievalInstructionsBatchIsolation(t *testing.T) {
	b := newBuilder(t, staticRegistry{
		"ds-good":   "mem://persistent/tenant-a/ds-good/file.bin",
		"ds-prefix": "mem://persistent/tenant-a/ds-prefix/",
		"ds-broken": "not-a-uri",
	})

	entries := b.BuildRetrievalInstructions(testContext(), []string{
		"ds-good", "ds-prefix", "ds-broken", "ds-missing",
	})
	require.Len(t, entries, 4)

	require.Empty(t, entries[0].Message)
	require.NotNil(t, entries[0].Location)

	// A trailing separator denotes a prefix, not a single object.
	require.Nil(t, entries[1].Location)
	require.Contains(t, entries[1].Message, "unusable source path")

	require.Nil(t, entries[2].Location)
	require.Contains(t, entries[2].Message, "unusable source path")

	require.Nil(t, entries[3].Location)
	require.Contains(t, entries[3].Message, "unknown dataset")
}

func TestRecordRegistry(t *testing.T) {
	repo := recordmemory.NewMemoryRecordStore()
	require.NoError(t, repo.SaveDataset(context.Background(), record.DatasetRecord{
		ID:            "ds-1",
		Partition:     "tenant-a",
		PersistentURI: "mem://persistent/tenant-a/ds-1/file.bin",
	}))

	registry := dataset.RecordRegistry{Repository: repo}

	uri, err := registry.ResolveDatasetPath(context.Background(), "tenant-a", "ds-1")
	require.NoError(t, err)
	require.Equal(t, "mem://persistent/tenant-a/ds-1/file.bin", uri)

	_, err = registry.ResolveDatasetPath(context.Background(), "tenant-a", "ds-2")
	require.Error(t, err)
	require.True(t, object.IsCode(err, object.ErrNotFound))

	// Records are partition-scoped.
	_, err = registry.ResolveDatasetPath(context.Background(), "tenant-b", "ds-1")
	require.Error(t, err)
	require.True(t, object.IsCode(err, object.ErrNotFound))
}
