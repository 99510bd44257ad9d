package commit_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/filegate/pkg/commit"
	"github.com/marmos91/filegate/pkg/identity"
	"github.com/marmos91/filegate/pkg/store/object"
	objectmemory "github.com/marmos91/filegate/pkg/store/object/memory"
	"github.com/marmos91/filegate/pkg/store/record"
	recordmemory "github.com/marmos91/filegate/pkg/store/record/memory"
)

// faultyRepo rejects dataset writes so rollback paths can be exercised.
type faultyRepo struct {
	record.Repository
	saveErr error
}

func (r *faultyRepo) SaveDataset(ctx context.Context, rec record.DatasetRecord) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	return r.Repository.SaveDataset(ctx, rec)
}

func newWorkflow(t *testing.T, backend object.Store, repo record.DatasetRepository) *commit.Workflow {
	t.Helper()
	w, err := commit.NewWorkflow(commit.WorkflowConfig{
		Backend:          backend,
		Repository:       repo,
		Scheme:           "mem",
		StagingBucket:    "staging",
		PersistentBucket: "persistent",
	})
	require.NoError(t, err)
	return w
}

func testContext() context.Context {
	return identity.NewContext(context.Background(), identity.Principal{
		UserID:    "alice@example.com",
		Partition: "tenant-a",
	})
}

func TestCommitSuccess(t *testing.T) {
	backend := objectmemory.NewMemoryObjectStore()
	repo := recordmemory.NewMemoryRecordStore()
	w := newWorkflow(t, backend, repo)

	staging := object.Address{Scheme: "mem", Bucket: "staging", Key: "tenant-a/ds-1/file.bin"}
	backend.Put(staging, []byte("payload"))

	results := w.Commit(testContext(), []commit.Request{
		{DatasetID: "ds-1", FilePath: "tenant-a/ds-1/file.bin"},
	})
	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	require.Equal(t, "mem://persistent/tenant-a/ds-1/file.bin", results[0].Path)
	require.True(t, strings.HasPrefix(results[0].Checksum, "sha256:"))

	// The object moved: persistent copy present, staged copy gone.
	persistent := object.Address{Scheme: "mem", Bucket: "persistent", Key: "tenant-a/ds-1/file.bin"}
	data, ok := backend.Get(persistent)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), data)
	_, ok = backend.Get(staging)
	require.False(t, ok)

	rec, err := repo.FindDataset(context.Background(), "tenant-a", "ds-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, results[0].Path, rec.PersistentURI)
	require.Equal(t, results[0].Checksum, rec.Checksum)
	require.Equal(t, "alice@example.com", rec.CreatedBy)
}

func TestCommitCopyFailure(t *testing.T) {
	backend := objectmemory.NewMemoryObjectStore()
	repo := recordmemory.NewMemoryRecordStore()
	w := newWorkflow(t, backend, repo)

	// Nothing was staged, so the copy must fail and no record may appear.
	results := w.Commit(testContext(), []commit.Request{
		{DatasetID: "ds-1", FilePath: "tenant-a/ds-1/missing.bin"},
	})
	require.Len(t, results, 1)
	require.False(t, results[0].Success)
	require.NotEmpty(t, results[0].Message)

	rec, err := repo.FindDataset(context.Background(), "tenant-a", "ds-1")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestCommitMetadataFailureRollsBack(t *testing.T) {
	backend := objectmemory.NewMemoryObjectStore()
	repo := &faultyRepo{
		Repository: recordmemory.NewMemoryRecordStore(),
		saveErr:    fmt.Errorf("record store unavailable"),
	}
	w := newWorkflow(t, backend, repo)

	staging := object.Address{Scheme: "mem", Bucket: "staging", Key: "tenant-a/ds-1/file.bin"}
	backend.Put(staging, []byte("payload"))

	results := w.Commit(testContext(), []commit.Request{
		{DatasetID: "ds-1", FilePath: "tenant-a/ds-1/file.bin"},
	})
	require.Len(t, results, 1)
	require.False(t, results[0].Success)
	require.Contains(t, results[0].Message, "record store unavailable")

	// The compensating delete removed the persistent copy; the staged
	// object survives so the caller can retry.
	persistent := object.Address{Scheme: "mem", Bucket: "persistent", Key: "tenant-a/ds-1/file.bin"}
	_, ok := backend.Get(persistent)
	require.False(t, ok)
	_, ok = backend.Get(staging)
	require.True(t, ok)
}

func TestCommitBatchIsolatesFailures(t *testing.T) {
	backend := objectmemory.NewMemoryObjectStore()
	repo := recordmemory.NewMemoryRecordStore()
	w := newWorkflow(t, backend, repo)

	backend.Put(object.Address{Scheme: "mem", Bucket: "staging", Key: "tenant-a/ds-1/a.bin"}, []byte("a"))
	backend.Put(object.Address{Scheme: "mem", Bucket: "staging", Key: "tenant-a/ds-3/c.bin"}, []byte("c"))

	results := w.Commit(testContext(), []commit.Request{
		{DatasetID: "ds-1", FilePath: "tenant-a/ds-1/a.bin"},
		{DatasetID: "ds-2", FilePath: "tenant-a/ds-2/"},
		{DatasetID: "ds-3", FilePath: "tenant-a/ds-3/c.bin"},
	})
	require.Len(t, results, 3)
	require.True(t, results[0].Success)
	require.False(t, results[1].Success)
	require.True(t, results[2].Success)

	// The malformed middle item did not disturb its neighbors.
	rec, err := repo.FindDataset(context.Background(), "tenant-a", "ds-3")
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestCommitRetryOverwritesRecord(t *testing.T) {
	backend := objectmemory.NewMemoryObjectStore()
	repo := recordmemory.NewMemoryRecordStore()
	w := newWorkflow(t, backend, repo)

	staging := object.Address{Scheme: "mem", Bucket: "staging", Key: "tenant-a/ds-1/file.bin"}
	backend.Put(staging, []byte("v1"))
	results := w.Commit(testContext(), []commit.Request{{DatasetID: "ds-1", FilePath: "tenant-a/ds-1/file.bin"}})
	require.True(t, results[0].Success)
	first, err := repo.FindDataset(context.Background(), "tenant-a", "ds-1")
	require.NoError(t, err)

	backend.Put(staging, []byte("v2"))
	results = w.Commit(testContext(), []commit.Request{{DatasetID: "ds-1", FilePath: "tenant-a/ds-1/file.bin"}})
	require.True(t, results[0].Success)
	second, err := repo.FindDataset(context.Background(), "tenant-a", "ds-1")
	require.NoError(t, err)

	require.NotEqual(t, first.Checksum, second.Checksum)
}

func TestAddresses(t *testing.T) {
	w := newWorkflow(t, objectmemory.NewMemoryObjectStore(), recordmemory.NewMemoryRecordStore())

	staging, persistent := w.Addresses("tenant-a/ds-1/file.bin")
	require.Equal(t, "mem://staging/tenant-a/ds-1/file.bin", staging.String())
	require.Equal(t, "mem://persistent/tenant-a/ds-1/file.bin", persistent.String())
}
