package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/filegate/internal/ratelimiter"
	"github.com/marmos91/filegate/pkg/access"
	"github.com/marmos91/filegate/pkg/commit"
	"github.com/marmos91/filegate/pkg/dataset"
	"github.com/marmos91/filegate/pkg/location"
	"github.com/marmos91/filegate/pkg/store/object"
	objectmemory "github.com/marmos91/filegate/pkg/store/object/memory"
	"github.com/marmos91/filegate/pkg/store/record"
	recordmemory "github.com/marmos91/filegate/pkg/store/record/memory"
)

// testEnv wires the full service against in-memory backends.
type testEnv struct {
	router  http.Handler
	backend *objectmemory.MemoryObjectStore
	repo    record.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	backend := objectmemory.NewMemoryObjectStore()
	repo := recordmemory.NewMemoryRecordStore()
	t.Cleanup(func() { repo.Close() })

	accessSvc, err := access.NewService(access.ServiceConfig{
		Backend:    backend,
		Mode:       access.ModePresigned,
		DefaultTTL: 15 * time.Minute,
	})
	require.NoError(t, err)

	locationSvc, err := location.NewService(location.ServiceConfig{
		Access:        accessSvc,
		Backend:       backend,
		Repository:    repo,
		Scheme:        "mem",
		StagingBucket: "staging",
	})
	require.NoError(t, err)

	workflow, err := commit.NewWorkflow(commit.WorkflowConfig{
		Backend:          backend,
		Repository:       repo,
		Scheme:           "mem",
		StagingBucket:    "staging",
		PersistentBucket: "persistent",
	})
	require.NoError(t, err)

	builder, err := dataset.NewBuilder(dataset.BuilderConfig{
		Access:        accessSvc,
		Backend:       backend,
		Registry:      dataset.RecordRegistry{Repository: repo},
		Scheme:        "mem",
		StagingBucket: "staging",
	})
	require.NoError(t, err)

	router := NewRouter(Dependencies{
		Location:   locationSvc,
		Commit:     workflow,
		Dataset:    builder,
		Repository: repo,
		Mode:       "presigned",
	})

	return &testEnv{router: router, backend: backend, repo: repo}
}

// call performs a JSON request with tenant headers and decodes the response.
func (e *testEnv) call(t *testing.T, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-user-id", "alice@example.com")
	req.Header.Set("data-partition-id", "tenant-a")

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if out != nil && rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestGetLocationEndpoint(t *testing.T) {
	env := newTestEnv(t)

	var result location.Result
	rec := env.call(t, http.MethodPost, "/getLocation", map[string]string{}, &result)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, result.ID, 32)
	require.NotNil(t, result.Location)
	require.NotEmpty(t, result.Location.URL)
	require.Equal(t, "alice@example.com", result.Location.CreatedBy)
}

func TestGetLocationEndpointDuplicate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.call(t, http.MethodPost, "/getLocation", map[string]string{"file_id": "doc-1"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.call(t, http.MethodPost, "/getLocation", map[string]string{"file_id": "doc-1"}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	var errBody map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	require.Equal(t, "AlreadyExists", errBody["code"])
}

func TestGetLocationEndpointMissingPartition(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/getLocation", bytes.NewBufferString("{}"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetFileLocationEndpoint(t *testing.T) {
	env := newTestEnv(t)

	var created location.Result
	rec := env.call(t, http.MethodPost, "/getLocation", map[string]string{}, &created)
	require.Equal(t, http.StatusOK, rec.Code)

	var resolved getFileLocationResponse
	rec = env.call(t, http.MethodPost, "/getFileLocation", map[string]string{"file_id": created.ID}, &resolved)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "memory", resolved.Driver)
	require.Equal(t, created.Location.URI, resolved.Location)
}

func TestGetFileLocationEndpointNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.call(t, http.MethodPost, "/getFileLocation", map[string]string{"file_id": "missing"}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetFileListEndpoint(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		rec := env.call(t, http.MethodPost, "/getLocation", map[string]string{}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	seen := make(map[string]bool)
	cursor := ""
	for {
		var page getFileListResponse
		rec := env.call(t, http.MethodPost, "/getFileList", map[string]any{
			"page_size": 2,
			"cursor":    cursor,
		}, &page)
		require.Equal(t, http.StatusOK, rec.Code)
		for _, item := range page.Content {
			require.False(t, seen[item.ID])
			seen[item.ID] = true
		}
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}
	require.Len(t, seen, 5)
}

func TestStorageInstructionsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	var resp storageInstructionsResponse
	rec := env.call(t, http.MethodPost, "/storageInstructions", map[string]string{
		"dataset_registry_id": "ds-1",
	}, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "memory", resp.ProviderKey)
	require.NotNil(t, resp.StorageLocation)
	require.Contains(t, resp.StorageLocation.URI, "tenant-a/ds-1/")
}

func TestRetrievalInstructionsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.repo.SaveDataset(context.Background(), record.DatasetRecord{
		ID:            "ds-1",
		Partition:     "tenant-a",
		PersistentURI: "mem://persistent/tenant-a/ds-1/file.bin",
	}))

	var resp retrievalInstructionsResponse
	rec := env.call(t, http.MethodPost, "/retrievalInstructions", map[string]any{
		"dataset_registry_ids": []string{"ds-1", "ds-missing"},
	}, &resp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Datasets, 2)
	require.Empty(t, resp.Datasets[0].Message)
	require.NotNil(t, resp.Datasets[0].Location)
	require.NotEmpty(t, resp.Datasets[1].Message)
}

func TestCopyEndpoint(t *testing.T) {
	env := newTestEnv(t)

	env.backend.Put(object.Address{Scheme: "mem", Bucket: "staging", Key: "tenant-a/ds-1/file.bin"}, []byte("payload"))

	var results []commit.ItemResult
	rec := env.call(t, http.MethodPost, "/copy", map[string]any{
		"datasets": []map[string]string{
			{"id": "ds-1", "file_path": "tenant-a/ds-1/file.bin"},
			{"id": "ds-2", "file_path": "tenant-a/ds-2/missing.bin"},
		},
	}, &results)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, results, 2)
	require.True(t, results[0].Success)
	require.Equal(t, "mem://persistent/tenant-a/ds-1/file.bin", results[0].Path)
	require.False(t, results[1].Success)

	rec = env.call(t, http.MethodPost, "/getFileLocation", map[string]string{"file_id": "ds-1"}, nil)
	// Commit writes dataset records, not file locations.
	require.Equal(t, http.StatusNotFound, rec.Code)

	saved, err := env.repo.FindDataset(context.Background(), "tenant-a", "ds-1")
	require.NoError(t, err)
	require.NotNil(t, saved)
}

func TestRevokeURLEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.call(t, http.MethodDelete, "/v2/files/revokeURL", nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	// Probes carry no tenant headers.
	req := httptest.NewRequest(http.MethodGet, "/v2/liveness_check", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v2/readiness_check", nil)
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	limited := rateLimitMiddleware(ratelimiter.New(1, 1))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)

	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	limited.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var errBody map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	require.Equal(t, "TooManyRequests", errBody["code"])
}

// pingFailRepo fails readiness checks while delegating everything else.
type pingFailRepo struct {
	record.Repository
}

func (pingFailRepo) Ping(context.Context) error {
	return fmt.Errorf("record store unreachable")
}

func TestReadinessFailure(t *testing.T) {
	env := newTestEnv(t)

	router := NewRouter(Dependencies{
		Location:   nil,
		Commit:     nil,
		Dataset:    nil,
		Repository: pingFailRepo{Repository: env.repo},
		Mode:       "presigned",
	})

	req := httptest.NewRequest(http.MethodGet, "/v2/readiness_check", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
