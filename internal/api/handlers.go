package api

import (
	"net/http"
	"time"

	"github.com/marmos91/filegate/internal/logger"
	"github.com/marmos91/filegate/pkg/access"
	"github.com/marmos91/filegate/pkg/commit"
	"github.com/marmos91/filegate/pkg/dataset"
	"github.com/marmos91/filegate/pkg/location"
	"github.com/marmos91/filegate/pkg/metrics"
	"github.com/marmos91/filegate/pkg/store/record"
)

// handlers bundles the services behind the HTTP surface.
type handlers struct {
	location *location.Service
	commit   *commit.Workflow
	dataset  *dataset.Builder
	metrics  metrics.APIMetrics
	mode     string
}

// getLocationRequest asks for a location allocation. FileID is optional;
// when absent a fresh id is generated.
type getLocationRequest struct {
	FileID string `json:"file_id"`
}

// GetLocation allocates a staging location and returns an upload grant.
func (h *handlers) GetLocation(w http.ResponseWriter, r *http.Request) {
	var req getLocationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.location.CreateLocation(r.Context(), req.FileID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.metrics.RecordGrant(h.mode, "write")
	writeJSON(w, http.StatusOK, result)
}

type getFileLocationRequest struct {
	FileID string `json:"file_id"`
}

// getFileLocationResponse carries the stored physical location of a file.
type getFileLocationResponse struct {
	Driver   string `json:"driver"`
	Location string `json:"location"`
}

// GetFileLocation resolves the physical location bound to a file id.
func (h *handlers) GetFileLocation(w http.ResponseWriter, r *http.Request) {
	var req getFileLocationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	loc, err := h.location.GetLocation(r.Context(), req.FileID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, getFileLocationResponse{
		Driver:   loc.BackendKind,
		Location: loc.PhysicalURI,
	})
}

type getFileListRequest struct {
	PageSize int    `json:"page_size"`
	Cursor   string `json:"cursor"`

	CreatedBy string    `json:"created_by"`
	TimeFrom  time.Time `json:"time_from"`
	TimeTo    time.Time `json:"time_to"`
}

// getFileListResponse is one page of a location scan.
type getFileListResponse struct {
	Content []record.FileLocation `json:"content"`
	Size    int                   `json:"size"`
	Cursor  string                `json:"cursor,omitempty"`
}

// GetFileList returns one page of the caller's locations.
func (h *handlers) GetFileList(w http.ResponseWriter, r *http.Request) {
	var req getFileListRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 50
	}

	page, err := h.location.ListLocations(r.Context(), record.ListFilter{
		CreatedBy: req.CreatedBy,
		TimeFrom:  req.TimeFrom,
		TimeTo:    req.TimeTo,
	}, req.PageSize, req.Cursor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, getFileListResponse{
		Content: page.Items,
		Size:    page.TotalReturned,
		Cursor:  page.Cursor,
	})
}

type storageInstructionsRequest struct {
	DatasetRegistryID string `json:"dataset_registry_id"`
}

// storageInstructionsResponse tells the client where to upload a dataset.
type storageInstructionsResponse struct {
	ProviderKey     string               `json:"provider_key"`
	StorageLocation *access.SignedAccess `json:"storage_location"`
}

// StorageInstructions allocates a fresh staging address for a dataset and
// returns an upload grant for it.
func (h *handlers) StorageInstructions(w http.ResponseWriter, r *http.Request) {
	var req storageInstructionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	entry, err := h.dataset.BuildStorageInstructions(r.Context(), req.DatasetRegistryID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.metrics.RecordGrant(h.mode, "write")
	writeJSON(w, http.StatusOK, storageInstructionsResponse{
		ProviderKey:     entry.ProviderKey,
		StorageLocation: entry.Location,
	})
}

type retrievalInstructionsRequest struct {
	DatasetRegistryIDs []string `json:"dataset_registry_ids"`
}

// retrievalInstructionsResponse carries one entry per requested dataset.
type retrievalInstructionsResponse struct {
	Datasets []dataset.RetrievalEntry `json:"datasets"`
}

// RetrievalInstructions issues download grants for a batch of datasets.
// Failed items carry their reason inline; the batch itself always succeeds.
func (h *handlers) RetrievalInstructions(w http.ResponseWriter, r *http.Request) {
	var req retrievalInstructionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	entries := h.dataset.BuildRetrievalInstructions(r.Context(), req.DatasetRegistryIDs)
	for _, entry := range entries {
		if entry.Message == "" {
			h.metrics.RecordGrant(h.mode, "read")
		}
	}

	writeJSON(w, http.StatusOK, retrievalInstructionsResponse{Datasets: entries})
}

type copyRequest struct {
	Datasets []commit.Request `json:"datasets"`
}

// Copy promotes a batch of staged datasets to persistent storage. Items
// fail individually; the response always enumerates every request.
func (h *handlers) Copy(w http.ResponseWriter, r *http.Request) {
	var req copyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	results := h.commit.Commit(r.Context(), req.Datasets)
	for _, result := range results {
		if result.Success {
			h.metrics.RecordCommit("success")
		} else {
			h.metrics.RecordCommit("failure")
		}
	}

	writeJSON(w, http.StatusOK, results)
}

// RevokeURL invalidates previously issued access. Grants are
// self-expiring signed payloads with no server-side state, so there is
// nothing to tear down; the endpoint acknowledges the request so callers
// can treat revocation as fire-and-forget.
func (h *handlers) RevokeURL(w http.ResponseWriter, r *http.Request) {
	logger.Debug("Revoke requested; grants expire on their own")
	w.WriteHeader(http.StatusNoContent)
}
