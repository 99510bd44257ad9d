package api

import (
	"encoding/json"
	"net/http"

	"github.com/marmos91/filegate/internal/logger"
	"github.com/marmos91/filegate/pkg/store/object"
)

// errorResponse is the JSON body written for every failed request.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// statusForCode maps a domain error code to its HTTP status.
//
// Client faults (malformed input, uniqueness violations, lookup misses,
// unusable source paths) map to 4xx; everything else is a server fault.
// Pagination failures are deliberately a server error: an undecodable
// cursor means the encoding changed underneath the client, not that the
// client sent garbage input.
func statusForCode(code object.ErrorCode) int {
	switch code {
	case object.ErrMalformedLocation, object.ErrInvalidSourcePath:
		return http.StatusBadRequest
	case object.ErrAlreadyExists:
		return http.StatusConflict
	case object.ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a JSON error response with the right status.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := errorResponse{
		Code:    "InternalError",
		Message: err.Error(),
	}

	if storeErr, ok := object.AsStoreError(err); ok {
		status = statusForCode(storeErr.Code)
		body.Code = storeErr.Code.String()
		body.Message = storeErr.Message
		body.Path = storeErr.Path
	}

	writeJSON(w, status, body)
}

// writeJSON renders v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}

// decodeJSON parses the request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return &object.StoreError{
			Code:    object.ErrMalformedLocation,
			Message: "invalid request body: " + err.Error(),
		}
	}
	return nil
}
