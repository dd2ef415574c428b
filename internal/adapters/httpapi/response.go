package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/traveal-app/traveal-api/pkg/apierror"
)

// apiResponse is the envelope every endpoint returns.
type apiResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Error     *apiError `json:"error,omitempty"`
	Meta      *meta     `json:"meta,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
}

type apiError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func newMeta(page, limit, total int) *meta {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return &meta{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, apiResponse{
		Success:   true,
		Data:      data,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func writePage(w http.ResponseWriter, r *http.Request, data any, m *meta) {
	writeJSON(w, http.StatusOK, apiResponse{
		Success:   true,
		Data:      data,
		Meta:      m,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// writeError renders typed application errors with their own status and
// code; anything else becomes an opaque 500 so internals never leak.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *apierror.Error
	if !errors.As(err, &ae) {
		slog.Error("unhandled error", "request_id", middleware.GetReqID(r.Context()), "error", err)
		ae = apierror.New(http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	writeJSON(w, ae.Status, apiResponse{
		Success: false,
		Error: &apiError{
			Code:    ae.Code,
			Message: ae.Message,
			Details: ae.Details,
		},
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeJSON parses the request body, rejecting unknown fields so typos in
// client payloads surface instead of being dropped.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apierror.Invalid("invalid request body", map[string]any{"body": err.Error()})
	}
	return nil
}
