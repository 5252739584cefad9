package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lucentfeed/lucent/internal/feed"
	"github.com/lucentfeed/lucent/internal/middleware"
)

// maxRequestBody bounds feed request payloads at 1 MiB.
const maxRequestBody = 1 << 20

// FeedHandlers serves the ranked-feed endpoints.
type FeedHandlers struct {
	service *feed.Service
	logger  *slog.Logger
}

// NewFeedHandlers creates feed handlers backed by the given service.
func NewFeedHandlers(service *feed.Service, logger *slog.Logger) *FeedHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedHandlers{service: service, logger: logger}
}

// RankRequest is the JSON body for POST /v1/feed/rank.
type RankRequest struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

// Rank handles POST /v1/feed/rank. It resolves the user's session, assembles
// the candidate pool, and returns one ranked page.
func (h *FeedHandlers) Rank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req RankRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	if req.UserID == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "user_id is required")
		return
	}
	middleware.SetUserID(r.Context(), req.UserID)
	if req.Limit < 0 {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "limit must not be negative")
		return
	}

	resp, err := h.service.Rank(r.Context(), feed.RankParams{
		UserID: req.UserID,
		Limit:  req.Limit,
		Cursor: req.Cursor,
	})
	if err != nil {
		if errors.Is(err, feed.ErrMissingUserID) {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "feed rank failed", "user_id", req.UserID, "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to rank feed")
		return
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// ViewsRequest is the JSON body for POST /v1/feed/views.
type ViewsRequest struct {
	UserID string      `json:"user_id"`
	Views  []feed.View `json:"views"`
}

// ViewsResponse acknowledges recorded view events.
type ViewsResponse struct {
	Recorded int `json:"recorded"`
}

// Views handles POST /v1/feed/views. Clients batch consumption events here so
// later ranking passes can devalue already-seen content.
func (h *FeedHandlers) Views(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	var req ViewsRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	if req.UserID == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "user_id is required")
		return
	}
	middleware.SetUserID(r.Context(), req.UserID)
	if len(req.Views) == 0 {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "views must not be empty")
		return
	}

	// The whole batch is validated before anything is written, so a bad
	// event rejects the batch without recording a prefix of it.
	if err := h.service.RecordViews(r.Context(), req.UserID, req.Views); err != nil {
		if errors.Is(err, feed.ErrInvalidView) {
			h.logger.WarnContext(r.Context(), "rejected views batch",
				"user_id", req.UserID,
				"error", err)
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to record views", "user_id", req.UserID, "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to record views")
		return
	}

	writeJSON(w, r, http.StatusOK, ViewsResponse{Recorded: len(req.Views)})
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
