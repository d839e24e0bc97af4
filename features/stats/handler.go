package stats

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"docqa/internal/middleware"
	"docqa/internal/vector"
)

type DocumentRepo interface {
	Count(ctx context.Context) (int, error)
}

type ChunkCounter interface {
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	docRepo DocumentRepo
	chunks  ChunkCounter
	jobs    DocumentRepo
}

// NewHandler builds the stats handler. docRepo may be nil when the
// document registry is disabled.
func NewHandler(d DocumentRepo, c ChunkCounter) *Handler {
	return &Handler{docRepo: d, chunks: c}
}

// WithFailedJobs adds the failed ingestion count to the response.
func (h *Handler) WithFailedJobs(j DocumentRepo) *Handler {
	h.jobs = j
	return h
}

type StatsResponse struct {
	Documents  int  `json:"documents"`
	Chunks     int  `json:"chunks"`
	FailedJobs *int `json:"failed_jobs,omitempty"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var resp StatsResponse
	if h.docRepo != nil {
		n, err := h.docRepo.Count(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to count documents", "error", err)
			h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count documents", http.StatusInternalServerError)
			return
		}
		resp.Documents = n
	}

	n, err := h.chunks.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count chunks", "error", err)
		if errors.Is(err, vector.ErrUnavailable) {
			h.writeError(ctx, w, "VECTOR_STORE_UNAVAILABLE", "vector database unavailable", http.StatusServiceUnavailable)
			return
		}
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count chunks", http.StatusInternalServerError)
		return
	}
	resp.Chunks = n

	if h.jobs != nil {
		n, err := h.jobs.Count(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to count failed jobs", "error", err)
			h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count failed jobs", http.StatusInternalServerError)
			return
		}
		resp.FailedJobs = &n
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
