package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"docqa/internal/middleware"
)

// Handler serves the failed ingestion registry.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

type listMeta struct {
	Count int `json:"count"`
	// Paths counts failed jobs per file, so repeated failures of one upload
	// stand out.
	Paths map[string]int `json:"paths"`
}

// RetryResponse describes the message that was put back on the queue.
type RetryResponse struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Topic  string `json:"topic"`
	Status string `json:"status"`
}

// List handles GET /jobs/failed.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobs, err := h.service.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list failed ingestions", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to list failed ingestions", http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []Job{}
	}

	meta := listMeta{Count: len(jobs), Paths: make(map[string]int)}
	for _, j := range jobs {
		meta.Paths[j.Path]++
	}
	slog.InfoContext(ctx, "listed failed ingestions", "count", meta.Count, "files", len(meta.Paths))

	h.writeJSON(ctx, w, map[string]any{"data": jobs, "meta": meta})
}

// Retry handles POST /jobs/{id}/retry.
func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	j, err := h.service.Retry(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		h.writeError(ctx, w, "NOT_FOUND", "failed ingestion not found", http.StatusNotFound)
		return
	case errors.Is(err, ErrEventsDisabled), errors.Is(err, ErrPublishTimeout):
		slog.WarnContext(ctx, "cannot requeue ingestion", "job_id", id, "error", err)
		h.writeError(ctx, w, "EVENTS_UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
		return
	default:
		slog.ErrorContext(ctx, "failed to requeue ingestion", "job_id", id, "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(ctx, w, map[string]any{"data": RetryResponse{
		ID:     j.ID,
		Path:   j.Path,
		Topic:  j.Topic,
		Status: "requeued",
	}})
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]any{
		"error":         map[string]string{"code": code, "message": message},
		"correlationId": middleware.GetCorrelationID(ctx),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode error response", "error", err)
	}
}
