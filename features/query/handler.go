package query

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"docqa/internal/adapter/khoj"
	"docqa/internal/middleware"
	"docqa/internal/qa"
	"docqa/internal/vector"
)

const (
	chatUnavailableMessage   = "El servicio Khoj no está disponible. Por favor, espere un momento e intente de nuevo."
	vectorUnavailableMessage = "Error al conectar con la base de datos vectorial. Por favor, espere un momento e intente de nuevo."
)

type Answerer interface {
	Answer(ctx context.Context, question string, history []qa.Turn) qa.Answer
}

type Handler struct {
	chain Answerer
}

func NewHandler(chain Answerer) *Handler {
	return &Handler{chain: chain}
}

type Request struct {
	Query       string    `json:"query"`
	ChatHistory []qa.Turn `json:"chat_history"`
}

func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		h.writeError(ctx, w, "VALIDATION_ERROR", "Query is required", http.StatusBadRequest)
		return
	}

	slog.InfoContext(ctx, "received query", "query_len", len(req.Query), "history_turns", len(req.ChatHistory))

	ans := h.chain.Answer(ctx, req.Query, req.ChatHistory)
	if ans.Err != nil {
		switch {
		case errors.Is(ans.Err, khoj.ErrUnavailable),
			errors.Is(ans.Err, khoj.ErrConnection),
			errors.Is(ans.Err, khoj.ErrTimeout):
			h.writeError(ctx, w, "CHAT_UNAVAILABLE", chatUnavailableMessage, http.StatusServiceUnavailable)
			return
		case errors.Is(ans.Err, vector.ErrUnavailable):
			h.writeError(ctx, w, "VECTOR_STORE_UNAVAILABLE", vectorUnavailableMessage, http.StatusServiceUnavailable)
			return
		}
		// Other failures are reported inside the answer text.
		slog.WarnContext(ctx, "query answered with degraded result", "error", ans.Err)
	}

	if ans.Sources == nil {
		ans.Sources = []qa.Source{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ans); err != nil {
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
