package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"docqa/internal/ingest"
	"docqa/internal/middleware"
	"docqa/internal/vector"
)

type Handler struct {
	service   *Service
	uploadDir string
	maxBytes  int64
}

func NewHandler(service *Service, uploadDir string, maxBytes int64) *Handler {
	if uploadDir == "" {
		uploadDir = "data"
	}
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	return &Handler{service: service, uploadDir: uploadDir, maxBytes: maxBytes}
}

// Upload saves the multipart "file" under the upload directory using its
// original name and ingests it.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "File too large or malformed form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(ctx, w, "BAD_REQUEST", "Unable to retrieve file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "." || filename == string(filepath.Separator) {
		h.writeError(ctx, w, "BAD_REQUEST", "Invalid file name", http.StatusBadRequest)
		return
	}
	if !h.service.Supported(filename) {
		h.writeError(ctx, w, "UNSUPPORTED_TYPE", "Unsupported file type: "+filepath.Ext(filename), http.StatusBadRequest)
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o750); err != nil {
		slog.ErrorContext(ctx, "failed to create upload directory", "error", err, "path", filepath.Clean(h.uploadDir))
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to create upload directory", http.StatusInternalServerError)
		return
	}

	path := filepath.Join(h.uploadDir, filename)
	if err := saveFile(path, file); err != nil {
		slog.ErrorContext(ctx, "failed to save upload", "error", err, "path", path)
		h.writeError(ctx, w, "INTERNAL_ERROR", "Failed to save file", http.StatusInternalServerError)
		return
	}

	doc, err := h.service.Ingest(ctx, path)
	if err != nil {
		slog.ErrorContext(ctx, "ingestion failed", "error", err, "path", path)
		switch {
		case errors.Is(err, ingest.ErrUnsupportedType):
			h.writeError(ctx, w, "UNSUPPORTED_TYPE", err.Error(), http.StatusBadRequest)
		case errors.Is(err, ingest.ErrEmptyDocument):
			h.writeError(ctx, w, "EMPTY_DOCUMENT", "Error processing document: "+err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, vector.ErrUnavailable):
			h.writeError(ctx, w, "VECTOR_STORE_UNAVAILABLE", "Error al conectar con la base de datos vectorial. Por favor, espere un momento e intente de nuevo.", http.StatusServiceUnavailable)
		default:
			h.writeError(ctx, w, "INTERNAL_ERROR", "Error processing document: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"message":     "Document processed successfully",
		"document_id": doc.ID,
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func saveFile(path string, src io.Reader) error {
	dst, err := os.Create(filepath.Clean(path)) // #nosec G304 -- basename only, directory from config
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}

	if docs == nil {
		docs = []Document{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": docs,
		"meta": map[string]int{"count": len(docs)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		h.writeError(r.Context(), w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": doc}); err != nil {
		slog.Error("failed to encode response", "error", err)
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
