package document_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docqa/features/document"
	"docqa/internal/ingest"
	"docqa/internal/middleware"
	"docqa/internal/vector"
)

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	part.Write([]byte(content))
	writer.Close()

	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestHandler_Upload_Success(t *testing.T) {
	dir := t.TempDir()
	ing := new(MockIngester)
	repo := new(MockRepo)
	path := filepath.Join(dir, "notes.txt")

	ing.On("Supported", "notes.txt").Return(true)
	ing.On("Ingest", mock.Anything, path).Return(ingest.OK("doc-1", 3), nil)
	repo.On("Save", mock.Anything, mock.MatchedBy(func(d *document.Document) bool {
		return d.ID == "doc-1" && d.Filename == "notes.txt" && d.Extension == "txt" && d.ChunkCount == 3
	})).Return(nil)

	h := document.NewHandler(document.NewService(ing, repo, nil), dir, 1<<20)
	w := httptest.NewRecorder()
	h.Upload(w, uploadRequest(t, "notes.txt", "hello"))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Document processed successfully", resp["message"])
	assert.Equal(t, "doc-1", resp["document_id"])

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(saved))
	ing.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestHandler_Upload_StripsDirectories(t *testing.T) {
	dir := t.TempDir()
	ing := new(MockIngester)
	ing.On("Supported", "evil.txt").Return(true)
	ing.On("Ingest", mock.Anything, filepath.Join(dir, "evil.txt")).Return(ingest.OK("doc-2", 1), nil)

	h := document.NewHandler(document.NewService(ing, nil, nil), dir, 1<<20)
	w := httptest.NewRecorder()
	h.Upload(w, uploadRequest(t, "../../evil.txt", "x"))

	assert.Equal(t, http.StatusOK, w.Code)
	ing.AssertExpectations(t)
}

func TestHandler_Upload_UnsupportedType(t *testing.T) {
	dir := t.TempDir()
	ing := new(MockIngester)
	ing.On("Supported", "tool.exe").Return(false)

	h := document.NewHandler(document.NewService(ing, nil, nil), dir, 1<<20)
	w := httptest.NewRecorder()
	h.Upload(w, uploadRequest(t, "tool.exe", "MZ"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "UNSUPPORTED_TYPE")
	ing.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)

	// Nothing is written for rejected files.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandler_Upload_MissingFile(t *testing.T) {
	h := document.NewHandler(document.NewService(new(MockIngester), nil, nil), t.TempDir(), 1<<20)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	writer.WriteField("name", "x")
	writer.Close()
	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	w := httptest.NewRecorder()
	h.Upload(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Upload_IngestErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		code     string
		contains string
	}{
		{"Vector Store Unavailable", fmt.Errorf("index: %w", vector.ErrUnavailable), http.StatusServiceUnavailable, "VECTOR_STORE_UNAVAILABLE", "base de datos vectorial"},
		{"Empty Document", ingest.ErrEmptyDocument, http.StatusUnprocessableEntity, "EMPTY_DOCUMENT", "no extractable text"},
		{"Generic", errors.New("pdftotext: exit status 1"), http.StatusInternalServerError, "INTERNAL_ERROR", "Error processing document: pdftotext"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			ing := new(MockIngester)
			ing.On("Supported", "a.pdf").Return(true)
			ing.On("Ingest", mock.Anything, filepath.Join(dir, "a.pdf")).Return(ingest.Failed(tt.err), tt.err)

			h := document.NewHandler(document.NewService(ing, nil, nil), dir, 1<<20)
			req := uploadRequest(t, "a.pdf", "%PDF")
			req = req.WithContext(middleware.WithCorrelationID(req.Context(), "corr-9"))
			w := httptest.NewRecorder()
			h.Upload(w, req)

			assert.Equal(t, tt.status, w.Code)
			var resp struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
				CorrelationID string `json:"correlationId"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, tt.contains)
			assert.Equal(t, "corr-9", resp.CorrelationID)
		})
	}
}

func TestHandler_List(t *testing.T) {
	repo := new(MockRepo)
	now := time.Now()
	repo.On("List", mock.Anything).Return([]document.Document{{ID: "1", Filename: "a.txt", CreatedAt: now}}, nil)

	h := document.NewHandler(document.NewService(new(MockIngester), repo, nil), t.TempDir(), 0)
	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest("GET", "/documents", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []document.Document `json:"data"`
		Meta map[string]int      `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, 1, resp.Meta["count"])
}

func TestHandler_List_Empty(t *testing.T) {
	repo := new(MockRepo)
	repo.On("List", mock.Anything).Return(nil, nil)

	h := document.NewHandler(document.NewService(new(MockIngester), repo, nil), t.TempDir(), 0)
	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest("GET", "/documents", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestHandler_Get(t *testing.T) {
	repo := new(MockRepo)
	repo.On("Get", mock.Anything, "1").Return(&document.Document{ID: "1"}, nil)
	repo.On("Get", mock.Anything, "missing").Return(nil, sql.ErrNoRows)

	h := document.NewHandler(document.NewService(new(MockIngester), repo, nil), t.TempDir(), 0)

	t.Run("Found", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/documents/1", nil)
		req.SetPathValue("id", "1")
		w := httptest.NewRecorder()
		h.Get(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Not Found", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/documents/missing", nil)
		req.SetPathValue("id", "missing")
		w := httptest.NewRecorder()
		h.Get(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
