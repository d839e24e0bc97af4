package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/app"
	"docqa/internal/config"
	"docqa/internal/qa"
	"docqa/internal/testutils"
	"docqa/internal/vector"
	"docqa/internal/worker"
)

func TestApp_EndToEnd_Ingestion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E integration test")
	}

	s := testutils.NewIntegrationSuite(t)
	s.Setup()
	defer s.Teardown()

	cfg := s.GetAppConfig()
	provider := vector.NewProvider(app.WeaviateFactory(cfg))
	chat := &stubChat{}

	application, err := app.New(cfg, s.DB, provider, fixedEmbedder{}, s.NSQ, &app.Options{Chat: chat})
	require.NoError(t, err)
	defer application.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	part.Write([]byte(strings.Repeat("integration ", 300)))
	writer.Close()

	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	application.Handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var up map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &up))
	docID := up["document_id"]
	require.NotEmpty(t, docID)

	msg := s.ConsumeOne(config.TopicDocumentIngested)
	require.NotNil(t, msg, "should receive document.ingested event")
	var event worker.DocumentIngestedEvent
	require.NoError(t, json.Unmarshal(msg.Body, &event))
	assert.Equal(t, docID, event.DocumentID)
	assert.Equal(t, 5, event.ChunkCount)

	doc, err := application.Documents.Get(context.Background(), docID)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", doc.Filename)

	w = httptest.NewRecorder()
	application.Handler.ServeHTTP(w, httptest.NewRequest("POST", "/query", strings.NewReader(`{"query":"integration"}`)))
	require.Equal(t, http.StatusOK, w.Code)

	var ans qa.Answer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ans))
	assert.Equal(t, "stub answer", ans.Answer)
	assert.Len(t, ans.Sources, 5)
}
