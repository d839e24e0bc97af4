package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/features/health"
)

func ok(context.Context) error { return nil }

func TestHandler_Health_AllHealthy(t *testing.T) {
	h := health.NewHandler().
		Register("vector_store", ok).
		Register("chat", ok)

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp health.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, map[string]string{
		"backend":      "healthy",
		"vector_store": "healthy",
		"chat":         "healthy",
	}, resp.Services)
}

func TestHandler_Check_IndependentFailures(t *testing.T) {
	h := health.NewHandler().
		Register("vector_store", func(context.Context) error { return errors.New("connection refused") }).
		Register("chat", ok).
		Register("database", nil)

	resp := h.Check(context.Background())

	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "unhealthy: connection refused", resp.Services["vector_store"])
	assert.Equal(t, "healthy", resp.Services["chat"])
	assert.NotContains(t, resp.Services, "database")
}

func TestHandler_Check_SlowCheckTimesOut(t *testing.T) {
	h := health.NewHandler().Register("chat", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	resp := h.Check(ctx)
	assert.Contains(t, resp.Services["chat"], "unhealthy: ")
}
