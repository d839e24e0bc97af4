package query_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docqa/features/query"
	"docqa/internal/adapter/khoj"
	"docqa/internal/qa"
	"docqa/internal/vector"
)

type MockChain struct{ mock.Mock }

func (m *MockChain) Answer(ctx context.Context, question string, history []qa.Turn) qa.Answer {
	args := m.Called(ctx, question, history)
	return args.Get(0).(qa.Answer)
}

func post(h *query.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/query", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Query(w, req)
	return w
}

func TestHandler_Query_Success(t *testing.T) {
	chain := new(MockChain)
	history := []qa.Turn{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}
	chain.On("Answer", mock.Anything, "what is it?", history).Return(qa.Answer{
		Answer:  "a test",
		Sources: []qa.Source{{Content: "chunk", Metadata: map[string]any{"source": "data/a.txt"}}},
	})

	w := post(query.NewHandler(chain), `{"query":" what is it? ","chat_history":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Answer  string      `json:"answer"`
		Sources []qa.Source `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "a test", resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "data/a.txt", resp.Sources[0].Metadata["source"])
	chain.AssertExpectations(t)
}

func TestHandler_Query_NoDocuments(t *testing.T) {
	chain := new(MockChain)
	chain.On("Answer", mock.Anything, "q", []qa.Turn(nil)).Return(qa.Answer{Answer: qa.NoDocumentsAnswer})

	w := post(query.NewHandler(chain), `{"query":"q"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sources":[]`)
	assert.NotContains(t, w.Body.String(), "Err")
}

func TestHandler_Query_Validation(t *testing.T) {
	h := query.NewHandler(new(MockChain))

	assert.Equal(t, http.StatusBadRequest, post(h, `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, post(h, `{"query":"   "}`).Code)
}

func TestHandler_Query_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"Chat Unavailable", fmt.Errorf("%w: 503", khoj.ErrUnavailable), http.StatusServiceUnavailable, "CHAT_UNAVAILABLE"},
		{"Chat Connection", khoj.ErrConnection, http.StatusServiceUnavailable, "CHAT_UNAVAILABLE"},
		{"Chat Timeout", khoj.ErrTimeout, http.StatusServiceUnavailable, "CHAT_UNAVAILABLE"},
		{"Vector Store", vector.ErrUnavailable, http.StatusServiceUnavailable, "VECTOR_STORE_UNAVAILABLE"},
		{"Malformed Response", khoj.ErrMalformedResponse, http.StatusOK, ""},
		{"Generic", errors.New("boom"), http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := new(MockChain)
			chain.On("Answer", mock.Anything, "q", mock.Anything).Return(qa.Answer{Answer: "degraded", Sources: []qa.Source{}, Err: tt.err})

			w := post(query.NewHandler(chain), `{"query":"q"}`)
			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Contains(t, w.Body.String(), tt.code)
			} else {
				assert.Contains(t, w.Body.String(), `"answer":"degraded"`)
			}
		})
	}
}
