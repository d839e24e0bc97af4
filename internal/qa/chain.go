// Package qa answers questions over the ingested documents.
package qa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docqa/internal/adapter/khoj"
	"docqa/internal/middleware"
	"docqa/internal/vector"
)

const (
	DefaultTopK = 5

	ModeRemote = "remote"
	ModeLocal  = "local"

	NoDocumentsAnswer  = "No hay documentos para consultar. Por favor, sube algún documento primero."
	VectorStoreMessage = "Error al conectar con la base de datos vectorial. Por favor, espere un momento e intente de nuevo."
)

type Retriever interface {
	Count(ctx context.Context) (int, error)
	Search(ctx context.Context, query string, k int) ([]vector.Match, error)
}

type ChatClient interface {
	Complete(ctx context.Context, prompt string, contexts []string) (string, error)
}

type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string) ([]int, error)
}

// Turn is one message of the conversation so far. Role is "user" or
// "assistant".
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Source struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Score    float32        `json:"score"`
}

// Answer is always well formed. Err carries the failure behind a degraded
// answer so the HTTP layer can pick a status code.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Err     error    `json:"-"`
}

type Chain struct {
	retriever Retriever
	chat      ChatClient
	reranker  Reranker
	logger    *QueryLogger
	topK      int
	mode      string
}

type Option func(*Chain)

func WithReranker(r Reranker) Option {
	return func(c *Chain) { c.reranker = r }
}

func WithQueryLogger(l *QueryLogger) Option {
	return func(c *Chain) { c.logger = l }
}

func WithTopK(k int) Option {
	return func(c *Chain) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithContextMode selects whether retrieved chunks are sent to the chat
// service (ModeLocal) or the service retrieves on its own (ModeRemote).
func WithContextMode(mode string) Option {
	return func(c *Chain) { c.mode = mode }
}

func NewChain(r Retriever, chat ChatClient, opts ...Option) *Chain {
	c := &Chain{retriever: r, chat: chat, topK: DefaultTopK, mode: ModeRemote}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Chain) Answer(ctx context.Context, question string, history []Turn) (ans Answer) {
	start := time.Now()
	defer func() {
		if c.logger != nil {
			entry := QueryLogEntry{
				Query:         question,
				HistoryTurns:  len(history),
				NumResults:    len(ans.Sources),
				Duration:      time.Since(start),
				CorrelationID: middleware.GetCorrelationID(ctx),
			}
			if ans.Err != nil {
				entry.Error = ans.Err.Error()
			}
			c.logger.Log(entry)
		}
	}()

	count, err := c.retriever.Count(ctx)
	switch {
	case err != nil:
		slog.WarnContext(ctx, "document count failed, querying anyway", "error", err)
	case count == 0:
		return Answer{Answer: NoDocumentsAnswer, Sources: []Source{}}
	}

	matches, err := c.retriever.Search(ctx, question, c.topK)
	if err != nil {
		slog.ErrorContext(ctx, "retrieval failed", "error", err)
		return failure(err)
	}
	matches = c.rerank(ctx, question, matches)

	var contexts []string
	if c.mode == ModeLocal {
		for i := 0; i < len(matches) && i < khoj.MaxContextChunks; i++ {
			contexts = append(contexts, matches[i].Content)
		}
	}

	reply, err := c.chat.Complete(ctx, buildPrompt(question, history), contexts)
	if err != nil {
		slog.ErrorContext(ctx, "chat completion failed", "error", err)
		return failure(err)
	}

	return Answer{Answer: reply, Sources: toSources(matches)}
}

// rerank reorders matches, keeping the retrieval order if the reranker
// fails.
func (c *Chain) rerank(ctx context.Context, question string, matches []vector.Match) []vector.Match {
	if c.reranker == nil || len(matches) < 2 {
		return matches
	}
	docs := make([]string, len(matches))
	for i, m := range matches {
		docs[i] = m.Content
	}
	indices, err := c.reranker.Rerank(ctx, question, docs)
	if err != nil {
		slog.WarnContext(ctx, "rerank failed, keeping retrieval order", "error", err)
		return matches
	}
	out := make([]vector.Match, 0, len(indices))
	for _, idx := range indices {
		if idx >= 0 && idx < len(matches) {
			out = append(out, matches[idx])
		}
	}
	if len(out) == 0 {
		return matches
	}
	return out
}

func failure(err error) Answer {
	var msg string
	switch {
	case errors.Is(err, vector.ErrUnavailable):
		msg = VectorStoreMessage
	case isChatError(err):
		msg = khoj.Message(err)
	default:
		msg = fmt.Sprintf("Error al procesar su consulta: %v", err)
	}
	return Answer{Answer: msg, Sources: []Source{}, Err: err}
}

func isChatError(err error) bool {
	for _, target := range []error{khoj.ErrUnavailable, khoj.ErrConnection, khoj.ErrTimeout, khoj.ErrRequest, khoj.ErrMalformedResponse} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// buildPrompt renders prior turns as a Human/Assistant transcript followed
// by the new question.
func buildPrompt(question string, history []Turn) string {
	if len(history) == 0 {
		return question
	}
	var b strings.Builder
	for _, t := range history {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		switch strings.ToLower(t.Role) {
		case "assistant", "ai", "bot":
			b.WriteString("Assistant: ")
		default:
			b.WriteString("Human: ")
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	b.WriteString("Human: ")
	b.WriteString(question)
	return b.String()
}

func toSources(matches []vector.Match) []Source {
	out := make([]Source, 0, len(matches))
	for _, m := range matches {
		meta := make(map[string]any, len(m.Metadata)+3)
		for k, v := range m.Metadata {
			meta[k] = v
		}
		meta["source"] = m.Source
		meta["doc_id"] = m.DocumentID
		meta["chunk_index"] = m.ChunkIndex
		out = append(out, Source{Content: m.Content, Metadata: meta, Score: m.Score})
	}
	return out
}
