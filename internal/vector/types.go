package vector

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means the store handle could not be initialised.
	ErrUnavailable = errors.New("vector database unavailable")

	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Record is a chunk ready for insertion, together with its embedding.
type Record struct {
	ID         string
	DocumentID string
	Source     string
	Content    string
	ChunkIndex int
	StartIndex int
	Metadata   map[string]any
	Vector     []float32
}

// Match is a stored chunk returned by a similarity search. Score is in
// [0, 1] for normalised embeddings, higher is closer.
type Match struct {
	ID         string         `json:"id,omitempty"`
	DocumentID string         `json:"doc_id"`
	Source     string         `json:"source"`
	Content    string         `json:"content"`
	ChunkIndex int            `json:"chunk_index"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Score      float32        `json:"score"`
}

type Store interface {
	AddDocuments(ctx context.Context, records []Record) error
	Search(ctx context.Context, vector []float32, k int) ([]Match, error)
	Count(ctx context.Context) (int, error)
	Ready(ctx context.Context) error
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
