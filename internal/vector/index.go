package vector

import (
	"context"
	"fmt"
)

// Index combines the shared store with an embedder so callers deal in text.
type Index struct {
	provider *Provider
	embedder Embedder
}

func NewIndex(p *Provider, e Embedder) *Index {
	return &Index{provider: p, embedder: e}
}

// Add embeds the content of every record and inserts them in one batch.
// The store is resolved first so an unreachable database fails before any
// embedding work.
func (ix *Index) Add(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	store, err := ix.provider.Get(ctx)
	if err != nil {
		return err
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Content
	}
	vecs, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(records) {
		return fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vecs), len(records))
	}
	for i := range records {
		records[i].Vector = vecs[i]
	}
	return store.AddDocuments(ctx, records)
}

// Search returns up to k chunks closest to query, best first.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Match, error) {
	store, err := ix.provider.Get(ctx)
	if err != nil {
		return nil, err
	}
	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return store.Search(ctx, vec, k)
}

func (ix *Index) Count(ctx context.Context) (int, error) {
	store, err := ix.provider.Get(ctx)
	if err != nil {
		return 0, err
	}
	return store.Count(ctx)
}

func (ix *Index) Ready(ctx context.Context) error {
	store, err := ix.provider.Get(ctx)
	if err != nil {
		return err
	}
	return store.Ready(ctx)
}
