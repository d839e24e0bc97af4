// Package ingest turns files on disk into embedded chunks in the vector
// store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"docqa/internal/loader"
	"docqa/internal/middleware"
	"docqa/internal/text"
	"docqa/internal/vector"
)

var (
	ErrUnsupportedType = loader.ErrUnsupportedType
	ErrEmptyDocument   = errors.New("document has no extractable text")
)

// Indexer embeds and stores chunk records.
type Indexer interface {
	Add(ctx context.Context, records []vector.Record) error
}

type Pipeline struct {
	registry *loader.Registry
	splitter *text.Splitter
	index    Indexer
	newID    func() string
}

type Option func(*Pipeline)

// WithIDGenerator replaces the document id source.
func WithIDGenerator(fn func() string) Option {
	return func(p *Pipeline) { p.newID = fn }
}

func NewPipeline(registry *loader.Registry, splitter *text.Splitter, index Indexer, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry: registry,
		splitter: splitter,
		index:    index,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Supported reports whether files named like path can be ingested.
func (p *Pipeline) Supported(path string) bool {
	_, err := p.registry.ForPath(path)
	return err == nil
}

// Extensions lists the accepted file extensions.
func (p *Pipeline) Extensions() []string {
	return p.registry.Extensions()
}

// Ingest loads the file at path, splits it and stores every chunk under a
// fresh document id. The insert is a single batch but is not atomic: if the
// store fails midway some chunks may remain.
func (p *Pipeline) Ingest(ctx context.Context, path string) (Result, error) {
	l, err := p.registry.ForPath(path)
	if err != nil {
		return Failed(err), err
	}

	docID := p.newID()
	ctx = middleware.WithDocumentID(ctx, docID)

	segments, err := l.Load(ctx, path)
	if err != nil {
		err = fmt.Errorf("load %s: %w", path, err)
		return Failed(err), err
	}

	records := p.chunk(docID, path, segments)
	if len(records) == 0 {
		return Failed(ErrEmptyDocument), ErrEmptyDocument
	}

	if err := p.index.Add(ctx, records); err != nil {
		err = fmt.Errorf("index %s: %w", path, err)
		return Failed(err), err
	}

	slog.InfoContext(ctx, "document ingested", "path", path, "segments", len(segments), "chunks", len(records))
	return OK(docID, len(records)), nil
}

func (p *Pipeline) chunk(docID, source string, segments []loader.Segment) []vector.Record {
	var records []vector.Record
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		for _, span := range p.splitter.Split(seg.Text) {
			idx := len(records)
			meta := make(map[string]any, len(seg.Metadata)+4)
			for k, v := range seg.Metadata {
				meta[k] = v
			}
			meta["source"] = source
			meta["doc_id"] = docID
			meta["chunk_index"] = idx
			meta["start_index"] = span.Start

			records = append(records, vector.Record{
				ID:         uuid.NewString(),
				DocumentID: docID,
				Source:     source,
				Content:    span.Text,
				ChunkIndex: idx,
				StartIndex: span.Start,
				Metadata:   meta,
			})
		}
	}
	return records
}

// IngestURL is reserved for web page ingestion and does nothing yet.
func (p *Pipeline) IngestURL(ctx context.Context, url string) Result {
	slog.WarnContext(ctx, "url ingestion not implemented", "url", url)
	return NotImplemented()
}

// IngestDatabase is reserved for ingesting query results and does nothing
// yet.
func (p *Pipeline) IngestDatabase(ctx context.Context, dsn, query string) Result {
	slog.WarnContext(ctx, "database ingestion not implemented")
	return NotImplemented()
}
