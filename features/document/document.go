package document

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"docqa/internal/config"
	"docqa/internal/ingest"
	"docqa/internal/middleware"
	"docqa/internal/worker"
)

const (
	StatusCompleted = "completed"
)

type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	SourcePath string    `json:"source_path"`
	Extension  string    `json:"extension"`
	ChunkCount int       `json:"chunk_count"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

type Repository interface {
	Save(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context) ([]Document, error)
	Count(ctx context.Context) (int, error)
}

type Ingester interface {
	Ingest(ctx context.Context, path string) (ingest.Result, error)
	Supported(path string) bool
}

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	ingester Ingester
	repo     Repository
	pub      EventPublisher
}

// NewService wires the pipeline to the registry. repo and pub may be nil,
// in which case documents are only indexed.
func NewService(ingester Ingester, repo Repository, pub EventPublisher) *Service {
	return &Service{ingester: ingester, repo: repo, pub: pub}
}

func (s *Service) Supported(filename string) bool {
	return s.ingester.Supported(filename)
}

// Ingest runs the pipeline on a saved file and records the result. Once the
// chunks are stored the document counts as ingested: registry and event
// failures are logged, not returned.
func (s *Service) Ingest(ctx context.Context, path string) (*Document, error) {
	res, err := s.ingester.Ingest(ctx, path)
	if err != nil {
		return nil, err
	}

	ctx = middleware.WithDocumentID(ctx, res.DocumentID)
	doc := &Document{
		ID:         res.DocumentID,
		Filename:   filepath.Base(path),
		SourcePath: path,
		Extension:  strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		ChunkCount: res.ChunkCount,
		Status:     StatusCompleted,
		CreatedAt:  time.Now().UTC(),
	}

	if s.repo != nil {
		if err := s.repo.Save(ctx, doc); err != nil {
			slog.ErrorContext(ctx, "failed to record document", "error", err)
		}
	}

	if s.pub != nil {
		payload, _ := json.Marshal(worker.DocumentIngestedEvent{
			DocumentID:    doc.ID,
			Filename:      doc.Filename,
			Path:          doc.SourcePath,
			ChunkCount:    doc.ChunkCount,
			CorrelationID: middleware.GetCorrelationID(ctx),
		})
		if err := s.pub.Publish(config.TopicDocumentIngested, payload); err != nil {
			slog.ErrorContext(ctx, "failed to publish document.ingested event", "error", err)
		}
	}

	return doc, nil
}

func (s *Service) List(ctx context.Context) ([]Document, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("document registry not configured")
	}
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("document registry not configured")
	}
	return s.repo.Get(ctx, id)
}

// IngestFile ingests path and returns the new document id.
func (s *Service) IngestFile(ctx context.Context, path string) (string, error) {
	doc, err := s.Ingest(ctx, path)
	if err != nil {
		return "", err
	}
	return doc.ID, nil
}
