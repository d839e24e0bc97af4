package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"docqa/internal/ingest"
	"docqa/internal/middleware"
)

// FileIngester ingests a file on disk and returns its document id.
type FileIngester interface {
	IngestFile(ctx context.Context, path string) (string, error)
}

// FailureRecorder keeps messages the consumer stopped retrying.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, path string, payload []byte, attempts int, cause error) error
}

// IngestConsumer handles ingest.file messages.
type IngestConsumer struct {
	ingester    FileIngester
	timeout     time.Duration
	failures    FailureRecorder
	maxAttempts uint16
}

type Option func(*IngestConsumer)

// WithFailureRecorder records permanent failures, and transient ones once a
// message has been delivered maxAttempts times.
func WithFailureRecorder(r FailureRecorder, maxAttempts int) Option {
	return func(c *IngestConsumer) {
		c.failures = r
		if maxAttempts > 0 {
			c.maxAttempts = uint16(maxAttempts)
		}
	}
}

func NewIngestConsumer(i FileIngester, opts ...Option) *IngestConsumer {
	c := &IngestConsumer{ingester: i, timeout: 5 * time.Minute, maxAttempts: 5}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (h *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestFilePayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		// Poison Pill: Invalid JSON, don't retry
		slog.Error("poison pill: invalid json", "error", err)
		return nil
	}
	if payload.Path == "" {
		slog.Error("poison pill: missing path")
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	docID, err := h.ingester.IngestFile(ctx, payload.Path)
	if err != nil {
		if permanent(err) {
			slog.ErrorContext(ctx, "ingestion rejected, dropping message", "error", err, "path", payload.Path)
			h.record(ctx, m, payload.Path, err)
			return nil
		}
		if h.failures != nil && m.Attempts >= h.maxAttempts {
			slog.ErrorContext(ctx, "ingestion failed, giving up", "error", err, "path", payload.Path, "attempts", m.Attempts)
			h.record(ctx, m, payload.Path, err)
			return nil
		}
		slog.ErrorContext(ctx, "ingestion failed", "error", err, "path", payload.Path)
		return err // Retry
	}

	slog.InfoContext(middleware.WithDocumentID(ctx, docID), "file ingested from queue", "path", payload.Path)
	return nil
}

func (h *IngestConsumer) record(ctx context.Context, m *nsq.Message, path string, cause error) {
	if h.failures == nil {
		return
	}
	// The ingest context may already be spent.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := h.failures.RecordFailure(ctx, path, m.Body, int(m.Attempts), cause); err != nil {
		slog.ErrorContext(ctx, "failed to record failed ingestion", "error", err, "path", path)
	}
}

// permanent reports errors that will not go away on redelivery.
func permanent(err error) bool {
	return errors.Is(err, ingest.ErrUnsupportedType) || errors.Is(err, ingest.ErrEmptyDocument)
}
