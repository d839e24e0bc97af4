package job

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"docqa/internal/config"
)

var (
	ErrEventsDisabled = errors.New("event publishing is disabled")
	ErrPublishTimeout = errors.New("timeout waiting for NSQ publish")
)

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo           Repository
	pub            EventPublisher
	publishTimeout time.Duration
}

// NewService builds the failed-job service. pub may be nil, in which case
// jobs can be recorded and listed but not retried.
func NewService(repo Repository, pub EventPublisher) *Service {
	return &Service{repo: repo, pub: pub, publishTimeout: 5 * time.Second}
}

// RecordFailure stores a message the ingest worker could not process.
func (s *Service) RecordFailure(ctx context.Context, path string, payload []byte, attempts int, cause error) error {
	j := &Job{
		Path:    path,
		Topic:   config.TopicIngestFile,
		Payload: json.RawMessage(payload),
		Retries: attempts,
	}
	if cause != nil {
		j.Error = cause.Error()
	}
	if err := s.repo.Save(ctx, j); err != nil {
		return err
	}
	slog.InfoContext(ctx, "failed ingestion recorded", "job_id", j.ID, "path", path)
	return nil
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Retry republishes the job's payload to its topic and removes the job.
// The returned job is the one that was requeued.
func (s *Service) Retry(ctx context.Context, id string) (*Job, error) {
	if s.pub == nil {
		return nil, ErrEventsDisabled
	}

	j, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	topic := j.Topic
	if topic == "" {
		topic = config.TopicIngestFile
	}

	// nsq.Producer.Publish has no context; bound it here.
	done := make(chan error, 1)
	go func() { done <- s.pub.Publish(topic, j.Payload) }()
	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
	case <-time.After(s.publishTimeout):
		return nil, ErrPublishTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	j.Topic = topic

	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "failed ingestion requeued", "job_id", j.ID, "path", j.Path, "topic", topic)
	return j, nil
}
