package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"docqa/internal/adapter/gemini"
	"docqa/internal/adapter/openai"
	wstore "docqa/internal/adapter/weaviate"
	"docqa/internal/config"
	"docqa/internal/vector"
)

type Dependencies struct {
	// DB is nil when the registry is disabled or could not be reached;
	// RegistryErr holds the reason in the latter case.
	DB          *sql.DB
	RegistryErr error

	Vectors  *vector.Provider
	Embedder vector.Embedder

	// NSQProducer is nil unless ENABLE_EVENTS is set.
	NSQProducer *nsq.Producer
}

// Close releases everything Bootstrap opened.
func (d *Dependencies) Close() {
	if d.NSQProducer != nil {
		d.NSQProducer.Stop()
	}
	if c, ok := d.Embedder.(io.Closer); ok {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close embedder", "error", err)
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	// The registry is optional; without it uploads and queries still work.
	var db *sql.DB
	var registryErr error
	if cfg.RegistryEnabled {
		db, registryErr = openRegistry(ctx, cfg, retryDelay)
		if registryErr != nil {
			slog.Error("document registry unavailable, continuing without it", "error", registryErr)
		}
	}

	embedder, err := NewEmbedder(cfg)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("embedder error: %w", err)
	}

	// The store handle is created lazily; warming it here only saves the
	// first request the connection cost.
	vectors := vector.NewProvider(WeaviateFactory(cfg))
	if err := WarmUpWithRetry(ctx, vectors, cfg.BootstrapRetryAttempts, retryDelay); err != nil {
		slog.Warn("vector store not reachable yet, will retry on first use", "error", err)
	}

	deps := &Dependencies{DB: db, RegistryErr: registryErr, Vectors: vectors, Embedder: embedder}

	if cfg.EnableEvents {
		producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("nsq producer error: %w", err)
		}
		deps.NSQProducer = producer
	}
	if cfg.EnableEvents || cfg.EnableIngestWorker {
		createTopics(cfg.NSQDHTTP)
	}

	return deps, nil
}

// openRegistry connects to Postgres, retrying the ping, and applies the
// migrations.
func openRegistry(ctx context.Context, cfg *config.Config, retryDelay time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err := db.PingContext(ctx); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1)
		time.Sleep(retryDelay)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		db.Close()
		return nil, fmt.Errorf("migration up error: %w", err)
	}
	slog.Info("migrations applied successfully")
	return db, nil
}

// NewEmbedder builds the embedding client selected by EMBEDDING_PROVIDER.
func NewEmbedder(cfg *config.Config) (vector.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "openai":
		e, err := openai.NewEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel, cfg.EmbeddingDimension)
		if err != nil {
			return nil, err
		}
		return e, nil
	case "gemini", "":
		return gemini.NewEmbedder(cfg.GeminiAPIKey, cfg.EmbeddingModel), nil
	}
	return nil, fmt.Errorf("%w: EMBEDDING_PROVIDER %q", config.ErrInvalid, cfg.EmbeddingProvider)
}

// WeaviateFactory connects to Weaviate, waits for readiness and makes sure
// the chunk class exists.
func WeaviateFactory(cfg *config.Config) vector.Factory {
	return func(ctx context.Context) (vector.Store, error) {
		client, err := weaviate.NewClient(weaviate.Config{Host: cfg.VectorAddr(), Scheme: cfg.VectorScheme})
		if err != nil {
			return nil, fmt.Errorf("weaviate client error: %w", err)
		}
		store := wstore.NewStore(client, cfg.EmbeddingDimension)
		if err := store.Ready(ctx); err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("weaviate schema error: %w", err)
		}
		return store, nil
	}
}

type warmer interface {
	Get(ctx context.Context) (vector.Store, error)
}

// WarmUpWithRetry initialises the store handle, retrying with a fixed delay.
func WarmUpWithRetry(ctx context.Context, w warmer, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if _, err = w.Get(ctx); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}

func createTopics(nsqdHTTP string) {
	create := func(topic string) {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		create(config.TopicIngestFile)
		create(config.TopicDocumentIngested)
	}()
}
