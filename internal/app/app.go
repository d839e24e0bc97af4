package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"docqa/features/document"
	"docqa/features/health"
	"docqa/features/job"
	"docqa/features/query"
	"docqa/features/stats"
	"docqa/internal/adapter/khoj"
	"docqa/internal/adapter/reranker"
	"docqa/internal/config"
	"docqa/internal/ingest"
	"docqa/internal/loader"
	"docqa/internal/middleware"
	"docqa/internal/qa"
	"docqa/internal/text"
	"docqa/internal/vector"
	"docqa/internal/worker"
)

// ChatClient is the chat service as seen by the query chain and health
// check.
type ChatClient interface {
	qa.ChatClient
	Health(ctx context.Context) error
}

// Options overrides collaborators, mostly for tests.
type Options struct {
	Chat   ChatClient
	Runner loader.CommandRunner

	// RegistryErr is why the registry could not be opened. With a nil db
	// it is reported by the database health check.
	RegistryErr error
}

type App struct {
	Handler        http.Handler
	Pipeline       *ingest.Pipeline
	Documents      *document.Service
	IngestConsumer *worker.IngestConsumer

	port    int
	closers []io.Closer
}

// New assembles handlers and routes. db may be nil, which disables the
// document registry; pub may be nil, which disables events.
func New(
	cfg *config.Config,
	db *sql.DB,
	vectors *vector.Provider,
	embedder vector.Embedder,
	pub document.EventPublisher,
	opts *Options,
) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}
	a := &App{port: cfg.ServerPort}

	// Ingestion
	runner := opts.Runner
	if runner == nil {
		runner = loader.ExecRunner()
	}
	splitter, err := text.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("splitter: %w", err)
	}
	index := vector.NewIndex(vectors, embedder)
	a.Pipeline = ingest.NewPipeline(loader.Default(runner), splitter, index)

	// Feature: Document
	var docRepo document.Repository
	var statsRepo stats.DocumentRepo
	if db != nil {
		repo := document.NewPostgresRepo(db)
		docRepo, statsRepo = repo, repo
	}
	a.Documents = document.NewService(a.Pipeline, docRepo, pub)
	docHandler := document.NewHandler(a.Documents, cfg.UploadDir, cfg.MaxUploadSizeMB<<20)

	// Feature: Job (failed ingestions; needs the database)
	var jobHandler *job.Handler
	var consumerOpts []worker.Option
	var jobRepo *job.PostgresRepo
	if db != nil {
		jobRepo = job.NewPostgresRepo(db)
		var jobPub job.EventPublisher
		if pub != nil {
			jobPub = pub
		}
		jobService := job.NewService(jobRepo, jobPub)
		jobHandler = job.NewHandler(jobService)
		consumerOpts = append(consumerOpts, worker.WithFailureRecorder(jobService, cfg.IngestMaxAttempts))
	}
	a.IngestConsumer = worker.NewIngestConsumer(a.Documents, consumerOpts...)

	// Feature: Query
	chat := opts.Chat
	if chat == nil {
		chat = khoj.NewClient(
			khoj.WithBaseURL(cfg.ChatServiceURL),
			khoj.WithTimeout(time.Duration(cfg.ChatTimeoutSeconds)*time.Second),
		)
	}

	chainOpts := []qa.Option{
		qa.WithTopK(cfg.TopK),
		qa.WithContextMode(cfg.ChatContextMode),
	}
	if rr := reranker.NewClient(cfg.RerankProvider, cfg.RerankAPIKey); rr.Enabled() {
		chainOpts = append(chainOpts, qa.WithReranker(rr))
	}
	queryLogger, closer, err := qa.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = qa.NewQueryLogger(os.Stdout)
	} else {
		a.closers = append(a.closers, closer)
	}
	chainOpts = append(chainOpts, qa.WithQueryLogger(queryLogger))

	queryHandler := query.NewHandler(qa.NewChain(index, chat, chainOpts...))

	// Feature: Health
	healthHandler := health.NewHandler().
		Register("vector_store", index.Ready).
		Register("chat", chat.Health)
	switch {
	case db != nil:
		healthHandler.Register("database", db.PingContext)
	case opts.RegistryErr != nil:
		registryErr := opts.RegistryErr
		healthHandler.Register("database", func(context.Context) error { return registryErr })
	}

	// Feature: Stats
	statsHandler := stats.NewHandler(statsRepo, index)
	if jobRepo != nil {
		statsHandler.WithFailedJobs(jobRepo)
	}

	// Routes
	route := func(h http.HandlerFunc) http.Handler {
		return middleware.CorrelationID(middleware.CORS(h))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health", route(healthHandler.Health))
	mux.Handle("POST /upload", route(docHandler.Upload))
	mux.Handle("POST /query", route(queryHandler.Query))
	mux.Handle("GET /documents", route(docHandler.List))
	mux.Handle("GET /documents/{id}", route(docHandler.Get))
	mux.Handle("GET /stats", route(statsHandler.GetStats))
	if jobHandler != nil {
		mux.Handle("GET /jobs/failed", route(jobHandler.List))
		mux.Handle("POST /jobs/{id}/retry", route(jobHandler.Retry))
	}
	mux.Handle("OPTIONS /", route(func(http.ResponseWriter, *http.Request) {}))

	a.Handler = mux
	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.port),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			slog.Warn("failed to close resource", "error", err)
		}
	}
}
