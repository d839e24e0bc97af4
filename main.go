package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsqio/go-nsq"

	"docqa/features/document"
	"docqa/internal/app"
	"docqa/internal/config"
	"docqa/internal/logger"
)

func main() {
	log := logger.New(os.Stdout, slog.LevelInfo)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	var pub document.EventPublisher
	if deps.NSQProducer != nil {
		pub = deps.NSQProducer
	}

	application, err := app.New(cfg, deps.DB, deps.Vectors, deps.Embedder, pub, &app.Options{RegistryErr: deps.RegistryErr})
	if err != nil {
		return err
	}
	defer application.Close()

	if cfg.EnableIngestWorker {
		nsqCfg := nsq.NewConfig()
		if cfg.IngestMaxAttempts > 0 {
			nsqCfg.MaxAttempts = uint16(cfg.IngestMaxAttempts)
		}
		consumer, err := nsq.NewConsumer(config.TopicIngestFile, config.ChannelIngestWorker, nsqCfg)
		if err != nil {
			return err
		}
		consumer.SetLogger(slog.NewLogLogger(log.Handler(), slog.LevelWarn), nsq.LogLevelWarning)
		consumer.AddHandler(application.IngestConsumer)
		if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
			slog.Error("failed to connect to NSQLookupd", "error", err)
		} else {
			slog.Info("ingest worker connected", "topic", config.TopicIngestFile)
		}
		defer consumer.Stop()
	}

	return application.Run(ctx)
}
