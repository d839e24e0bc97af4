package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nsqio/go-nsq"
	"github.com/spf13/cobra"

	"docqa/features/document"
	"docqa/internal/app"
	"docqa/internal/config"
	"docqa/internal/ingest"
	"docqa/internal/loader"
	"docqa/internal/logger"
	"docqa/internal/text"
	"docqa/internal/vector"
	"docqa/internal/worker"
)

type options struct {
	recursive  bool
	dryRun     bool
	queue      bool
	noRegistry bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "docqa-ingest [paths...]",
		Short: "Ingest documents into the question-answering index",
		Long: `Loads pdf, docx, doc, txt, csv, eml and html files, splits them into
overlapping chunks and stores their embeddings. Directories are expanded;
unsupported files are skipped.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelInfo
			}
			slog.SetDefault(logger.New(cmd.ErrOrStderr(), level))
			return run(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", false, "descend into subdirectories")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "list the files that would be ingested and exit")
	cmd.Flags().BoolVar(&opts.queue, "queue", false, "publish ingest.file messages instead of ingesting in process")
	cmd.Flags().BoolVar(&opts.noRegistry, "no-registry", false, "do not record documents in Postgres")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log progress")
	return cmd
}

func run(cmd *cobra.Command, opts *options, args []string) error {
	registry := loader.Default(loader.ExecRunner())
	files, skipped, err := collectFiles(args, opts.recursive, registry)
	if err != nil {
		return err
	}
	for _, s := range skipped {
		fmt.Fprintf(cmd.ErrOrStderr(), "skip %s: unsupported file type\n", s)
	}

	if opts.dryRun {
		for _, f := range files {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return nil
	}
	if len(files) == 0 {
		return fmt.Errorf("no supported files found")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.queue {
		return publish(cmd, cfg, files)
	}
	return ingestFiles(ctx, cmd, cfg, opts, registry, files)
}

func ingestFiles(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts *options, registry *loader.Registry, files []string) error {
	var (
		repo     document.Repository
		vectors  *vector.Provider
		embedder vector.Embedder
	)
	if opts.noRegistry {
		e, err := app.NewEmbedder(cfg)
		if err != nil {
			return err
		}
		if c, ok := e.(io.Closer); ok {
			defer c.Close()
		}
		embedder = e
		vectors = vector.NewProvider(app.WeaviateFactory(cfg))
	} else {
		deps, err := app.Bootstrap(ctx, cfg)
		if err != nil {
			return err
		}
		defer deps.Close()
		repo = document.NewPostgresRepo(deps.DB)
		vectors, embedder = deps.Vectors, deps.Embedder
	}

	splitter, err := text.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return err
	}
	pipeline := ingest.NewPipeline(registry, splitter, vector.NewIndex(vectors, embedder))
	svc := document.NewService(pipeline, repo, nil)

	failed := 0
	for _, f := range files {
		doc, err := svc.Ingest(ctx, f)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "fail %s: %v\n", f, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d chunks\n", doc.ID, f, doc.ChunkCount)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func publish(cmd *cobra.Command, cfg *config.Config, files []string) error {
	producer, err := nsq.NewProducer(cfg.NSQDHost, nsq.NewConfig())
	if err != nil {
		return err
	}
	defer producer.Stop()

	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		body, _ := json.Marshal(worker.IngestFilePayload{Path: abs})
		if err := producer.Publish(config.TopicIngestFile, body); err != nil {
			return fmt.Errorf("publish %s: %w", f, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued %s\n", abs)
	}
	return nil
}

// collectFiles expands args into the supported files they name. Paths are
// returned in walk order; unsupported regular files are reported apart.
func collectFiles(args []string, recursive bool, registry *loader.Registry) (files, skipped []string, err error) {
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, nil, err
		}
		if !info.IsDir() {
			if registry.Supports(filepath.Ext(arg)) {
				files = append(files, arg)
			} else {
				skipped = append(skipped, arg)
			}
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && !recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if registry.Supports(filepath.Ext(path)) {
				files = append(files, path)
			} else {
				skipped = append(skipped, path)
			}
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
	}
	return files, skipped, nil
}
