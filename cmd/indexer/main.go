package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gerdreiss/seroost/internal/indexer"
	"github.com/gerdreiss/seroost/internal/indexer/runs"
	"github.com/gerdreiss/seroost/pkg/config"
	"github.com/gerdreiss/seroost/pkg/kafka"
	"github.com/gerdreiss/seroost/pkg/logger"
	"github.com/gerdreiss/seroost/pkg/metrics"
	"github.com/gerdreiss/seroost/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	dir := flag.String("dir", "", "corpus directory to index (overrides indexer.corpusDir)")
	indexPath := flag.String("index", "", "index file to write (overrides indexer.indexPath)")
	workers := flag.Int("workers", 0, "extraction workers (overrides indexer.workers)")
	flag.Parse()

	cfg, err := config.LoadOptional(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dir != "" {
		cfg.Indexer.CorpusDir = *dir
	}
	if *indexPath != "" {
		cfg.Indexer.IndexPath = *indexPath
	}
	if *workers > 0 {
		cfg.Indexer.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the summary
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := indexer.Deps{Tracing: cfg.Tracing.Enabled}
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.New(nil)
		shutdown := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdown(context.Background())
	}

	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, run will not be recorded", "error", err)
		} else {
			defer db.Close()
			store := runs.NewStore(db)
			if err := store.Migrate(ctx); err != nil {
				slog.Warn("run registry migration failed, run will not be recorded", "error", err)
			} else {
				deps.Runs = store
			}
		}
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		deps.Publisher = producer
	}

	slog.Info("indexing corpus",
		"dir", cfg.Indexer.CorpusDir,
		"index", cfg.Indexer.IndexPath,
		"workers", cfg.Indexer.Workers,
	)
	report, err := indexer.IndexFolder(ctx, cfg.Indexer, deps)
	if err != nil {
		slog.Error("indexing failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("indexed %d documents (%d terms) from %s into %s in %v\n",
		report.Documents, report.Terms, report.Root, cfg.Indexer.IndexPath, report.Duration.Round(time.Millisecond))
	if n := len(report.Failed); n > 0 {
		fmt.Printf("skipped %d documents:\n", n)
		for _, f := range report.Failed {
			fmt.Printf("  %s: %v\n", f.Path, f.Err)
		}
	}
}
