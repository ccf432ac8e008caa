package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/gerdreiss/seroost/internal/indexer/runs"
	"github.com/gerdreiss/seroost/internal/indexer/segment"
	"github.com/gerdreiss/seroost/pkg/config"
	"github.com/gerdreiss/seroost/pkg/logger"
	"github.com/gerdreiss/seroost/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	indexPath := flag.String("index", "", "index file to check (overrides indexer.indexPath)")
	validate := flag.Bool("validate", false, "verify the document frequencies agree with the term frequencies")
	recent := flag.Int("runs", 0, "list the N most recent indexing runs from postgres")
	flag.Parse()

	cfg, err := config.LoadOptional(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *indexPath != "" {
		cfg.Indexer.IndexPath = *indexPath
	}
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	if err := check(cfg.Indexer.IndexPath, *validate); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	if *recent > 0 {
		if err := listRuns(cfg.Postgres, *recent); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
}

func check(path string, validate bool) error {
	m, err := segment.Load(path)
	if err != nil {
		return err
	}
	fmt.Printf("%s contains %d files\n", path, m.Len())

	info, err := segment.Stat(path)
	if err == nil {
		fmt.Printf("  terms: %d, size: %d bytes, compressed: %t, modified: %s\n",
			m.Vocabulary(), info.Size, info.Compressed, info.ModTime.Format(time.RFC3339))
	}
	fmt.Printf("  fingerprint: %s\n", m.Fingerprint())

	if validate {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%s is inconsistent: %w", path, err)
		}
		fmt.Println("  validation: ok")
	}
	return nil
}

func listRuns(cfg config.PostgresConfig, n int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	recent, err := runs.NewStore(db).Recent(ctx, n)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tFINISHED\tDOCUMENTS\tFAILED\tTERMS\tINDEX")
	for _, r := range recent {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.FinishedAt.Local().Format(time.DateTime), r.Documents, r.Failed, r.Terms, r.IndexPath)
	}
	return tw.Flush()
}
