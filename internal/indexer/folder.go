package indexer

import (
	"context"
	"log/slog"
	"time"

	"github.com/gerdreiss/seroost/internal/indexer/corpus"
	"github.com/gerdreiss/seroost/internal/indexer/extract"
	"github.com/gerdreiss/seroost/internal/indexer/runs"
	"github.com/gerdreiss/seroost/internal/indexer/segment"
	"github.com/gerdreiss/seroost/pkg/config"
	"github.com/gerdreiss/seroost/pkg/kafka"
	"github.com/gerdreiss/seroost/pkg/metrics"
	"github.com/gerdreiss/seroost/pkg/tracing"
)

// RunRecorder stores finished runs.
type RunRecorder interface {
	Record(ctx context.Context, run runs.Run) error
}

// Publisher announces finished runs.
type Publisher interface {
	Publish(ctx context.Context, events ...kafka.Event) error
}

// Deps are the optional collaborators of IndexFolder. Nil fields are
// skipped; a nil Extractor means extract.Default.
type Deps struct {
	Extractor extract.Extractor
	Runs      RunRecorder
	Publisher Publisher
	Metrics   *metrics.Metrics
	Tracing   bool
}

// IndexFolder builds a model from cfg.CorpusDir and saves it to
// cfg.IndexPath. Failing to save is returned as an error and nothing is
// recorded or published. Recording and publishing failures are only logged.
func IndexFolder(ctx context.Context, cfg config.IndexerConfig, deps Deps) (*Report, error) {
	logger := slog.Default().With("component", "indexer")
	ex := deps.Extractor
	if ex == nil {
		ex = extract.Default(cfg.MaxDocumentBytes)
	}

	m, report, err := BuildIndex(ctx, cfg.CorpusDir, corpus.ExtensionFilter(cfg.Extensions...), ex,
		WithWorkers(cfg.Workers),
		WithMetrics(deps.Metrics),
		WithTracing(deps.Tracing),
	)
	if err != nil {
		return nil, err
	}

	_, span := tracing.Start(ctx, "index.save")
	span.SetAttr("path", cfg.IndexPath)
	err = segment.Save(m, cfg.IndexPath)
	span.End()
	if deps.Tracing {
		span.Log(logger)
	}
	if err != nil {
		logger.Error("saving index failed", "path", cfg.IndexPath, "error", err)
		return report, err
	}
	logger.Info("index saved",
		"path", cfg.IndexPath,
		"documents", report.Documents,
		"terms", report.Terms,
		"failed", len(report.Failed),
		"duration", report.Duration.Round(time.Millisecond),
	)

	run := runFromReport(report, cfg.IndexPath)
	if deps.Runs != nil {
		if err := deps.Runs.Record(ctx, run); err != nil {
			logger.Error("recording run failed", "run_id", run.ID, "error", err)
		}
	}
	if deps.Publisher != nil {
		ev := run.Event()
		if err := deps.Publisher.Publish(ctx, kafka.Event{Key: ev.IndexPath, Value: ev}); err != nil {
			logger.Error("publishing index.complete failed", "run_id", run.ID, "error", err)
		}
	}
	return report, nil
}

func runFromReport(r *Report, indexPath string) runs.Run {
	run := runs.Run{
		ID:          r.RunID,
		CorpusRoot:  r.Root,
		IndexPath:   indexPath,
		Documents:   r.Documents,
		Terms:       r.Terms,
		Fingerprint: r.Fingerprint,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.StartedAt.Add(r.Duration),
	}
	for _, f := range r.Failed {
		run.Failures = append(run.Failures, runs.Failure{Document: f.Path, Error: f.Err.Error()})
	}
	return run
}
