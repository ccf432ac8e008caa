// Package indexer builds a frequency model from a directory of documents and
// persists it.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gerdreiss/seroost/internal/indexer/corpus"
	"github.com/gerdreiss/seroost/internal/indexer/extract"
	"github.com/gerdreiss/seroost/internal/indexer/index"
	"github.com/gerdreiss/seroost/internal/indexer/tokenizer"
	"github.com/gerdreiss/seroost/pkg/metrics"
	"github.com/gerdreiss/seroost/pkg/tracing"
)

var errInvalidUTF8 = errors.New("extracted text is not valid UTF-8")

// Report summarizes one build.
type Report struct {
	RunID       uuid.UUID
	Root        string
	Documents   int
	Failed      []corpus.Failure
	Terms       int
	Fingerprint string
	StartedAt   time.Time
	Duration    time.Duration
}

type options struct {
	workers int
	metrics *metrics.Metrics
	tracing bool
	logger  *slog.Logger
}

// Option configures BuildIndex.
type Option func(*options)

// WithWorkers sets how many documents are extracted concurrently.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithMetrics records document and build metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracing logs the span tree of each build at debug level.
func WithTracing(enabled bool) Option {
	return func(o *options) { o.tracing = enabled }
}

// BuildIndex discovers the documents under root, extracts and tokenizes them
// on a bounded worker pool, and folds them into a model in discovery order,
// so the result does not depend on scheduling. Documents that fail are
// logged, reported and left out; only an unreadable root or a cancelled ctx
// fails the build.
func BuildIndex(ctx context.Context, root string, filter corpus.Filter, ex extract.Extractor, opts ...Option) (*index.Model, *Report, error) {
	o := options{workers: 4, logger: slog.Default().With("component", "indexer")}
	for _, opt := range opts {
		opt(&o)
	}

	report := &Report{RunID: uuid.New(), Root: root, StartedAt: time.Now()}
	ctx, span := tracing.Start(ctx, "index.build")
	span.SetAttr("root", root)
	defer func() {
		span.End()
		if o.tracing {
			span.Log(o.logger)
		}
	}()

	_, discoverSpan := tracing.Start(ctx, "discover")
	paths, failures, err := corpus.Discover(ctx, root, filter)
	discoverSpan.SetAttr("documents", len(paths))
	discoverSpan.End()
	if err != nil {
		return nil, nil, err
	}
	for _, f := range failures {
		o.logger.Warn("skipping unreadable entry", "path", f.Path, "error", f.Err)
	}
	report.Failed = append(report.Failed, failures...)
	o.logger.Info("corpus discovered", "root", root, "documents", len(paths), "run_id", report.RunID)

	_, extractSpan := tracing.Start(ctx, "extract")
	tables, docErrs, err := extractAll(ctx, paths, ex, o.workers)
	extractSpan.End()
	if err != nil {
		return nil, nil, err
	}

	_, foldSpan := tracing.Start(ctx, "fold")
	b := index.NewBuilder()
	for i, path := range paths {
		if docErrs[i] != nil {
			o.logger.Warn("skipping document", "path", path, "error", docErrs[i])
			report.Failed = append(report.Failed, corpus.Failure{Path: path, Err: docErrs[i]})
			if o.metrics != nil {
				o.metrics.DocsFailedTotal.Inc()
			}
			continue
		}
		b.AddTable(path, tables[i])
		o.logger.Debug("document indexed", "path", path, "terms", len(tables[i]))
	}
	m := b.Build()
	foldSpan.SetAttr("vocabulary", m.Vocabulary())
	foldSpan.End()

	report.Documents = m.Len()
	report.Terms = m.Vocabulary()
	report.Fingerprint = m.Fingerprint()
	report.Duration = time.Since(report.StartedAt)
	if o.metrics != nil {
		o.metrics.DocsIndexedTotal.Add(float64(m.Len()))
		o.metrics.IndexBuildDuration.Observe(report.Duration.Seconds())
		o.metrics.IndexDocuments.Set(float64(m.Len()))
		o.metrics.IndexTerms.Set(float64(m.Vocabulary()))
	}
	span.SetAttr("documents", report.Documents)
	span.SetAttr("failed", len(report.Failed))
	return m, report, nil
}

// extractAll returns one TermFreq per path, or the document's error at the
// same position.
func extractAll(ctx context.Context, paths []string, ex extract.Extractor, workers int) ([]index.TermFreq, []error, error) {
	tables := make([]index.TermFreq, len(paths))
	docErrs := make([]error, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			text, err := ex.Extract(gctx, path)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				docErrs[i] = err
				return nil
			}
			if !utf8.ValidString(text) {
				docErrs[i] = errInvalidUTF8
				return nil
			}
			tables[i] = index.Count(tokenizer.NewLexer([]rune(text)).All())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("extracting documents: %w", err)
	}
	return tables, docErrs, nil
}
