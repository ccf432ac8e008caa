// Package reload replaces the served model with the index file on disk,
// on demand, on SIGHUP, or when the indexer announces a finished run.
package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gerdreiss/seroost/internal/analytics"
	"github.com/gerdreiss/seroost/internal/indexer/index"
	"github.com/gerdreiss/seroost/internal/indexer/runs"
	"github.com/gerdreiss/seroost/internal/indexer/segment"
	"github.com/gerdreiss/seroost/pkg/kafka"
	"github.com/gerdreiss/seroost/pkg/metrics"
)

// Reload triggers, recorded on reload events.
const (
	TriggerManual = "manual"
	TriggerSignal = "signal"
	TriggerKafka  = "index_complete"
)

// Swapper serves a new model.
type Swapper interface {
	Model() *index.Model
	Swap(m *index.Model) *index.Model
}

// Invalidator drops cached results.
type Invalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

// Result describes the model served after a reload.
type Result struct {
	Documents   int    `json:"documents"`
	Terms       int    `json:"terms"`
	Fingerprint string `json:"fingerprint"`
	Changed     bool   `json:"changed"`
}

// Reloader loads path and swaps it in. Reloads are serialized.
type Reloader struct {
	mu       sync.Mutex
	path     string
	exec     Swapper
	cache    Invalidator
	metrics  *metrics.Metrics
	onReload func(analytics.ReloadEvent)
	load     func(string) (*index.Model, error)
	logger   *slog.Logger
}

type Option func(*Reloader)

// WithCache invalidates c after every model change.
func WithCache(c Invalidator) Option { return func(r *Reloader) { r.cache = c } }

func WithMetrics(m *metrics.Metrics) Option { return func(r *Reloader) { r.metrics = m } }

// WithListener calls fn after every reload attempt, failed ones included.
func WithListener(fn func(analytics.ReloadEvent)) Option {
	return func(r *Reloader) { r.onReload = fn }
}

func New(path string, exec Swapper, opts ...Option) *Reloader {
	r := &Reloader{
		path:   path,
		exec:   exec,
		load:   segment.Load,
		logger: slog.Default().With("component", "model-reloader"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the index file being served.
func (r *Reloader) Path() string { return r.path }

// Reload loads the index file and serves it. On any failure the current
// model keeps serving. A file whose fingerprint matches the served model is
// not swapped.
func (r *Reloader) Reload(ctx context.Context, trigger string) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	ev := analytics.ReloadEvent{
		Type:      analytics.EventReload,
		IndexPath: r.path,
		Trigger:   trigger,
	}
	defer func() {
		ev.Timestamp = time.Now().UTC()
		if r.onReload != nil {
			r.onReload(ev)
		}
	}()

	m, err := r.load(r.path)
	if err != nil {
		r.observe("failure")
		ev.Error = err.Error()
		r.logger.Error("model reload failed, keeping current model", "path", r.path, "trigger", trigger, "error", err)
		return Result{}, fmt.Errorf("reloading %s: %w", r.path, err)
	}

	res := Result{Documents: m.Len(), Terms: m.Vocabulary(), Fingerprint: m.Fingerprint()}
	ev.Documents, ev.Terms, ev.Fingerprint = res.Documents, res.Terms, res.Fingerprint

	if cur := r.exec.Model(); cur != nil && cur.Fingerprint() == res.Fingerprint {
		r.observe("unchanged")
		r.logger.Info("index unchanged, model kept", "path", r.path, "trigger", trigger)
		return res, nil
	}

	r.exec.Swap(m)
	res.Changed = true
	r.observe("success")
	if r.metrics != nil {
		r.metrics.IndexDocuments.Set(float64(res.Documents))
		r.metrics.IndexTerms.Set(float64(res.Terms))
	}
	if r.cache != nil {
		if n, err := r.cache.Invalidate(ctx); err != nil {
			r.logger.Warn("cache invalidation after reload failed", "error", err)
		} else {
			r.logger.Debug("cache invalidated", "keys", n)
		}
	}
	r.logger.Info("model reloaded",
		"path", r.path,
		"trigger", trigger,
		"documents", res.Documents,
		"terms", res.Terms,
		"duration", time.Since(start),
	)
	return res, nil
}

func (r *Reloader) observe(status string) {
	if r.metrics != nil {
		r.metrics.ModelReloadsTotal.WithLabelValues(status).Inc()
	}
}

// HandleIndexComplete reloads when a finished run wrote the served file.
// Malformed events are logged and skipped; reload failures are not retried
// because the current model keeps serving.
func (r *Reloader) HandleIndexComplete() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[runs.IndexCompleteEvent](value)
		if err != nil {
			r.logger.Error("failed to decode index.complete event", "key", string(key), "error", err)
			return nil
		}
		if !samePath(ev.IndexPath, r.path) {
			r.logger.Debug("ignoring index.complete for another index", "index_path", ev.IndexPath)
			return nil
		}
		if cur := r.exec.Model(); cur != nil && ev.Fingerprint != "" && cur.Fingerprint() == ev.Fingerprint {
			return nil
		}
		_, _ = r.Reload(ctx, TriggerKafka)
		return nil
	}
}

// WatchSignals reloads on every SIGHUP until ctx is done.
func (r *Reloader) WatchSignals(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	defer signal.Stop(ch)
	r.watch(ctx, ch)
}

func (r *Reloader) watch(ctx context.Context, ch <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			r.logger.Info("SIGHUP received, reloading model")
			_, _ = r.Reload(ctx, TriggerSignal)
		}
	}
}

func samePath(a, b string) bool {
	if a == "" {
		return false
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if err := errors.Join(errA, errB); err != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
