package reload

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gerdreiss/seroost/internal/analytics"
	"github.com/gerdreiss/seroost/internal/indexer/index"
	"github.com/gerdreiss/seroost/internal/indexer/runs"
	"github.com/gerdreiss/seroost/internal/indexer/segment"
	"github.com/gerdreiss/seroost/internal/searcher/executor"
	"github.com/gerdreiss/seroost/pkg/metrics"
)

func model(docs map[string][]string) *index.Model {
	b := index.NewBuilder()
	for doc, terms := range docs {
		b.Add(doc, slices.Values(terms))
	}
	return b.Build()
}

type fakeCache struct{ calls int }

func (f *fakeCache) Invalidate(context.Context) (int64, error) {
	f.calls++
	return 3, nil
}

func setup(t *testing.T) (string, *executor.Executor, *fakeCache, *metrics.Metrics, *[]analytics.ReloadEvent, *Reloader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.json")
	old := model(map[string][]string{"a.xhtml": {"CAT"}})
	require.NoError(t, segment.Save(old, path))

	exec := executor.New(old)
	c := &fakeCache{}
	m := metrics.New(prometheus.NewRegistry())
	var events []analytics.ReloadEvent
	r := New(path, exec, WithCache(c), WithMetrics(m), WithListener(func(ev analytics.ReloadEvent) {
		events = append(events, ev)
	}))
	return path, exec, c, m, &events, r
}

func TestReloadSwapsNewModel(t *testing.T) {
	path, exec, c, m, events, r := setup(t)
	next := model(map[string][]string{"a.xhtml": {"CAT"}, "b.xhtml": {"DOG", "DOG"}})
	require.NoError(t, segment.Save(next, path))

	res, err := r.Reload(context.Background(), TriggerManual)
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.Equal(t, 2, res.Documents)
	assert.Equal(t, next.Fingerprint(), exec.Model().Fingerprint())
	assert.Equal(t, 1, c.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelReloadsTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IndexDocuments))
	require.Len(t, *events, 1)
	assert.Equal(t, TriggerManual, (*events)[0].Trigger)
	assert.Empty(t, (*events)[0].Error)
}

func TestReloadUnchangedKeepsModel(t *testing.T) {
	_, exec, c, m, _, r := setup(t)
	before := exec.Model()

	res, err := r.Reload(context.Background(), TriggerSignal)
	require.NoError(t, err)

	assert.False(t, res.Changed)
	assert.Same(t, before, exec.Model())
	assert.Zero(t, c.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelReloadsTotal.WithLabelValues("unchanged")))
}

func TestReloadFailureKeepsServingOldModel(t *testing.T) {
	path, exec, c, m, events, r := setup(t)
	before := exec.Model()
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := r.Reload(context.Background(), TriggerManual)
	require.Error(t, err)

	assert.Same(t, before, exec.Model())
	assert.Zero(t, c.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelReloadsTotal.WithLabelValues("failure")))
	require.Len(t, *events, 1)
	assert.NotEmpty(t, (*events)[0].Error)
}

func TestHandleIndexComplete(t *testing.T) {
	path, exec, _, _, _, r := setup(t)
	next := model(map[string][]string{"z.xhtml": {"ZEBRA"}})
	require.NoError(t, segment.Save(next, path))
	handle := r.HandleIndexComplete()

	other, _ := json.Marshal(runs.IndexCompleteEvent{IndexPath: "/elsewhere/index.json"})
	require.NoError(t, handle(context.Background(), nil, other))
	assert.NotEqual(t, next.Fingerprint(), exec.Model().Fingerprint())

	require.NoError(t, handle(context.Background(), nil, []byte("garbage")))

	mine, _ := json.Marshal(runs.IndexCompleteEvent{IndexPath: path, Fingerprint: next.Fingerprint()})
	require.NoError(t, handle(context.Background(), []byte(path), mine))
	assert.Equal(t, next.Fingerprint(), exec.Model().Fingerprint())
}

func TestWatchReloadsOnSignal(t *testing.T) {
	path, exec, _, _, _, r := setup(t)
	next := model(map[string][]string{"z.xhtml": {"ZEBRA"}})
	require.NoError(t, segment.Save(next, path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.watch(ctx, ch)
	}()

	ch <- syscall.SIGHUP
	assert.Eventually(t, func() bool {
		return exec.Model().Fingerprint() == next.Fingerprint()
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestSamePath(t *testing.T) {
	assert.True(t, samePath("./data/../index.json", "index.json"))
	assert.False(t, samePath("", "index.json"))
	assert.False(t, samePath("a.json", "b.json"))
}
