package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gerdreiss/seroost/pkg/kafka"
)

func TestAggregatorStats(t *testing.T) {
	a := NewAggregator()
	a.Record(SearchEvent{Terms: []string{"CAT"}, TotalHits: 0, LatencyMs: 1})
	a.Record(SearchEvent{Terms: []string{"CAT"}, TotalHits: 0, LatencyMs: 3, CacheHit: true})
	a.Record(SearchEvent{Terms: []string{"SAT"}, TotalHits: 1, LatencyMs: 2})
	a.Record(SearchEvent{Terms: nil, LatencyMs: 0})
	a.RecordReload(ReloadEvent{Trigger: "signal", Error: "corrupt"})

	s := a.Stats()
	assert.Equal(t, int64(4), s.TotalSearches)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(3), s.CacheMisses)
	assert.Equal(t, int64(2), s.ZeroResultCount)
	assert.Equal(t, []QueryCount{{"CAT", 2}, {"SAT", 1}}, s.TopQueries)
	assert.Equal(t, []QueryCount{{"CAT", 2}}, s.ZeroResultQueries)
	assert.InDelta(t, 1.5, s.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(2), s.P50LatencyMs)
	assert.Equal(t, int64(3), s.P99LatencyMs)
	assert.Equal(t, int64(1), s.FailedReloads)
	require.NotNil(t, s.LastReload)
	assert.Equal(t, "signal", s.LastReload.Trigger)
}

func TestAggregatorBoundsLatencySamples(t *testing.T) {
	a := NewAggregator()
	for i := range maxLatencySamples + 10 {
		a.Record(SearchEvent{LatencyMs: int64(i)})
	}
	assert.Len(t, a.latencies, maxLatencySamples)
	assert.Equal(t, int64(maxLatencySamples+10), a.Stats().TotalSearches)
}

func TestHandlerStats(t *testing.T) {
	a := NewAggregator()
	a.Record(SearchEvent{Terms: []string{"X"}, TotalHits: 1})

	rec := httptest.NewRecorder()
	NewHandler(a).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var s AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, int64(1), s.TotalSearches)
}

func TestHandlerStatsTop(t *testing.T) {
	a := NewAggregator()
	for _, q := range []string{"A", "B", "B", "C", "C", "C"} {
		a.Record(SearchEvent{Terms: []string{q}, TotalHits: 1})
	}
	h := NewHandler(a)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var s AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, []QueryCount{{"C", 3}, {"B", 2}}, s.TopQueries)

	rec = httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	calls  int
}

func (f *fakePublisher) Publish(_ context.Context, events ...kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.events = append(f.events, events...)
	return nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestCollectorBatchesAndFlushesOnClose(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 100, 2, time.Hour)
	c.Start(context.Background())

	c.Track(SearchEvent{Type: EventSearch, Query: "a"})
	c.Track(SearchEvent{Type: EventSearch, Query: "b"})
	assert.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 5*time.Millisecond)

	c.TrackReload(ReloadEvent{Type: EventReload})
	c.Close()

	assert.Equal(t, 3, pub.count())
	assert.Equal(t, string(EventReload), pub.events[2].Key)
}

func TestCollectorFlushesOnCancel(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 100, 50, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	c.Track(SearchEvent{Type: EventZeroResult})
	cancel()
	<-c.done
	assert.Equal(t, 1, pub.count())
}

func TestCollectorDropsWhenFull(t *testing.T) {
	c := NewCollector(&fakePublisher{}, 1, 1, time.Hour)
	c.Track(SearchEvent{})
	c.Track(SearchEvent{})
	assert.Len(t, c.eventCh, 1)
}

func TestCollectorTrackAfterCloseIsDropped(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, 10, 10, time.Hour)
	c.Start(context.Background())
	c.Track(SearchEvent{Type: EventSearch})
	c.Close()

	assert.NotPanics(t, func() {
		c.Track(SearchEvent{Type: EventSearch})
		c.TrackReload(ReloadEvent{Type: EventReload})
		c.Close()
	})
	assert.Equal(t, 1, pub.count())
}
