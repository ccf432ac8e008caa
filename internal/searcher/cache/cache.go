// Package cache is a read-through Redis cache for query results.
//
// Keys combine the model fingerprint with a hash of the sorted query terms
// and the limit, so reordered queries share an entry and a new model never
// sees entries computed against an old one.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gerdreiss/seroost/internal/searcher/executor"
	"github.com/gerdreiss/seroost/pkg/metrics"
	pkgredis "github.com/gerdreiss/seroost/pkg/redis"
	"github.com/gerdreiss/seroost/pkg/resilience"
)

const keyPrefix = "search:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Breaker string `json:"breaker"`
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New wraps store. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	c := &QueryCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("redis", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     15 * time.Second,
		OnStateChange: func(name string, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

// Key returns the cache key for terms and limit under fingerprint.
func Key(fingerprint string, terms []string, limit int) string {
	sorted := slices.Clone(terms)
	slices.Sort(sorted)
	h := sha256.New()
	h.Write([]byte(strings.Join(sorted, "\x00")))
	h.Write([]byte("\x00limit="))
	h.Write([]byte(strconv.Itoa(limit)))
	return keyPrefix + fingerprint + ":" + hex.EncodeToString(h.Sum(nil)[:16])
}

// GetOrCompute returns the cached result for the query, or runs compute and
// stores its result. Concurrent misses for the same key share one compute.
// The boolean reports a cache hit. Redis failures are logged and bypassed.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	terms []string,
	fingerprint string,
	limit int,
	compute func() (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	key := Key(fingerprint, terms, limit)
	if res, ok := c.get(ctx, key); ok {
		c.recordHit()
		return withQuery(res, query, terms), true, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		res, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, res)
		return res, nil
	})
	if err != nil {
		return nil, false, err
	}
	c.recordMiss()
	res := v.(*executor.SearchResult)
	if shared {
		res = withQuery(res, query, terms)
	}
	return res, false, nil
}

func (c *QueryCache) get(ctx context.Context, key string) (*executor.SearchResult, bool) {
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if pkgredis.IsNil(err) {
			return nil
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	var res executor.SearchResult
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		return nil, false
	}
	return &res, true
}

func (c *QueryCache) set(ctx context.Context, key string, res *executor.SearchResult) {
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// Invalidate deletes every cached result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.store.DeletePrefix(ctx, keyPrefix)
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// ResetBreaker closes the Redis circuit breaker so the next call reaches
// the store again.
func (c *QueryCache) ResetBreaker() {
	c.breaker.Reset()
}

func (c *QueryCache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Breaker: c.breaker.State().String()}
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// withQuery returns a copy of res that echoes this caller's query.
func withQuery(res *executor.SearchResult, query string, terms []string) *executor.SearchResult {
	cp := *res
	cp.Query = query
	cp.Terms = terms
	return &cp
}
