// Package executor answers queries against the currently served model.
package executor

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gerdreiss/seroost/internal/indexer/index"
	"github.com/gerdreiss/seroost/internal/indexer/tokenizer"
	"github.com/gerdreiss/seroost/internal/searcher/ranker"
	apperrors "github.com/gerdreiss/seroost/pkg/errors"
)

type SearchResult struct {
	Query       string             `json:"query"`
	Terms       []string           `json:"terms"`
	TotalHits   int                `json:"total_hits"`
	Results     []ranker.ScoredDoc `json:"results"`
	Fingerprint string             `json:"fingerprint"`
}

// Executor holds the served model. Swapping in a new model never disturbs
// queries already running against the old one.
type Executor struct {
	model  atomic.Pointer[index.Model]
	logger *slog.Logger
}

func New(m *index.Model) *Executor {
	e := &Executor{logger: slog.Default().With("component", "query-executor")}
	if m != nil {
		e.model.Store(m)
	}
	return e
}

// Model returns the served model, or nil before the first Swap.
func (e *Executor) Model() *index.Model {
	return e.model.Load()
}

// Swap serves m from now on and returns the previous model.
func (e *Executor) Swap(m *index.Model) *index.Model {
	old := e.model.Swap(m)
	e.logger.Info("model swapped", "documents", m.Len(), "terms", m.Vocabulary(), "fingerprint", m.Fingerprint())
	return old
}

// Execute ranks query against the served model and keeps the first limit
// results; limit <= 0 keeps all of them. A query without terms yields an
// empty result.
func (e *Executor) Execute(ctx context.Context, query string, limit int) (*SearchResult, error) {
	return e.ExecuteOn(ctx, e.model.Load(), query, limit)
}

// ExecuteOn is Execute against m, which callers hold when other work (cache
// keys) must agree with the model that produced the result.
func (e *Executor) ExecuteOn(ctx context.Context, m *index.Model, query string, limit int) (*SearchResult, error) {
	if m == nil {
		return nil, apperrors.ErrIndexUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := tokenizer.Tokenize(query)
	if terms == nil {
		terms = []string{}
	}
	ranked := ranker.RankTerms(terms, m)
	total := len(ranked)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	e.logger.Debug("query executed", "query", query, "terms", len(terms), "hits", total)
	return &SearchResult{
		Query:       query,
		Terms:       terms,
		TotalHits:   total,
		Results:     ranked,
		Fingerprint: m.Fingerprint(),
	}, nil
}
