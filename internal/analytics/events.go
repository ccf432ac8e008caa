// Package analytics records what the query server is asked and how it
// answers: an in-process aggregator for the stats endpoint and a collector
// that ships the same events to Kafka.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventReload     EventType = "model_reload"
)

type SearchEvent struct {
	Type        EventType `json:"type"`
	Query       string    `json:"query"`
	Terms       []string  `json:"terms"`
	TotalHits   int       `json:"total_hits"`
	Returned    int       `json:"returned"`
	LatencyMs   int64     `json:"latency_ms"`
	CacheHit    bool      `json:"cache_hit"`
	Fingerprint string    `json:"fingerprint"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
}

type ReloadEvent struct {
	Type        EventType `json:"type"`
	IndexPath   string    `json:"index_path"`
	Trigger     string    `json:"trigger"`
	Documents   int       `json:"documents"`
	Terms       int       `json:"terms"`
	Fingerprint string    `json:"fingerprint"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
