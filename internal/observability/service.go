// Package observability exposes the telemetry recorder's history through
// the shapes the HTTP export endpoint understands (date-range queries,
// CSV/JSONL rows), without owning a second copy of the query log itself.
package observability

import (
	"context"
	"time"

	"github.com/ricesearch/rice-search/internal/telemetry"
)

// Service adapts a telemetry.Recorder's ring buffer into the
// QueryLogEntry shape the export handlers serialize.
type Service struct {
	recorder *telemetry.Recorder
}

// NewService wraps the orchestrator's telemetry recorder. recorder must
// not be nil.
func NewService(recorder *telemetry.Recorder) *Service {
	return &Service{recorder: recorder}
}

// GetQueriesInRange returns queries within a date range and optionally
// filtered by store, read live off the telemetry recorder's retained
// history rather than a separately maintained log.
func (s *Service) GetQueriesInRange(ctx context.Context, store string, from, to time.Time) ([]QueryLogEntry, error) {
	var entries []QueryLogEntry

	for _, rec := range s.recorder.Recent(0) {
		ts := time.UnixMilli(rec.TimestampMs)
		if store != "" && rec.Store != store {
			continue
		}
		if ts.Before(from) || ts.After(to) {
			continue
		}

		entries = append(entries, QueryLogEntry{
			Timestamp:       ts,
			Store:           rec.Store,
			Query:           rec.Query,
			Intent:          rec.Intent,
			Strategy:        rec.Strategy,
			ResultCount:     rec.ResultCount,
			LatencyMs:       rec.TotalLatMs,
			RerankEnabled:   rec.Rerank.Enabled,
			RerankLatencyMs: rec.Rerank.LatencyMs,
		})
	}

	return entries, nil
}
