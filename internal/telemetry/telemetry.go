// Package telemetry records one structured TelemetryRecord per search
// request into a bounded, lossy-on-overflow ring buffer and fans each
// record out to subscribers without letting a slow subscriber
// back-pressure the orchestrator.
package telemetry

import (
	"sync"

	"github.com/ricesearch/rice-search/internal/pkg/logger"
)

// RetrieverStats carries one retriever's per-request numbers.
type RetrieverStats struct {
	Count     int     `json:"count"`
	LatencyMs int64   `json:"latency_ms"`
	TopScore  float32 `json:"top_score"`
	StdDev    float32 `json:"std_dev"`
}

// FusionStats carries the fused list's per-request numbers.
type FusionStats struct {
	Count       int     `json:"count"`
	LatencyMs   int64   `json:"latency_ms"`
	TopScore    float32 `json:"top_score"`
	SecondScore float32 `json:"second_score"`
	ScoreGap    float32 `json:"score_gap"`
	ScoreRatio  float32 `json:"score_ratio"`
}

// RerankStats carries the reranker's per-request numbers.
type RerankStats struct {
	Enabled    bool   `json:"enabled"`
	Candidates int    `json:"candidates"`
	LatencyMs  int64  `json:"latency_ms"`
	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skip_reason,omitempty"`
}

// CacheStats records whether the per-request embedding/rerank caches hit.
type CacheStats struct {
	EmbeddingHit bool `json:"embedding_hit"`
	RerankHit    bool `json:"rerank_hit"`
}

// Record is a structured per-query record with latencies and score stats.
// Created once per request and appended to the ring buffer atomically;
// never mutated after Record() returns.
type Record struct {
	RequestID   string         `json:"request_id"`
	TimestampMs int64          `json:"timestamp_ms"`
	Store       string         `json:"store"`
	Query       string         `json:"query"`
	Intent      string         `json:"intent"`
	Strategy    string         `json:"strategy"`
	Sparse      RetrieverStats `json:"sparse"`
	Dense       RetrieverStats `json:"dense"`
	Fusion      FusionStats    `json:"fusion"`
	Rerank      RerankStats    `json:"rerank"`
	Cache       CacheStats     `json:"cache"`
	TotalLatMs  int64          `json:"total_latency_ms"`
	ResultCount int            `json:"result_count"`
}

// ScoreStats summarizes a slice of scores for TelemetryRecord construction.
type ScoreStats struct {
	Mean   float32 `json:"mean"`
	StdDev float32 `json:"std_dev"`
	P50    float32 `json:"p50"`
	P95    float32 `json:"p95"`
}

const defaultCapacity = 10000

// subscriber fans records out on its own buffered channel so a slow
// consumer only ever drops its own events, never blocks Record().
type subscriber struct {
	ch chan Record
}

// Recorder is the C8 Telemetry Recorder: an in-memory bounded ring
// buffer plus an async, lossy, non-blocking fan-out to subscribers.
type Recorder struct {
	mu       sync.Mutex
	buf      []Record
	next     int // index to write the next record (ring cursor)
	filled   bool
	capacity int

	subMu sync.Mutex
	subs  []*subscriber

	log *logger.Logger
}

// NewRecorder creates a Recorder with the given ring-buffer capacity.
// A capacity <= 0 uses the default of 10,000 entries.
func NewRecorder(capacity int, log *logger.Logger) *Recorder {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Recorder{
		buf:      make([]Record, capacity),
		capacity: capacity,
		log:      log,
	}
}

// Record appends rec to the ring buffer, overwriting the oldest entry
// once full, and fires an asynchronous, best-effort notification to
// every subscriber. It never blocks on a subscriber.
func (r *Recorder) Record(rec Record) {
	r.mu.Lock()
	r.buf[r.next] = rec
	r.next = (r.next + 1) % r.capacity
	if r.next == 0 {
		r.filled = true
	}
	r.mu.Unlock()

	r.subMu.Lock()
	subs := make([]*subscriber, len(r.subs))
	copy(subs, r.subs)
	r.subMu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- rec:
		default:
			if r.log != nil {
				r.log.Debug("telemetry subscriber channel full, dropping record", "request_id", rec.RequestID)
			}
		}
	}
}

// Subscribe registers a new subscriber and returns a channel that
// receives records as they are recorded, buffered up to bufferSize.
// When the buffer is full, new records are dropped for this subscriber
// rather than queued — the orchestrator is never slowed down by a
// lagging consumer. The returned cancel function unregisters the
// subscriber and closes its channel.
func (r *Recorder) Subscribe(bufferSize int) (ch <-chan Record, cancel func()) {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	sub := &subscriber{ch: make(chan Record, bufferSize)}

	r.subMu.Lock()
	r.subs = append(r.subs, sub)
	r.subMu.Unlock()

	cancel = func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		for i, s := range r.subs {
			if s == sub {
				r.subs = append(r.subs[:i], r.subs[i+1:]...)
				close(sub.ch)
				return
			}
		}
	}

	return sub.ch, cancel
}

// Recent returns up to n of the most recently recorded records, newest
// last. A non-positive n returns everything currently retained.
func (r *Recorder) Recent(n int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ordered []Record
	if r.filled {
		ordered = make([]Record, 0, r.capacity)
		ordered = append(ordered, r.buf[r.next:]...)
		ordered = append(ordered, r.buf[:r.next]...)
	} else {
		ordered = make([]Record, r.next)
		copy(ordered, r.buf[:r.next])
	}

	if n <= 0 || n >= len(ordered) {
		return ordered
	}
	return ordered[len(ordered)-n:]
}

// Len returns the number of records currently retained in the buffer.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.filled {
		return r.capacity
	}
	return r.next
}
