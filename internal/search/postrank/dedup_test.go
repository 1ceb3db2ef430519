package postrank

import (
	"context"
	"strings"
	"testing"

	"github.com/ricesearch/rice-search/internal/pkg/logger"
)

func TestDeduplicate(t *testing.T) {
	log := logger.New("error", "text")
	svc := NewDedupService(0.85, 1, log)

	funcBody := "func handleRequest(w http.ResponseWriter, r *http.Request) { data := parseBody(r) writeResponse(w, data) }"
	results := []ResultWithEmbedding{
		{ID: "1", Path: "handler.go", Score: 0.9, Content: funcBody},
		{ID: "2", Path: "handler.go", Score: 0.85, Content: funcBody + " // trailing comment"},
		{ID: "3", Path: "other.go", Score: 0.8, Content: "func computeChecksum(data []byte) uint32 { return crc32.ChecksumIEEE(data) }"},
	}

	ctx := context.Background()
	deduped, stats := svc.Deduplicate(ctx, results)

	if stats.OutputCount != 2 {
		t.Errorf("expected 2 results, got %d", stats.OutputCount)
	}
	if stats.Removed != 1 {
		t.Errorf("expected 1 removed, got %d", stats.Removed)
	}
	if deduped[0].ID != "1" || deduped[1].ID != "3" {
		t.Errorf("expected results 1 and 3 kept, got %v", idsOf(deduped))
	}
}

func TestDeduplicate_PreserveTopIgnoresSimilarity(t *testing.T) {
	log := logger.New("error", "text")
	svc := NewDedupService(0.85, 2, log)

	funcBody := "func a() { doWork(); doMoreWork(); finalizeWork(); cleanupWork(); }"
	results := []ResultWithEmbedding{
		{ID: "1", Path: "a.go", Content: funcBody},
		{ID: "2", Path: "a.go", Content: funcBody}, // identical, but within preserveTop
		{ID: "3", Path: "a.go", Content: funcBody}, // identical, beyond preserveTop, should be dropped
	}

	ctx := context.Background()
	deduped, stats := svc.Deduplicate(ctx, results)

	if stats.OutputCount != 2 {
		t.Errorf("expected 2 results (preserveTop=2 keeps both leading duplicates), got %d", stats.OutputCount)
	}
	if deduped[0].ID != "1" || deduped[1].ID != "2" {
		t.Errorf("expected 1 and 2 preserved, got %v", idsOf(deduped))
	}
}

func TestDeduplicate_DifferentPathLongerContentSurvives(t *testing.T) {
	log := logger.New("error", "text")
	svc := NewDedupService(0.3, 1, log)

	// long shares its leading tokens with short (so their shingle sets
	// overlap above threshold) but is padded well past 1.5x the length.
	short := "alpha beta gamma delta epsilon zeta eta theta"
	long := short + " " + strings.Repeat("padding ", 20)

	results := []ResultWithEmbedding{
		{ID: "1", Path: "a.go", Content: short},
		{ID: "2", Path: "b.go", Content: long},
	}

	ctx := context.Background()
	deduped, _ := svc.Deduplicate(ctx, results)

	if len(deduped) != 2 {
		t.Errorf("expected both results kept (different path, >1.5x longer), got %v", idsOf(deduped))
	}
}

func TestDeduplicate_SamePathLongerContentStillDropped(t *testing.T) {
	log := logger.New("error", "text")
	svc := NewDedupService(0.3, 1, log)

	short := "alpha beta gamma delta epsilon zeta eta theta"
	long := short + " " + strings.Repeat("padding ", 20)

	results := []ResultWithEmbedding{
		{ID: "1", Path: "a.go", Content: short},
		{ID: "2", Path: "a.go", Content: long}, // same path: length exception doesn't apply
	}

	ctx := context.Background()
	deduped, stats := svc.Deduplicate(ctx, results)

	if stats.Removed != 1 {
		t.Errorf("expected 1 removed when paths match despite length difference, got %d", stats.Removed)
	}
	if len(deduped) != 1 || deduped[0].ID != "1" {
		t.Errorf("expected only result 1 kept, got %v", idsOf(deduped))
	}
}

func TestDeduplicate_EmptyInput(t *testing.T) {
	log := logger.New("error", "text")
	svc := NewDedupService(0.85, 0, log)

	ctx := context.Background()
	deduped, stats := svc.Deduplicate(ctx, nil)

	if len(deduped) != 0 {
		t.Errorf("expected empty results, got %d", len(deduped))
	}
	if stats.InputCount != 0 || stats.OutputCount != 0 || stats.Removed != 0 {
		t.Errorf("expected all stats to be 0, got: %+v", stats)
	}
}

func TestDeduplicate_NoSimilar(t *testing.T) {
	log := logger.New("error", "text")
	svc := NewDedupService(0.85, 1, log)

	results := []ResultWithEmbedding{
		{ID: "1", Content: "func parseConfig(path string) (*Config, error) { return load(path) }"},
		{ID: "2", Content: "type Server struct { listener net.Listener handler http.Handler }"},
		{ID: "3", Content: "const DefaultTimeout = 30 * time.Second"},
	}

	ctx := context.Background()
	_, stats := svc.Deduplicate(ctx, results)

	if stats.OutputCount != 3 {
		t.Errorf("expected 3 results, got %d", stats.OutputCount)
	}
	if stats.Removed != 0 {
		t.Errorf("expected 0 removed, got %d", stats.Removed)
	}
}

func TestJaccardSimilarity(t *testing.T) {
	a := shingleSet("func handleRequest(w http.ResponseWriter, r *http.Request) { process(r) }")
	b := shingleSet("func handleRequest(w http.ResponseWriter, r *http.Request) { process(r) }")
	if sim := jaccardSimilarity(a, b); sim != 1.0 {
		t.Errorf("expected identical content to have similarity 1.0, got %f", sim)
	}

	c := shingleSet("type Config struct { Host string Port int }")
	if sim := jaccardSimilarity(a, c); sim > 0.1 {
		t.Errorf("expected unrelated content to have low similarity, got %f", sim)
	}
}

func idsOf(results []ResultWithEmbedding) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}
