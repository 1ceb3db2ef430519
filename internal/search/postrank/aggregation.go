package postrank

import (
	"context"
	"sort"
	"time"

	"github.com/ricesearch/rice-search/internal/pkg/logger"
)

// AggregationService groups results by file path.
type AggregationService struct {
	maxChunksPerFile int
	log              *logger.Logger
}

// NewAggregationService creates a new aggregation service.
func NewAggregationService(maxChunksPerFile int, log *logger.Logger) *AggregationService {
	if maxChunksPerFile <= 0 {
		maxChunksPerFile = 3 // Default
	}
	return &AggregationService{
		maxChunksPerFile: maxChunksPerFile,
		log:              log,
	}
}

// AggregationResult contains aggregation statistics.
type AggregationResult struct {
	UniqueFiles   int
	ChunksDropped int
	LatencyMs     int64
}

// FileGroup represents results grouped by file.
type FileGroup struct {
	Path                     string
	TopChunks                []ResultWithEmbedding
	TotalChunks              int
	AverageScore             float32
	RepresentativeChunkIndex int // Index of the representative chunk in TopChunks
}

type fileCluster struct {
	path     string
	chunks   []ResultWithEmbedding
	firstPos int
}

// GroupByFile groups chunks by path, marks each chunk's IsRepresentative/
// RelatedChunks/FileScore/ChunkRankInFile, drops chunks past
// maxChunksPerFile per file, and interleaves the kept groups back into a
// flat list ordered by FileScore descending, stable on each group's first
// original position.
func (s *AggregationService) GroupByFile(ctx context.Context, results []ResultWithEmbedding) ([]ResultWithEmbedding, AggregationResult) {
	start := time.Now()

	if len(results) == 0 {
		return results, AggregationResult{}
	}

	clusters := clusterByPath(results)

	totalDropped := 0
	for _, c := range clusters {
		select {
		case <-ctx.Done():
			return flattenClusters(clusters), AggregationResult{
				UniqueFiles:   len(clusters),
				ChunksDropped: totalDropped,
				LatencyMs:     time.Since(start).Milliseconds(),
			}
		default:
		}

		stampGroup(c.chunks)

		if len(c.chunks) > s.maxChunksPerFile {
			totalDropped += len(c.chunks) - s.maxChunksPerFile
			c.chunks = c.chunks[:s.maxChunksPerFile]
		}
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		if clusters[i].chunks[0].FileScore != clusters[j].chunks[0].FileScore {
			return clusters[i].chunks[0].FileScore > clusters[j].chunks[0].FileScore
		}
		return clusters[i].firstPos < clusters[j].firstPos
	})

	return flattenClusters(clusters), AggregationResult{
		UniqueFiles:   len(clusters),
		ChunksDropped: totalDropped,
		LatencyMs:     time.Since(start).Milliseconds(),
	}
}

// clusterByPath groups results by Path, sorts each group by score
// descending, and records each group's first-seen position for the
// stable-tiebreak interleave step.
func clusterByPath(results []ResultWithEmbedding) []*fileCluster {
	byPath := make(map[string]*fileCluster)
	clusters := make([]*fileCluster, 0)

	for i, r := range results {
		c, ok := byPath[r.Path]
		if !ok {
			c = &fileCluster{path: r.Path, firstPos: i}
			byPath[r.Path] = c
			clusters = append(clusters, c)
		}
		c.chunks = append(c.chunks, r)
	}

	for _, c := range clusters {
		sort.SliceStable(c.chunks, func(i, j int) bool {
			return c.chunks[i].Score > c.chunks[j].Score
		})
	}

	return clusters
}

// stampGroup sets IsRepresentative, RelatedChunks, FileScore, and
// ChunkRankInFile on every chunk in an already score-sorted group.
func stampGroup(chunks []ResultWithEmbedding) {
	var fileScore float32
	for _, c := range chunks {
		fileScore += c.Score
	}
	n := len(chunks)
	for i := range chunks {
		chunks[i].IsRepresentative = i == 0
		chunks[i].RelatedChunks = n - 1
		chunks[i].FileScore = fileScore
		chunks[i].ChunkRankInFile = i + 1
	}
}

func flattenClusters(clusters []*fileCluster) []ResultWithEmbedding {
	var out []ResultWithEmbedding
	for _, c := range clusters {
		out = append(out, c.chunks...)
	}
	return out
}

// GroupByFileDetailed groups results by file and returns detailed file groups.
// This provides more information for display purposes.
func (s *AggregationService) GroupByFileDetailed(ctx context.Context, results []ResultWithEmbedding) ([]FileGroup, AggregationResult) {
	start := time.Now()

	if len(results) == 0 {
		return nil, AggregationResult{}
	}

	clusters := clusterByPath(results)

	groups := make([]FileGroup, 0, len(clusters))
	totalDropped := 0

	for _, c := range clusters {
		stampGroup(c.chunks)

		var totalScore float32
		for _, chunk := range c.chunks {
			totalScore += chunk.Score
		}
		avgScore := totalScore / float32(len(c.chunks))

		topChunks := c.chunks
		if len(c.chunks) > s.maxChunksPerFile {
			topChunks = c.chunks[:s.maxChunksPerFile]
			totalDropped += len(c.chunks) - s.maxChunksPerFile
		}

		groups = append(groups, FileGroup{
			Path:                     c.path,
			TopChunks:                topChunks,
			TotalChunks:              len(c.chunks),
			AverageScore:             avgScore,
			RepresentativeChunkIndex: 0,
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].AverageScore > groups[j].AverageScore
	})

	return groups, AggregationResult{
		UniqueFiles:   len(groups),
		ChunksDropped: totalDropped,
		LatencyMs:     time.Since(start).Milliseconds(),
	}
}

// MergeTopChunks extracts all top chunks from file groups into a flat list.
func MergeTopChunks(groups []FileGroup) []ResultWithEmbedding {
	var merged []ResultWithEmbedding
	for _, group := range groups {
		merged = append(merged, group.TopChunks...)
	}
	return merged
}
