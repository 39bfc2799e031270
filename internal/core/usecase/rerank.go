package usecase

import (
	"context"
	"log/slog"
	"sort"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
	"github.com/kirillkom/knowledge-retrieval-service/internal/core/ports"
)

const rerankBatchSize = 32

// Reranker recomputes fine-grained relevance with an external pairwise
// scoring capability and reorders the candidate pool. When the capability
// is unavailable it degrades to a pass-through that preserves incoming
// order and truncates.
type Reranker struct {
	scorer    ports.PairScorer
	batchSize int
}

func NewReranker(scorer ports.PairScorer) *Reranker {
	return &Reranker{scorer: scorer, batchSize: rerankBatchSize}
}

// Rerank returns at most topK candidates, strictly ordered by descending
// rerank score. Ties break on the pre-rerank fused score, then candidate id.
// The second return value reports whether scoring was actually applied.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []domain.CandidateChunk, topK int) ([]domain.CandidateChunk, bool) {
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}
	if len(candidates) == 0 {
		return candidates, false
	}
	if r.scorer == nil {
		return candidates[:topK], false
	}

	scored := make([]domain.CandidateChunk, len(candidates))
	copy(scored, candidates)

	// Batched scoring bounds the memory and latency of one scorer call.
	for start := 0; start < len(scored); start += r.batchSize {
		end := start + r.batchSize
		if end > len(scored) {
			end = len(scored)
		}
		texts := make([]string, 0, end-start)
		for _, c := range scored[start:end] {
			texts = append(texts, c.Content)
		}

		scores, err := r.scorer.ScorePairs(ctx, query, texts)
		if err != nil || len(scores) != len(texts) {
			slog.Warn("rerank_degraded", "batch_start", start, "error", err)
			return candidates[:topK], false
		}
		for i := range scores {
			scored[start+i].RerankScore = scores[i]
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].RerankScore != scored[j].RerankScore {
			return scored[i].RerankScore > scored[j].RerankScore
		}
		if scored[i].FusedScore != scored[j].FusedScore {
			return scored[i].FusedScore > scored[j].FusedScore
		}
		return scored[i].ID < scored[j].ID
	})

	return scored[:topK], true
}
