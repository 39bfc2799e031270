package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
	"github.com/kirillkom/knowledge-retrieval-service/internal/core/ports"
)

const (
	defaultVectorWeight  = 0.7
	defaultKeywordWeight = 0.3
	// candidateHeadroom leaves the reranker a pool larger than the final
	// top_k: each path requests 2*top_k and fusion output is trimmed to
	// the same bound.
	candidateHeadroom = 2
)

// HybridRetriever fans vector and keyword search out per query variant and
// fuses their ranked lists. All variants are dispatched concurrently; the
// two paths of one variant are awaited together.
type HybridRetriever struct {
	embedder ports.Embedder
	vector   ports.VectorSearcher
	keyword  ports.KeywordSearcher

	perCallTimeout time.Duration
}

func NewHybridRetriever(embedder ports.Embedder, vector ports.VectorSearcher, keyword ports.KeywordSearcher, perCallTimeout time.Duration) *HybridRetriever {
	if perCallTimeout <= 0 {
		perCallTimeout = 2 * time.Second
	}
	return &HybridRetriever{
		embedder:       embedder,
		vector:         vector,
		keyword:        keyword,
		perCallTimeout: perCallTimeout,
	}
}

type variantOutcome struct {
	variant     string
	vectorHits  []domain.SearchHit
	keywordHits []domain.SearchHit
	vectorErr   error
	keywordErr  error
}

// Retrieve runs hybrid retrieval for every query variant. One failed path
// degrades, both paths failing across the board is ErrRetrievalUnavailable.
// The returned degradedPath is "vector", "keyword" or "" when both paths
// contributed.
func (r *HybridRetriever) Retrieve(ctx context.Context, variants []string, kbIDs []string, topK int, vectorWeight, keywordWeight float64) ([]domain.CandidateChunk, string, error) {
	if topK <= 0 {
		topK = 10
	}
	pathLimit := topK * candidateHeadroom

	outcomes := make([]variantOutcome, len(variants))
	var wg sync.WaitGroup
	for i, variant := range variants {
		wg.Add(1)
		go func(slot int, q string) {
			defer wg.Done()
			outcomes[slot] = r.retrieveVariant(ctx, q, kbIDs, pathLimit)
		}(i, variant)
	}
	wg.Wait()

	byVariant := make(map[string][]domain.CandidateChunk, len(outcomes))
	vectorOK, keywordOK := false, false
	for _, o := range outcomes {
		if o.vectorErr == nil {
			vectorOK = true
		}
		if o.keywordErr == nil {
			keywordOK = true
		}
		if o.vectorErr != nil && o.keywordErr != nil {
			continue
		}
		byVariant[o.variant] = fuseWeighted(o.vectorHits, o.keywordHits, vectorWeight, keywordWeight)
	}

	if !vectorOK && !keywordOK {
		var detail error
		if len(outcomes) > 0 {
			detail = errors.Join(outcomes[0].vectorErr, outcomes[0].keywordErr)
		}
		return nil, "", domain.WrapError(domain.ErrRetrievalUnavailable, "hybrid retrieval", fmt.Errorf("all retrieval paths failed: %w", detail))
	}

	degradedPath := ""
	if !vectorOK {
		degradedPath = "vector"
	} else if !keywordOK {
		degradedPath = "keyword"
	}

	merged := mergeVariants(byVariant)
	return trimCandidates(merged, pathLimit), degradedPath, nil
}

func (r *HybridRetriever) retrieveVariant(ctx context.Context, query string, kbIDs []string, limit int) variantOutcome {
	out := variantOutcome{variant: query}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		out.vectorHits, out.vectorErr = r.vectorPath(ctx, query, kbIDs, limit)
		if out.vectorErr != nil {
			slog.Warn("vector_path_failed", "variant", query, "error", out.vectorErr)
		}
	}()
	go func() {
		defer wg.Done()
		out.keywordHits, out.keywordErr = r.keywordPath(ctx, query, kbIDs, limit)
		if out.keywordErr != nil {
			slog.Warn("keyword_path_failed", "variant", query, "error", out.keywordErr)
		}
	}()
	wg.Wait()
	return out
}

func (r *HybridRetriever) vectorPath(ctx context.Context, query string, kbIDs []string, limit int) ([]domain.SearchHit, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.perCallTimeout)
	defer cancel()

	vector, err := r.embedder.EmbedQuery(callCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := r.vector.SearchVector(callCtx, vector, kbIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}

func (r *HybridRetriever) keywordPath(ctx context.Context, query string, kbIDs []string, limit int) ([]domain.SearchHit, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.perCallTimeout)
	defer cancel()

	hits, err := r.keyword.SearchKeyword(callCtx, query, kbIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	return hits, nil
}

// RetrieveVectorOnly serves the plain vector strategy: single variant,
// dense path only, post-filtered by the similarity threshold.
func (r *HybridRetriever) RetrieveVectorOnly(ctx context.Context, query string, kbIDs []string, topK int, threshold float64) ([]domain.CandidateChunk, error) {
	hits, err := r.vectorPath(ctx, query, kbIDs, topK*candidateHeadroom)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "vector retrieval", err)
	}

	out := make([]domain.CandidateChunk, 0, len(hits))
	for _, h := range hits {
		if h.Score < threshold {
			continue
		}
		c := hitToCandidate(h)
		c.VectorScore = h.Score
		c.FusedScore = h.Score
		out = append(out, c)
	}
	sortByFusedScore(out)
	return trimCandidates(out, topK*candidateHeadroom), nil
}

// RetrieveKeywordOnly serves the plain keyword strategy.
func (r *HybridRetriever) RetrieveKeywordOnly(ctx context.Context, query string, kbIDs []string, topK int) ([]domain.CandidateChunk, error) {
	hits, err := r.keywordPath(ctx, query, kbIDs, topK*candidateHeadroom)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "keyword retrieval", err)
	}

	out := make([]domain.CandidateChunk, 0, len(hits))
	for _, h := range hits {
		c := hitToCandidate(h)
		c.KeywordScore = h.Score
		c.FusedScore = h.Score
		out = append(out, c)
	}
	sortByFusedScore(out)
	return trimCandidates(out, topK*candidateHeadroom), nil
}
