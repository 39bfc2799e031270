package usecase

import (
	"sort"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
)

// normalizeScores rescales one result set into [0,1] with min-max so scores
// from heterogeneous scoring functions stay comparable. A constant set maps
// to 1.0 for every member.
func normalizeScores(hits []domain.SearchHit) map[string]float64 {
	out := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	minScore, maxScore := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < minScore {
			minScore = h.Score
		}
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	span := maxScore - minScore
	for _, h := range hits {
		if span <= 0 {
			out[h.ID] = 1.0
			continue
		}
		out[h.ID] = (h.Score - minScore) / span
	}
	return out
}

// fuseWeighted combines the vector and keyword result lists of a single
// query variant into one candidate set with weighted-sum scores.
func fuseWeighted(vectorHits, keywordHits []domain.SearchHit, vectorWeight, keywordWeight float64) []domain.CandidateChunk {
	// Weights are normalized so they always sum to 1.
	total := vectorWeight + keywordWeight
	if total <= 0 {
		vectorWeight, keywordWeight = defaultVectorWeight, defaultKeywordWeight
		total = 1
	}
	vectorWeight /= total
	keywordWeight /= total

	vectorNorm := normalizeScores(vectorHits)
	keywordNorm := normalizeScores(keywordHits)

	acc := make(map[string]domain.CandidateChunk, len(vectorHits)+len(keywordHits))
	for _, h := range vectorHits {
		c := hitToCandidate(h)
		c.VectorScore = h.Score
		acc[h.ID] = c
	}
	for _, h := range keywordHits {
		c, ok := acc[h.ID]
		if !ok {
			c = hitToCandidate(h)
		}
		c.KeywordScore = h.Score
		acc[h.ID] = c
	}

	out := make([]domain.CandidateChunk, 0, len(acc))
	for id, c := range acc {
		c.FusedScore = vectorWeight*vectorNorm[id] + keywordWeight*keywordNorm[id]
		out = append(out, c)
	}
	return out
}

// mergeVariants deduplicates candidates across expansion variants. A chunk
// keeps the maximum fused score any variant produced for it (a single
// strong match must not be diluted by weaker paraphrase matches) and
// remembers the winning variant.
func mergeVariants(byVariant map[string][]domain.CandidateChunk) []domain.CandidateChunk {
	acc := make(map[string]domain.CandidateChunk)
	// Deterministic iteration keeps tie outcomes stable.
	variants := make([]string, 0, len(byVariant))
	for v := range byVariant {
		variants = append(variants, v)
	}
	sort.Strings(variants)

	for _, variant := range variants {
		for _, c := range byVariant[variant] {
			c.MatchedVariant = variant
			current, ok := acc[c.ID]
			if !ok || c.FusedScore > current.FusedScore {
				acc[c.ID] = c
			}
		}
	}

	out := make([]domain.CandidateChunk, 0, len(acc))
	for _, c := range acc {
		out = append(out, c)
	}
	sortByFusedScore(out)
	return out
}

func sortByFusedScore(chunks []domain.CandidateChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].FusedScore != chunks[j].FusedScore {
			return chunks[i].FusedScore > chunks[j].FusedScore
		}
		return chunks[i].ID < chunks[j].ID
	})
}

func trimCandidates(chunks []domain.CandidateChunk, limit int) []domain.CandidateChunk {
	if limit <= 0 || len(chunks) <= limit {
		return chunks
	}
	return chunks[:limit]
}

func hitToCandidate(h domain.SearchHit) domain.CandidateChunk {
	return domain.CandidateChunk{
		ID:              h.ID,
		Content:         h.Content,
		KnowledgeBaseID: h.KnowledgeBaseID,
		SourceFile:      h.SourceFile,
		SourceScore:     h.Score,
		Metadata:        h.Metadata,
	}
}
