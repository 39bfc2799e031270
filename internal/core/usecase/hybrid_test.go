package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
)

func newTestRetriever(vector *fakeVectorSearcher, keyword *fakeKeywordSearcher) *HybridRetriever {
	return NewHybridRetriever(&fakeEmbedder{}, vector, keyword, time.Second)
}

func TestHybridRetrieveFusesBothPaths(t *testing.T) {
	vector := &fakeVectorSearcher{hits: []domain.SearchHit{hit("a", 0.9), hit("b", 0.5)}}
	keyword := &fakeKeywordSearcher{hits: []domain.SearchHit{hit("b", 2.0), hit("c", 1.0)}}
	r := newTestRetriever(vector, keyword)

	chunks, degraded, err := r.Retrieve(context.Background(), []string{"install docker"}, []string{"kb-1"}, 5, 0.7, 0.3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if degraded != "" {
		t.Fatalf("expected no degraded path, got %q", degraded)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 fused chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].FusedScore > chunks[i-1].FusedScore {
			t.Fatalf("fused chunks not sorted descending: %+v", chunks)
		}
	}
}

func TestHybridRetrieveKeywordFailureDegrades(t *testing.T) {
	vector := &fakeVectorSearcher{hits: []domain.SearchHit{hit("a", 0.9)}}
	keyword := &fakeKeywordSearcher{err: errors.New("index offline")}
	r := newTestRetriever(vector, keyword)

	chunks, degraded, err := r.Retrieve(context.Background(), []string{"install docker"}, nil, 5, 0.7, 0.3)
	if err != nil {
		t.Fatalf("one healthy path must not fail the request: %v", err)
	}
	if degraded != "keyword" {
		t.Fatalf("expected degraded path %q, got %q", "keyword", degraded)
	}
	if len(chunks) != 1 || chunks[0].ID != "a" {
		t.Fatalf("expected vector-only results, got %+v", chunks)
	}
}

func TestHybridRetrieveVectorFailureDegrades(t *testing.T) {
	vector := &fakeVectorSearcher{err: errors.New("qdrant down")}
	keyword := &fakeKeywordSearcher{hits: []domain.SearchHit{hit("k", 1.5)}}
	r := newTestRetriever(vector, keyword)

	chunks, degraded, err := r.Retrieve(context.Background(), []string{"install docker"}, nil, 5, 0.7, 0.3)
	if err != nil {
		t.Fatalf("one healthy path must not fail the request: %v", err)
	}
	if degraded != "vector" {
		t.Fatalf("expected degraded path %q, got %q", "vector", degraded)
	}
	if len(chunks) != 1 || chunks[0].ID != "k" {
		t.Fatalf("expected keyword-only results, got %+v", chunks)
	}
}

func TestHybridRetrieveAllPathsFailedIsUnavailable(t *testing.T) {
	vector := &fakeVectorSearcher{err: errors.New("qdrant down")}
	keyword := &fakeKeywordSearcher{err: errors.New("index offline")}
	r := newTestRetriever(vector, keyword)

	_, _, err := r.Retrieve(context.Background(), []string{"install docker"}, nil, 5, 0.7, 0.3)
	if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
		t.Fatalf("expected ErrRetrievalUnavailable, got %v", err)
	}
}

func TestHybridRetrieveMultipleVariantsMergeByMaxScore(t *testing.T) {
	vector := &fakeVectorSearcher{hits: []domain.SearchHit{hit("a", 0.9), hit("b", 0.2)}}
	keyword := &fakeKeywordSearcher{hits: []domain.SearchHit{hit("a", 1.0)}}
	r := newTestRetriever(vector, keyword)

	chunks, _, err := r.Retrieve(context.Background(), []string{"install docker", "docker setup"}, nil, 5, 0.7, 0.3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := make(map[string]int)
	for _, c := range chunks {
		seen[c.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("chunk %s appears %d times after merge", id, n)
		}
	}
	if got := vector.calls.Load(); got != 2 {
		t.Fatalf("expected one vector call per variant, got %d", got)
	}
}

func TestHybridRetrieveHonorsHeadroomBound(t *testing.T) {
	many := make([]domain.SearchHit, 0, 12)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		many = append(many, hit(id, float64(len(many))))
	}
	vector := &fakeVectorSearcher{hits: many}
	keyword := &fakeKeywordSearcher{}
	r := newTestRetriever(vector, keyword)

	chunks, _, err := r.Retrieve(context.Background(), []string{"q"}, nil, 3, 0.7, 0.3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) > 3*candidateHeadroom {
		t.Fatalf("expected at most %d candidates, got %d", 3*candidateHeadroom, len(chunks))
	}
}

func TestRetrieveVectorOnlyAppliesThreshold(t *testing.T) {
	vector := &fakeVectorSearcher{hits: []domain.SearchHit{hit("a", 0.9), hit("b", 0.6), hit("c", 0.3)}}
	r := newTestRetriever(vector, &fakeKeywordSearcher{})

	chunks, err := r.RetrieveVectorOnly(context.Background(), "q", nil, 5, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected threshold to drop one hit, got %+v", chunks)
	}
	for _, c := range chunks {
		if c.VectorScore < 0.5 {
			t.Fatalf("chunk %s below threshold survived", c.ID)
		}
	}
}

func TestRetrieveKeywordOnly(t *testing.T) {
	keyword := &fakeKeywordSearcher{hits: []domain.SearchHit{hit("k1", 2.0), hit("k2", 1.0)}}
	r := newTestRetriever(&fakeVectorSearcher{}, keyword)

	chunks, err := r.RetrieveKeywordOnly(context.Background(), "q", nil, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 || chunks[0].ID != "k1" {
		t.Fatalf("unexpected keyword results %+v", chunks)
	}
}
