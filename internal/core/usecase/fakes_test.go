package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeVectorSearcher struct {
	hits  []domain.SearchHit
	err   error
	delay time.Duration
	calls atomic.Int64
}

func (f *fakeVectorSearcher) SearchVector(ctx context.Context, _ []float32, _ []string, _ int) ([]domain.SearchHit, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

type fakeKeywordSearcher struct {
	hits  []domain.SearchHit
	err   error
	calls atomic.Int64
}

func (f *fakeKeywordSearcher) SearchKeyword(_ context.Context, _ string, _ []string, _ int) ([]domain.SearchHit, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

type fakeExpansionGenerator struct {
	variants []string
	err      error
}

func (f *fakeExpansionGenerator) GenerateExpansions(_ context.Context, _ string, _ int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.variants, nil
}

type fakePairScorer struct {
	scores map[string]float64
	err    error
	calls  atomic.Int64
}

func (f *fakePairScorer) ScorePairs(_ context.Context, _ string, texts []string) ([]float64, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float64, len(texts))
	for i, text := range texts {
		out[i] = f.scores[text]
	}
	return out, nil
}

type fakeMetadataStore struct {
	chunks map[string]domain.CandidateChunk
	err    error
}

func (f *fakeMetadataStore) FetchChunkMetadata(_ context.Context, ids []string) (map[string]domain.CandidateChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]domain.CandidateChunk, len(ids))
	for _, id := range ids {
		if c, ok := f.chunks[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

type fakeFeedbackQueue struct {
	published []domain.QueryFeedback
}

func (f *fakeFeedbackQueue) PublishQueryCompleted(_ context.Context, fb domain.QueryFeedback) error {
	f.published = append(f.published, fb)
	return nil
}

func (f *fakeFeedbackQueue) SubscribeQueryCompleted(_ context.Context, _ func(context.Context, domain.QueryFeedback) error) error {
	return errors.New("not implemented in fake")
}

func hit(id string, score float64) domain.SearchHit {
	return domain.SearchHit{ID: id, Score: score, Content: "content-" + id, KnowledgeBaseID: "kb-1"}
}

func newTestPipeline(vector *fakeVectorSearcher, keyword *fakeKeywordSearcher, generator *fakeExpansionGenerator, scorer *fakePairScorer) *RetrievalPipeline {
	// Typed nils must not leak into the port interfaces.
	expander := NewMultiQueryExpander(nil)
	if generator != nil {
		expander = NewMultiQueryExpander(generator)
	}
	reranker := NewReranker(nil)
	if scorer != nil {
		reranker = NewReranker(scorer)
	}
	return NewRetrievalPipeline(
		NewQueryPreprocessor(0),
		NewIntentRecognizer(),
		NewStrategyScheduler(nil),
		expander,
		NewHybridRetriever(&fakeEmbedder{}, vector, keyword, time.Second),
		NewMetadataFilter(),
		reranker,
		nil,
		nil,
	)
}
