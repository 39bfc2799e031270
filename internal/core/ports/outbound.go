package ports

import (
	"context"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
)

// Embedder builds a vector for query text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher performs dense similarity search over chunk vectors.
type VectorSearcher interface {
	SearchVector(ctx context.Context, vector []float32, kbIDs []string, limit int) ([]domain.SearchHit, error)
}

// KeywordSearcher performs lexical search over chunk text.
type KeywordSearcher interface {
	SearchKeyword(ctx context.Context, text string, kbIDs []string, limit int) ([]domain.SearchHit, error)
}

// ExpansionGenerator produces paraphrased variants of a query via an
// external text-generation capability.
type ExpansionGenerator interface {
	GenerateExpansions(ctx context.Context, text string, n int) ([]string, error)
}

// PairScorer computes fine-grained (query, candidate) relevance scores,
// one score per candidate text, in request order.
type PairScorer interface {
	ScorePairs(ctx context.Context, query string, texts []string) ([]float64, error)
}

// ChunkMetadataStore hydrates candidate chunks with their stored metadata.
type ChunkMetadataStore interface {
	FetchChunkMetadata(ctx context.Context, ids []string) (map[string]domain.CandidateChunk, error)
}

// FeedbackQueue publishes/consumes query-completed learning events.
type FeedbackQueue interface {
	PublishQueryCompleted(ctx context.Context, feedback domain.QueryFeedback) error
	SubscribeQueryCompleted(ctx context.Context, handler func(context.Context, domain.QueryFeedback) error) error
}

// APIKeyStore resolves an opaque bearer key to its permission set.
type APIKeyStore interface {
	ResolveKey(ctx context.Context, key string) (*domain.APIKeyPermissions, error)
}
