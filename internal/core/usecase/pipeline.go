package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
	"github.com/kirillkom/knowledge-retrieval-service/internal/core/ports"
)

// Pipeline stage names, in execution order. Failed is terminal and
// reachable from any stage.
const (
	StagePreprocess = "preprocess"
	StageIntent     = "intent_classification"
	StageStrategy   = "strategy_selection"
	StageExpansion  = "query_expansion"
	StageRetrieval  = "retrieval"
	StageFilter     = "metadata_filter"
	StageRerank     = "rerank"
)

const (
	DefaultTimeout = 5 * time.Second
	DefaultTopK    = 10

	// Remaining-budget floor below which the skippable stages (expansion,
	// rerank) are dropped in favor of finishing within the deadline.
	skippableStageBudget = 300 * time.Millisecond
)

// RetrievalPipeline sequences preprocessing, intent classification,
// strategy selection, expansion, retrieval, filtering, reranking and
// truncation under one deadline, degrading stage by stage instead of
// failing outright.
type RetrievalPipeline struct {
	preprocessor *QueryPreprocessor
	recognizer   *IntentRecognizer
	scheduler    *StrategyScheduler
	expander     *MultiQueryExpander
	retriever    *HybridRetriever
	filter       *MetadataFilter
	reranker     *Reranker

	metadata ports.ChunkMetadataStore
	feedback ports.FeedbackQueue

	stats *serviceStats
}

func NewRetrievalPipeline(
	preprocessor *QueryPreprocessor,
	recognizer *IntentRecognizer,
	scheduler *StrategyScheduler,
	expander *MultiQueryExpander,
	retriever *HybridRetriever,
	filter *MetadataFilter,
	reranker *Reranker,
	metadata ports.ChunkMetadataStore,
	feedback ports.FeedbackQueue,
) *RetrievalPipeline {
	return &RetrievalPipeline{
		preprocessor: preprocessor,
		recognizer:   recognizer,
		scheduler:    scheduler,
		expander:     expander,
		retriever:    retriever,
		filter:       filter,
		reranker:     reranker,
		metadata:     metadata,
		feedback:     feedback,
		stats:        newServiceStats(),
	}
}

// Search runs one query through the full pipeline.
func (p *RetrievalPipeline) Search(ctx context.Context, q domain.Query) (*domain.RetrievalResult, error) {
	started := time.Now()

	timeout := q.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := p.run(ctx, q, timeout)
	elapsed := time.Since(started)

	if err != nil {
		p.stats.recordFailure(elapsed)
		return nil, err
	}

	result.Metrics.TotalElapsed = elapsed
	result.Metrics.TotalMillis = float64(elapsed.Microseconds()) / 1000.0

	p.scheduler.RecordLatency(result.Strategy.ServiceType, elapsed)
	p.stats.recordSuccess(result.Strategy.ServiceType, result.Intent.QueryType, elapsed, len(result.Chunks))
	p.publishFeedback(q, result, elapsed)

	return result, nil
}

func (p *RetrievalPipeline) run(ctx context.Context, q domain.Query, timeout time.Duration) (*domain.RetrievalResult, error) {
	metrics := domain.PerformanceMetrics{}

	// Preprocess. Invalid input is the one failure that precedes all work.
	stageStart := time.Now()
	cleaned, err := p.preprocessor.Process(q.Text)
	if err != nil {
		return nil, err
	}
	metrics.RecordStage(StagePreprocess, stageStart, 0, 0)

	// Intent classification: pure computation, never suspends.
	stageStart = time.Now()
	intent := p.recognizer.Recognize(cleaned, q.Context)
	metrics.RecordStage(StageIntent, stageStart, 0, 0)

	// Strategy selection.
	stageStart = time.Now()
	strategy := p.scheduler.Select(intent, q.ForceStrategy, timeout)
	applyQueryOverrides(&strategy, q)
	metrics.RecordStage(StageStrategy, stageStart, 0, 0)

	// Expansion: skippable under deadline pressure.
	variants := []string{cleaned}
	if strategy.Params.EnableExpansion {
		stageStart = time.Now()
		if budgetLow(ctx) {
			metrics.Degraded = true
			slog.Info("expansion_skipped_low_budget", "strategy", strategy.ServiceType)
		} else {
			count := strategy.Params.ExpansionCount
			if count <= 0 {
				count = 3
			}
			variants, metrics.ExpansionApplied = p.expander.Expand(ctx, cleaned, count+1)
		}
		metrics.RecordStage(StageExpansion, stageStart, 1, len(variants))
	}

	// Retrieval: not skippable. A deadline hit here short-circuits to an
	// empty degraded result rather than a hard failure.
	stageStart = time.Now()
	candidates, err := p.executeStrategy(ctx, strategy, cleaned, variants, q.KnowledgeBaseIDs, &metrics)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			metrics.Degraded = true
			metrics.RecordStage(StageRetrieval, stageStart, 0, 0)
			return p.finishResult(nil, strategy, intent, metrics), nil
		}
		return nil, err
	}
	p.hydrateMetadata(ctx, candidates)
	metrics.RecordStage(StageRetrieval, stageStart, len(variants), len(candidates))

	// Metadata filter: not skippable.
	stageStart = time.Now()
	inCount := len(candidates)
	candidates, metrics.FilterBypassed = p.filter.Apply(candidates, q.Filter)
	metrics.RecordStage(StageFilter, stageStart, inCount, len(candidates))

	// Rerank: skippable.
	topK := strategy.Params.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if strategy.Params.EnableRerank {
		stageStart = time.Now()
		inCount = len(candidates)
		if budgetLow(ctx) {
			metrics.Degraded = true
			candidates = trimCandidates(candidates, topK)
			slog.Info("rerank_skipped_low_budget", "strategy", strategy.ServiceType)
		} else {
			candidates, metrics.RerankApplied = p.reranker.Rerank(ctx, cleaned, candidates, topK)
		}
		metrics.RecordStage(StageRerank, stageStart, inCount, len(candidates))
	} else {
		candidates = trimCandidates(candidates, topK)
	}

	return p.finishResult(candidates, strategy, intent, metrics), nil
}

// executeStrategy is the closed dispatch over the strategy variants; adding
// a service type requires extending this switch.
func (p *RetrievalPipeline) executeStrategy(
	ctx context.Context,
	strategy domain.RetrievalStrategy,
	query string,
	variants []string,
	kbIDs []string,
	metrics *domain.PerformanceMetrics,
) ([]domain.CandidateChunk, error) {
	topK := strategy.Params.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	switch strategy.ServiceType {
	case domain.ServiceTypeVector:
		return p.retriever.RetrieveVectorOnly(ctx, query, kbIDs, topK, strategy.Params.SimilarityThreshold)
	case domain.ServiceTypeKeyword:
		return p.retriever.RetrieveKeywordOnly(ctx, query, kbIDs, topK)
	case domain.ServiceTypeHybrid:
		chunks, degradedPath, err := p.retriever.Retrieve(ctx, []string{query}, kbIDs, topK, strategy.Params.VectorWeight, strategy.Params.KeywordWeight)
		metrics.DegradedPath = degradedPath
		return chunks, err
	case domain.ServiceTypeEnhanced:
		chunks, degradedPath, err := p.retriever.Retrieve(ctx, variants, kbIDs, topK, strategy.Params.VectorWeight, strategy.Params.KeywordWeight)
		metrics.DegradedPath = degradedPath
		return chunks, err
	default:
		return p.retriever.RetrieveVectorOnly(ctx, query, kbIDs, topK, 0)
	}
}

// hydrateMetadata backfills stored chunk metadata. Hydration failure is
// diagnostic only; ranked results stand on their own.
func (p *RetrievalPipeline) hydrateMetadata(ctx context.Context, candidates []domain.CandidateChunk) {
	if p.metadata == nil || len(candidates) == 0 {
		return
	}
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	stored, err := p.metadata.FetchChunkMetadata(ctx, ids)
	if err != nil {
		slog.Warn("chunk_metadata_hydration_failed", "error", err)
		return
	}
	for i := range candidates {
		full, ok := stored[candidates[i].ID]
		if !ok {
			continue
		}
		if candidates[i].Content == "" {
			candidates[i].Content = full.Content
		}
		if candidates[i].KnowledgeBaseID == "" {
			candidates[i].KnowledgeBaseID = full.KnowledgeBaseID
		}
		if candidates[i].SourceFile == "" {
			candidates[i].SourceFile = full.SourceFile
		}
		if len(full.Metadata) > 0 {
			merged := make(map[string]any, len(full.Metadata)+len(candidates[i].Metadata))
			for k, v := range full.Metadata {
				merged[k] = v
			}
			for k, v := range candidates[i].Metadata {
				merged[k] = v
			}
			candidates[i].Metadata = merged
		}
	}
}

func (p *RetrievalPipeline) finishResult(chunks []domain.CandidateChunk, strategy domain.RetrievalStrategy, intent domain.IntentInfo, metrics domain.PerformanceMetrics) *domain.RetrievalResult {
	if metrics.DegradedPath != "" {
		metrics.Degraded = true
	}
	if chunks == nil {
		chunks = []domain.CandidateChunk{}
	}
	return &domain.RetrievalResult{
		Chunks:   chunks,
		Strategy: strategy,
		Intent:   intent,
		Metrics:  metrics,
	}
}

func (p *RetrievalPipeline) publishFeedback(q domain.Query, result *domain.RetrievalResult, elapsed time.Duration) {
	if !q.EnableLearning || p.feedback == nil {
		return
	}
	// Learning events are best-effort; publishing must not delay or fail
	// the response.
	publishCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	feedback := domain.QueryFeedback{
		QueryType:   result.Intent.QueryType,
		Complexity:  result.Intent.Complexity,
		ServiceType: result.Strategy.ServiceType,
		ResultCount: len(result.Chunks),
		Degraded:    result.Metrics.Degraded,
		Elapsed:     elapsed,
		ElapsedMs:   float64(elapsed.Microseconds()) / 1000.0,
		ObservedAt:  time.Now().UTC(),
	}
	if err := p.feedback.PublishQueryCompleted(publishCtx, feedback); err != nil {
		slog.Warn("feedback_publish_failed", "error", err)
	}
}

// applyQueryOverrides lets the caller bound result count and similarity
// threshold regardless of the selected strategy's defaults.
func applyQueryOverrides(strategy *domain.RetrievalStrategy, q domain.Query) {
	if q.TopK > 0 {
		strategy.Params.TopK = q.TopK
	}
	if q.SimilarityThreshold > 0 {
		strategy.Params.SimilarityThreshold = q.SimilarityThreshold
	}
}

func budgetLow(ctx context.Context) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return false
	}
	return time.Until(deadline) < skippableStageBudget
}
