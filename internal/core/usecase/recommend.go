package usecase

import (
	"context"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
	"github.com/kirillkom/knowledge-retrieval-service/internal/core/ports"
)

var strategyDescriptions = map[domain.ServiceType]struct {
	name        string
	description string
	base        float64
}{
	domain.ServiceTypeVector:   {"vector_search", "semantic similarity search, fastest response", 0.6},
	domain.ServiceTypeKeyword:  {"keyword_search", "lexical match, best for exact terms and error messages", 0.5},
	domain.ServiceTypeHybrid:   {"hybrid_search", "fused semantic and lexical ranking, balanced precision/recall", 0.7},
	domain.ServiceTypeEnhanced: {"enhanced_pipeline", "expansion plus reranking, highest precision for complex queries", 0.55},
}

// RecommendStrategies previews all strategies for a query, ranked by how
// well each fits the recognized intent. The rule-selected strategy always
// ranks first.
func (p *RetrievalPipeline) RecommendStrategies(_ context.Context, text string, userCtx *domain.UserContext) ([]ports.StrategyRecommendation, error) {
	cleaned, err := p.preprocessor.Process(text)
	if err != nil {
		return nil, err
	}
	intent := p.recognizer.Recognize(cleaned, userCtx)
	selected := p.scheduler.Select(intent, "", 0)

	order := []domain.ServiceType{
		selected.ServiceType,
	}
	for _, s := range []domain.ServiceType{domain.ServiceTypeHybrid, domain.ServiceTypeVector, domain.ServiceTypeEnhanced, domain.ServiceTypeKeyword} {
		if s != selected.ServiceType {
			order = append(order, s)
		}
	}

	out := make([]ports.StrategyRecommendation, 0, len(order))
	for i, s := range order {
		info := strategyDescriptions[s]
		confidence := info.base
		if i == 0 {
			confidence = selected.Confidence + 0.1
			if confidence > 1.0 {
				confidence = 1.0
			}
		}
		out = append(out, ports.StrategyRecommendation{
			Strategy:    s,
			Name:        info.name,
			Description: info.description,
			Confidence:  confidence,
		})
	}
	return out, nil
}

// Health reports subcomponent wiring plus the rolling aggregate counters.
func (p *RetrievalPipeline) Health(_ context.Context) ports.ServiceHealth {
	components := map[string]bool{
		"intent_recognizer":  p.recognizer != nil,
		"strategy_scheduler": p.scheduler != nil,
		"query_expander":     p.expander != nil && p.expander.generator != nil,
		"hybrid_retriever":   p.retriever != nil,
		"metadata_filter":    p.filter != nil,
		"reranker":           p.reranker != nil && p.reranker.scorer != nil,
		"metadata_store":     p.metadata != nil,
		"feedback_queue":     p.feedback != nil,
	}
	status := "ok"
	if !components["hybrid_retriever"] {
		status = "degraded"
	}

	total, successful, failed, avgMs, usage, intents := p.stats.snapshot()
	return ports.ServiceHealth{
		Status:             status,
		Components:         components,
		TotalQueries:       total,
		SuccessfulQueries:  successful,
		FailedQueries:      failed,
		AvgResponseTimeMs:  avgMs,
		StrategyUsage:      usage,
		IntentDistribution: intents,
	}
}
