package ports

import (
	"context"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
)

// IntelligentSearcher is the inbound contract for intent-aware retrieval.
type IntelligentSearcher interface {
	Search(ctx context.Context, query domain.Query) (*domain.RetrievalResult, error)
}

// StrategyRecommendation ranks one candidate strategy for a query.
type StrategyRecommendation struct {
	Strategy    domain.ServiceType `json:"strategy"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Confidence  float64            `json:"confidence"`
}

// StrategyRecommender previews which strategies suit a query, without
// executing retrieval.
type StrategyRecommender interface {
	RecommendStrategies(ctx context.Context, text string, userCtx *domain.UserContext) ([]StrategyRecommendation, error)
}

// ServiceHealth is the health endpoint payload: subcomponent liveness plus
// rolling aggregate counters.
type ServiceHealth struct {
	Status             string            `json:"status"`
	Components         map[string]bool   `json:"components"`
	TotalQueries       uint64            `json:"total_queries"`
	SuccessfulQueries  uint64            `json:"successful_queries"`
	FailedQueries      uint64            `json:"failed_queries"`
	AvgResponseTimeMs  float64           `json:"avg_response_time"`
	StrategyUsage      map[string]uint64 `json:"strategy_usage"`
	IntentDistribution map[string]uint64 `json:"intent_distribution"`
}

// HealthReporter exposes aggregate service state.
type HealthReporter interface {
	Health(ctx context.Context) ServiceHealth
}
