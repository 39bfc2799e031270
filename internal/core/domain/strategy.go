package domain

type ServiceType string

const (
	ServiceTypeVector   ServiceType = "vector"
	ServiceTypeHybrid   ServiceType = "hybrid"
	ServiceTypeEnhanced ServiceType = "enhanced"
	ServiceTypeKeyword  ServiceType = "keyword"
)

// KnownServiceType reports whether s names one of the closed set of
// retrieval strategies the executor can dispatch on.
func KnownServiceType(s ServiceType) bool {
	switch s {
	case ServiceTypeVector, ServiceTypeHybrid, ServiceTypeEnhanced, ServiceTypeKeyword:
		return true
	default:
		return false
	}
}

// StrategyParams are the tunables a strategy carries into execution.
type StrategyParams struct {
	TopK                int     `json:"top_k" yaml:"top_k"`
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty" yaml:"similarity_threshold"`
	VectorWeight        float64 `json:"vector_weight,omitempty" yaml:"vector_weight"`
	KeywordWeight       float64 `json:"keyword_weight,omitempty" yaml:"keyword_weight"`
	ExpansionCount      int     `json:"expansion_count,omitempty" yaml:"expansion_count"`
	EnableExpansion     bool    `json:"enable_expansion" yaml:"enable_expansion"`
	EnableRerank        bool    `json:"enable_rerank" yaml:"enable_rerank"`
}

// RetrievalStrategy is the value object the scheduler produces per query.
// It is never shared or mutated after selection.
type RetrievalStrategy struct {
	ServiceType ServiceType    `json:"service_type"`
	Name        string         `json:"strategy_name"`
	Params      StrategyParams `json:"parameters"`
	Reasoning   string         `json:"reasoning"`
	Confidence  float64        `json:"confidence"`
}
