package domain

import "time"

// CandidateChunk is the atomic retrieval unit: one stored piece of
// document/image content plus its scores and provenance.
type CandidateChunk struct {
	ID              string `json:"id"`
	Content         string `json:"content"`
	KnowledgeBaseID string `json:"knowledge_base_id"`
	SourceFile      string `json:"source_file,omitempty"`

	SourceScore  float64 `json:"score"`
	VectorScore  float64 `json:"vector_score,omitempty"`
	KeywordScore float64 `json:"keyword_score,omitempty"`
	FusedScore   float64 `json:"fused_score,omitempty"`
	RerankScore  float64 `json:"rerank_score,omitempty"`

	// MatchedVariant is the expansion variant that produced the winning
	// fused score for this chunk.
	MatchedVariant string         `json:"matched_variant,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// FinalScore is the ordering key of the pipeline output: rerank score when
// reranking was applied, otherwise the fused score, otherwise the raw
// source score.
func (c CandidateChunk) FinalScore() float64 {
	if c.RerankScore != 0 {
		return c.RerankScore
	}
	if c.FusedScore != 0 {
		return c.FusedScore
	}
	return c.SourceScore
}

// SearchHit is the raw (id, score) pair a retrieval path returns before
// metadata hydration.
type SearchHit struct {
	ID              string
	Score           float64
	Content         string
	KnowledgeBaseID string
	SourceFile      string
	Metadata        map[string]any
}

type FilterOperator string

const (
	FilterOpEq FilterOperator = "eq"
	FilterOpIn FilterOperator = "in"
	FilterOpGt FilterOperator = "gt"
	FilterOpLt FilterOperator = "lt"
)

// FilterCondition is one metadata predicate. Conditions in a FilterSpec
// combine as a logical AND.
type FilterCondition struct {
	Field    string         `json:"field"`
	Operator FilterOperator `json:"operator"`
	Value    any            `json:"value"`
}

type FilterSpec struct {
	Conditions    []FilterCondition `json:"conditions"`
	FallbackToAll bool              `json:"fallback_to_all"`
}

// StageMetric records one pipeline stage transition.
type StageMetric struct {
	Stage         string        `json:"stage"`
	Elapsed       time.Duration `json:"-"`
	ElapsedMillis float64       `json:"elapsed_ms"`
	CandidatesIn  int           `json:"candidates_in"`
	CandidatesOut int           `json:"candidates_out"`
}

// PerformanceMetrics accumulates per-stage timings and the degradation
// flags the response surfaces as diagnostics.
type PerformanceMetrics struct {
	Stages           []StageMetric `json:"stages"`
	TotalElapsed     time.Duration `json:"-"`
	TotalMillis      float64       `json:"total_ms"`
	ExpansionApplied bool          `json:"expansion_applied"`
	RerankApplied    bool          `json:"rerank_applied"`
	FilterBypassed   bool          `json:"filter_bypassed"`
	DegradedPath     string        `json:"degraded_path,omitempty"`
	Degraded         bool          `json:"degraded"`
}

// RecordStage appends one stage transition with its timing and counts.
func (m *PerformanceMetrics) RecordStage(stage string, start time.Time, in, out int) {
	elapsed := time.Since(start)
	m.Stages = append(m.Stages, StageMetric{
		Stage:         stage,
		Elapsed:       elapsed,
		ElapsedMillis: float64(elapsed.Microseconds()) / 1000.0,
		CandidatesIn:  in,
		CandidatesOut: out,
	})
}

// RetrievalResult is the final, ordered response of one pipeline run.
type RetrievalResult struct {
	Chunks   []CandidateChunk   `json:"results"`
	Strategy RetrievalStrategy  `json:"strategy_used"`
	Intent   IntentInfo         `json:"intent_analysis"`
	Metrics  PerformanceMetrics `json:"performance_metrics"`
}
