package domain

import "time"

type QueryType string

const (
	QueryTypeFactual         QueryType = "factual"
	QueryTypeConceptual      QueryType = "conceptual"
	QueryTypeProcedural      QueryType = "procedural"
	QueryTypeComparative     QueryType = "comparative"
	QueryTypeTroubleshooting QueryType = "troubleshooting"
)

type Complexity string

const (
	ComplexitySimple    Complexity = "simple"
	ComplexityComplex   Complexity = "complex"
	ComplexityMultiTurn Complexity = "multi_turn"
)

// ConversationTurn is one prior exchange carried in the user context.
type ConversationTurn struct {
	Query  string `json:"query"`
	Answer string `json:"answer,omitempty"`
}

// UserContext carries optional session state submitted with a query.
// The pipeline never mutates it.
type UserContext struct {
	UserID              string             `json:"user_id,omitempty"`
	ConversationHistory []ConversationTurn `json:"conversation_history,omitempty"`
}

// Query is a retrieval request. Immutable once submitted to the pipeline.
type Query struct {
	Text                string
	KnowledgeBaseIDs    []string
	Context             *UserContext
	ForceStrategy       ServiceType
	EnableLearning      bool
	TopK                int
	SimilarityThreshold float64
	Timeout             time.Duration
	Filter              *FilterSpec
}

// IntentInfo is the read-only classification derived from a query. Created
// once per query, never mutated afterwards.
type IntentInfo struct {
	QueryType  QueryType      `json:"query_type"`
	Complexity Complexity     `json:"complexity"`
	Confidence float64        `json:"confidence"`
	Features   map[string]any `json:"features"`
}
