package usecase

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
)

const (
	latencyWindowSize   = 1000
	latencyBudgetFactor = 0.8
	ruleMatchConfidence = 0.8
	fallbackConfidence  = 0.5
	forcedConfidence    = 1.0
)

// degradationOrder is the fixed one-step downgrade chain applied when a
// strategy's rolling p95 latency threatens the caller's budget.
var degradationOrder = map[domain.ServiceType]domain.ServiceType{
	domain.ServiceTypeEnhanced: domain.ServiceTypeHybrid,
	domain.ServiceTypeHybrid:   domain.ServiceTypeVector,
	domain.ServiceTypeVector:   domain.ServiceTypeKeyword,
}

// StrategyRule maps an intent shape to a concrete strategy. Empty
// QueryType/Complexity match any value; rules are evaluated in order.
type StrategyRule struct {
	QueryType  domain.QueryType  `yaml:"query_type"`
	Complexity domain.Complexity `yaml:"complexity"`
	Strategy   domain.RetrievalStrategy
}

// DefaultStrategyRules is the compiled-in rule table; a YAML file can
// replace it at startup.
func DefaultStrategyRules() []StrategyRule {
	return []StrategyRule{
		{domain.QueryTypeFactual, domain.ComplexitySimple, domain.RetrievalStrategy{
			ServiceType: domain.ServiceTypeVector, Name: "vector_search",
			Params: domain.StrategyParams{TopK: 5, SimilarityThreshold: 0.8},
		}},
		{domain.QueryTypeFactual, "", domain.RetrievalStrategy{
			ServiceType: domain.ServiceTypeHybrid, Name: "hybrid_search",
			Params: domain.StrategyParams{TopK: 10, VectorWeight: 0.8, KeywordWeight: 0.2},
		}},
		{domain.QueryTypeConceptual, domain.ComplexitySimple, domain.RetrievalStrategy{
			ServiceType: domain.ServiceTypeHybrid, Name: "hybrid_search",
			Params: domain.StrategyParams{TopK: 8, VectorWeight: 0.7, KeywordWeight: 0.3},
		}},
		{domain.QueryTypeConceptual, "", domain.RetrievalStrategy{
			ServiceType: domain.ServiceTypeEnhanced, Name: "enhanced_pipeline",
			Params: domain.StrategyParams{TopK: 15, VectorWeight: 0.7, KeywordWeight: 0.3, EnableExpansion: true, EnableRerank: true, ExpansionCount: 3},
		}},
		{domain.QueryTypeProcedural, domain.ComplexitySimple, domain.RetrievalStrategy{
			ServiceType: domain.ServiceTypeKeyword, Name: "keyword_search",
			Params: domain.StrategyParams{TopK: 6},
		}},
		{domain.QueryTypeProcedural, "", domain.RetrievalStrategy{
			ServiceType: domain.ServiceTypeHybrid, Name: "hybrid_search",
			Params: domain.StrategyParams{TopK: 12, VectorWeight: 0.6, KeywordWeight: 0.4},
		}},
		{domain.QueryTypeComparative, "", domain.RetrievalStrategy{
			ServiceType: domain.ServiceTypeEnhanced, Name: "enhanced_pipeline",
			Params: domain.StrategyParams{TopK: 20, VectorWeight: 0.7, KeywordWeight: 0.3, EnableExpansion: true, EnableRerank: true, ExpansionCount: 3},
		}},
		{domain.QueryTypeTroubleshooting, domain.ComplexitySimple, domain.RetrievalStrategy{
			ServiceType: domain.ServiceTypeKeyword, Name: "keyword_search",
			Params: domain.StrategyParams{TopK: 5},
		}},
		{domain.QueryTypeTroubleshooting, "", domain.RetrievalStrategy{
			ServiceType: domain.ServiceTypeHybrid, Name: "hybrid_search",
			Params: domain.StrategyParams{TopK: 15, VectorWeight: 0.5, KeywordWeight: 0.5},
		}},
	}
}

// forcedStrategyDefaults back operator/test overrides via force_strategy.
func forcedStrategyDefaults(service domain.ServiceType) domain.RetrievalStrategy {
	switch service {
	case domain.ServiceTypeHybrid:
		return domain.RetrievalStrategy{
			ServiceType: domain.ServiceTypeHybrid, Name: "hybrid_search",
			Params: domain.StrategyParams{TopK: 10, VectorWeight: 0.7, KeywordWeight: 0.3},
		}
	case domain.ServiceTypeEnhanced:
		return domain.RetrievalStrategy{
			ServiceType: domain.ServiceTypeEnhanced, Name: "enhanced_pipeline",
			Params: domain.StrategyParams{TopK: 15, VectorWeight: 0.7, KeywordWeight: 0.3, EnableExpansion: true, EnableRerank: true, ExpansionCount: 3},
		}
	case domain.ServiceTypeKeyword:
		return domain.RetrievalStrategy{
			ServiceType: domain.ServiceTypeKeyword, Name: "keyword_search",
			Params: domain.StrategyParams{TopK: 10},
		}
	default:
		return domain.RetrievalStrategy{
			ServiceType: domain.ServiceTypeVector, Name: "vector_search",
			Params: domain.StrategyParams{TopK: 10, SimilarityThreshold: 0.7},
		}
	}
}

// latencyWindow is a bounded append-only ring of observed latencies, read
// through copy-on-read snapshots so concurrent selections never observe
// in-place mutation.
type latencyWindow struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
}

func newLatencyWindow(size int) *latencyWindow {
	return &latencyWindow{samples: make([]time.Duration, size)}
}

func (w *latencyWindow) Append(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[w.next] = d
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
}

func (w *latencyWindow) Snapshot() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.next
	if w.full {
		n = len(w.samples)
	}
	out := make([]time.Duration, n)
	copy(out, w.samples[:n])
	return out
}

func (w *latencyWindow) P95() time.Duration {
	snap := w.Snapshot()
	if len(snap) == 0 {
		return 0
	}
	sort.Slice(snap, func(i, j int) bool { return snap[i] < snap[j] })
	idx := (len(snap) * 95) / 100
	if idx >= len(snap) {
		idx = len(snap) - 1
	}
	return snap[idx]
}

// StrategyScheduler maps an IntentInfo to a RetrievalStrategy: rule lookup
// first, then a conservative one-step downgrade when the rolling p95 of the
// selected strategy exceeds the caller's budget. The windows only ever
// downgrade a selection, never upgrade it.
type StrategyScheduler struct {
	rules []StrategyRule

	mu      sync.Mutex
	windows map[domain.ServiceType]*latencyWindow
}

func NewStrategyScheduler(rules []StrategyRule) *StrategyScheduler {
	if len(rules) == 0 {
		rules = DefaultStrategyRules()
	}
	return &StrategyScheduler{
		rules:   rules,
		windows: make(map[domain.ServiceType]*latencyWindow),
	}
}

// Select never fails: a novel intent falls back to vector search.
func (s *StrategyScheduler) Select(intent domain.IntentInfo, force domain.ServiceType, timeout time.Duration) domain.RetrievalStrategy {
	if force != "" && domain.KnownServiceType(force) {
		strategy := forcedStrategyDefaults(force)
		strategy.Reasoning = fmt.Sprintf("forced:%s", force)
		strategy.Confidence = forcedConfidence
		return strategy
	}

	strategy, matchedRule := s.ruleLookup(intent)
	if matchedRule {
		strategy.Reasoning = fmt.Sprintf("rule:%s/%s", intent.QueryType, intent.Complexity)
		strategy.Confidence = ruleMatchConfidence
	} else {
		strategy.Reasoning = "fallback:unmatched_intent"
		strategy.Confidence = fallbackConfidence
	}

	return s.applyBudgetDowngrade(strategy, timeout)
}

func (s *StrategyScheduler) ruleLookup(intent domain.IntentInfo) (domain.RetrievalStrategy, bool) {
	for _, rule := range s.rules {
		if rule.QueryType != "" && rule.QueryType != intent.QueryType {
			continue
		}
		if rule.Complexity != "" && rule.Complexity != intent.Complexity {
			continue
		}
		return rule.Strategy, true
	}
	return forcedStrategyDefaults(domain.ServiceTypeVector), false
}

// applyBudgetDowngrade steps down at most once per call.
func (s *StrategyScheduler) applyBudgetDowngrade(strategy domain.RetrievalStrategy, timeout time.Duration) domain.RetrievalStrategy {
	if timeout <= 0 {
		return strategy
	}
	p95 := s.window(strategy.ServiceType).P95()
	if p95 == 0 {
		return strategy
	}
	budget := time.Duration(float64(timeout) * latencyBudgetFactor)
	if p95 <= budget {
		return strategy
	}
	cheaper, ok := degradationOrder[strategy.ServiceType]
	if !ok {
		return strategy
	}

	downgraded := forcedStrategyDefaults(cheaper)
	downgraded.Params.TopK = strategy.Params.TopK
	downgraded.Reasoning = strategy.Reasoning + fmt.Sprintf(" downgrade:%s->%s(p95_over_budget)", strategy.ServiceType, cheaper)
	downgraded.Confidence = strategy.Confidence
	return downgraded
}

// RecordLatency feeds the rolling window used for budget downgrades.
func (s *StrategyScheduler) RecordLatency(service domain.ServiceType, elapsed time.Duration) {
	s.window(service).Append(elapsed)
}

// P95Latency exposes the current rolling p95 for diagnostics.
func (s *StrategyScheduler) P95Latency(service domain.ServiceType) time.Duration {
	return s.window(service).P95()
}

func (s *StrategyScheduler) window(service domain.ServiceType) *latencyWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[service]
	if !ok {
		w = newLatencyWindow(latencyWindowSize)
		s.windows[service] = w
	}
	return w
}
