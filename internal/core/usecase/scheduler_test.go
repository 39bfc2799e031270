package usecase

import (
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
)

func TestSelectRuleTable(t *testing.T) {
	s := NewStrategyScheduler(nil)

	cases := []struct {
		queryType  domain.QueryType
		complexity domain.Complexity
		service    domain.ServiceType
		topK       int
	}{
		{domain.QueryTypeFactual, domain.ComplexitySimple, domain.ServiceTypeVector, 5},
		{domain.QueryTypeFactual, domain.ComplexityComplex, domain.ServiceTypeHybrid, 10},
		{domain.QueryTypeConceptual, domain.ComplexitySimple, domain.ServiceTypeHybrid, 8},
		{domain.QueryTypeConceptual, domain.ComplexityComplex, domain.ServiceTypeEnhanced, 15},
		{domain.QueryTypeProcedural, domain.ComplexitySimple, domain.ServiceTypeKeyword, 6},
		{domain.QueryTypeProcedural, domain.ComplexityComplex, domain.ServiceTypeHybrid, 12},
		{domain.QueryTypeComparative, domain.ComplexitySimple, domain.ServiceTypeEnhanced, 20},
		{domain.QueryTypeComparative, domain.ComplexityMultiTurn, domain.ServiceTypeEnhanced, 20},
		{domain.QueryTypeTroubleshooting, domain.ComplexitySimple, domain.ServiceTypeKeyword, 5},
		{domain.QueryTypeTroubleshooting, domain.ComplexityComplex, domain.ServiceTypeHybrid, 15},
	}
	for _, tc := range cases {
		intent := domain.IntentInfo{QueryType: tc.queryType, Complexity: tc.complexity}
		got := s.Select(intent, "", 0)
		if got.ServiceType != tc.service {
			t.Fatalf("%s/%s: expected %s, got %s", tc.queryType, tc.complexity, tc.service, got.ServiceType)
		}
		if got.Params.TopK != tc.topK {
			t.Fatalf("%s/%s: expected top_k %d, got %d", tc.queryType, tc.complexity, tc.topK, got.Params.TopK)
		}
		if !strings.HasPrefix(got.Reasoning, "rule:") {
			t.Fatalf("%s/%s: expected rule reasoning, got %q", tc.queryType, tc.complexity, got.Reasoning)
		}
	}
}

func TestSelectForcedStrategyOverridesRules(t *testing.T) {
	s := NewStrategyScheduler(nil)

	intent := domain.IntentInfo{QueryType: domain.QueryTypeComparative, Complexity: domain.ComplexityComplex}
	got := s.Select(intent, domain.ServiceTypeKeyword, 0)
	if got.ServiceType != domain.ServiceTypeKeyword {
		t.Fatalf("expected forced keyword strategy, got %s", got.ServiceType)
	}
	if got.Reasoning != "forced:keyword" {
		t.Fatalf("unexpected reasoning %q", got.Reasoning)
	}
	if got.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0 for forced strategy, got %v", got.Confidence)
	}
}

func TestSelectUnknownForceFallsThroughToRules(t *testing.T) {
	s := NewStrategyScheduler(nil)

	intent := domain.IntentInfo{QueryType: domain.QueryTypeFactual, Complexity: domain.ComplexitySimple}
	got := s.Select(intent, "quantum", 0)
	if got.ServiceType != domain.ServiceTypeVector {
		t.Fatalf("expected rule selection for unknown forced type, got %s", got.ServiceType)
	}
}

func TestSelectFallbackForUnmatchedIntent(t *testing.T) {
	s := NewStrategyScheduler([]StrategyRule{
		{QueryType: domain.QueryTypeComparative, Strategy: forcedStrategyDefaults(domain.ServiceTypeEnhanced)},
	})

	intent := domain.IntentInfo{QueryType: domain.QueryTypeFactual, Complexity: domain.ComplexitySimple}
	got := s.Select(intent, "", 0)
	if got.ServiceType != domain.ServiceTypeVector {
		t.Fatalf("expected vector fallback, got %s", got.ServiceType)
	}
	if got.Reasoning != "fallback:unmatched_intent" {
		t.Fatalf("unexpected reasoning %q", got.Reasoning)
	}
	if got.Confidence != 0.5 {
		t.Fatalf("expected fallback confidence 0.5, got %v", got.Confidence)
	}
}

func TestSelectDowngradesOneStepWhenP95ExceedsBudget(t *testing.T) {
	s := NewStrategyScheduler(nil)
	for i := 0; i < 100; i++ {
		s.RecordLatency(domain.ServiceTypeEnhanced, 900*time.Millisecond)
	}

	intent := domain.IntentInfo{QueryType: domain.QueryTypeComparative, Complexity: domain.ComplexityComplex}
	got := s.Select(intent, "", time.Second)
	if got.ServiceType != domain.ServiceTypeHybrid {
		t.Fatalf("expected single-step downgrade to hybrid, got %s", got.ServiceType)
	}
	if !strings.Contains(got.Reasoning, "downgrade:enhanced->hybrid") {
		t.Fatalf("expected downgrade reasoning, got %q", got.Reasoning)
	}
	// The original rule's top_k survives the downgrade.
	if got.Params.TopK != 20 {
		t.Fatalf("expected top_k carried over, got %d", got.Params.TopK)
	}
}

func TestSelectNoDowngradeWithinBudget(t *testing.T) {
	s := NewStrategyScheduler(nil)
	for i := 0; i < 100; i++ {
		s.RecordLatency(domain.ServiceTypeEnhanced, 100*time.Millisecond)
	}

	intent := domain.IntentInfo{QueryType: domain.QueryTypeComparative, Complexity: domain.ComplexityComplex}
	got := s.Select(intent, "", time.Second)
	if got.ServiceType != domain.ServiceTypeEnhanced {
		t.Fatalf("expected enhanced to survive, got %s", got.ServiceType)
	}
}

func TestSelectKeywordHasNoFurtherDowngrade(t *testing.T) {
	s := NewStrategyScheduler(nil)
	for i := 0; i < 100; i++ {
		s.RecordLatency(domain.ServiceTypeKeyword, 2*time.Second)
	}

	intent := domain.IntentInfo{QueryType: domain.QueryTypeProcedural, Complexity: domain.ComplexitySimple}
	got := s.Select(intent, "", time.Second)
	if got.ServiceType != domain.ServiceTypeKeyword {
		t.Fatalf("keyword is the floor of the chain, got %s", got.ServiceType)
	}
}

func TestLatencyWindowP95(t *testing.T) {
	w := newLatencyWindow(100)
	for i := 1; i <= 100; i++ {
		w.Append(time.Duration(i) * time.Millisecond)
	}
	if got := w.P95(); got < 95*time.Millisecond || got > 97*time.Millisecond {
		t.Fatalf("unexpected p95 %v", got)
	}
}
