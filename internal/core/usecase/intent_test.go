package usecase

import (
	"testing"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
)

func TestRecognizeChineseProceduralQuery(t *testing.T) {
	r := NewIntentRecognizer()

	intent := r.Recognize("如何安装Docker?", nil)
	if intent.QueryType != domain.QueryTypeProcedural {
		t.Fatalf("expected procedural, got %s", intent.QueryType)
	}
	if intent.Complexity != domain.ComplexitySimple {
		t.Fatalf("expected simple complexity, got %s", intent.Complexity)
	}
	if intent.Confidence <= 0.5 {
		t.Fatalf("expected matched-signal confidence above 0.5, got %v", intent.Confidence)
	}
}

func TestRecognizeComparativeQuery(t *testing.T) {
	r := NewIntentRecognizer()

	intent := r.Recognize("Docker vs Kubernetes for container orchestration", nil)
	if intent.QueryType != domain.QueryTypeComparative {
		t.Fatalf("expected comparative, got %s", intent.QueryType)
	}
}

func TestRecognizeTroubleshootingWinsOverProcedural(t *testing.T) {
	r := NewIntentRecognizer()

	// "如何" alone is procedural, but the error signal is more specific.
	intent := r.Recognize("如何解决容器启动报错的问题", nil)
	if intent.QueryType != domain.QueryTypeTroubleshooting {
		t.Fatalf("expected troubleshooting, got %s", intent.QueryType)
	}
}

func TestRecognizeComplexFromTokenCount(t *testing.T) {
	r := NewIntentRecognizer()

	intent := r.Recognize("explain the architecture of a distributed message queue system in detail", nil)
	if intent.QueryType != domain.QueryTypeConceptual {
		t.Fatalf("expected conceptual, got %s", intent.QueryType)
	}
	if intent.Complexity != domain.ComplexityComplex {
		t.Fatalf("expected complex from token count, got %s", intent.Complexity)
	}
}

func TestRecognizeMultiTurnFromHistory(t *testing.T) {
	r := NewIntentRecognizer()

	userCtx := &domain.UserContext{
		ConversationHistory: []domain.ConversationTurn{{Query: "tell me about docker"}},
	}
	intent := r.Recognize("what is a container", userCtx)
	if intent.Complexity != domain.ComplexityMultiTurn {
		t.Fatalf("expected multi_turn with history, got %s", intent.Complexity)
	}
}

func TestRecognizeUnmatchedDefaultsToFactual(t *testing.T) {
	r := NewIntentRecognizer()

	intent := r.Recognize("kubernetes networking", nil)
	if intent.QueryType != domain.QueryTypeFactual {
		t.Fatalf("expected factual default, got %s", intent.QueryType)
	}
	if intent.Confidence != 0.5 {
		t.Fatalf("expected default confidence 0.5, got %v", intent.Confidence)
	}
}

func TestRecognizeDeterministic(t *testing.T) {
	r := NewIntentRecognizer()

	first := r.Recognize("如何配置和部署nginx服务", nil)
	for i := 0; i < 10; i++ {
		again := r.Recognize("如何配置和部署nginx服务", nil)
		if again.QueryType != first.QueryType || again.Complexity != first.Complexity || again.Confidence != first.Confidence {
			t.Fatalf("classification is not deterministic: %+v vs %+v", first, again)
		}
	}
}
