package usecase

import (
	"strings"
	"unicode"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
)

const (
	simpleTokenThreshold = 8
	unmatchedConfidence  = 0.5
)

// typeSignals are evaluated in priority order: the most specific query
// shape wins when several keyword families match.
var typeSignals = []struct {
	queryType domain.QueryType
	keywords  []string
}{
	{domain.QueryTypeTroubleshooting, []string{
		"错误", "问题", "故障", "失败", "解决", "修复", "异常", "报错",
		"error", "problem", "issue", "fix", "solve", "troubleshoot", "fail", "exception",
	}},
	{domain.QueryTypeComparative, []string{
		"比较", "区别", "差异", "对比", "优劣",
		"compare", "difference", "versus", " vs ", "vs.", "vs ",
	}},
	{domain.QueryTypeProcedural, []string{
		"如何", "怎么", "怎样", "步骤", "方法", "流程", "操作", "安装", "配置", "部署",
		"how to", "how do", "step", "method", "process", "procedure", "install", "setup",
	}},
	{domain.QueryTypeConceptual, []string{
		"解释", "说明", "原理", "概念", "含义", "机制", "架构",
		"explain", "concept", "definition", "meaning", "principle", "architecture",
	}},
	{domain.QueryTypeFactual, []string{
		"什么是", "是什么", "多少", "何时", "哪里", "哪个", "谁", "定义", "介绍",
		"what is", "how many", "when", "where", "which", "who", "define", "introduction",
	}},
}

var clauseConnectors = []string{"和", "或", "与", "以及", "并且", " and ", " or ", " with ", ","}

// IntentRecognizer classifies query type and complexity from the query text
// plus optional user context. Pure function of its inputs: identical
// (text, context) always yields the identical IntentInfo.
type IntentRecognizer struct{}

func NewIntentRecognizer() *IntentRecognizer {
	return &IntentRecognizer{}
}

func (r *IntentRecognizer) Recognize(text string, userCtx *domain.UserContext) domain.IntentInfo {
	lower := strings.ToLower(text)

	queryType, matched := classifyQueryType(lower)
	tokens := tokenizeQuery(lower)
	clauses := countClauses(lower)

	complexity := domain.ComplexitySimple
	if len(tokens) >= simpleTokenThreshold || clauses > 1 {
		complexity = domain.ComplexityComplex
	}
	hasHistory := userCtx != nil && len(userCtx.ConversationHistory) > 0
	if hasHistory {
		complexity = domain.ComplexityMultiTurn
	}

	confidence := unmatchedConfidence
	if matched > 0 {
		confidence += 0.3
		switch complexity {
		case domain.ComplexitySimple:
			confidence += 0.1
		case domain.ComplexityComplex:
			confidence += 0.2
		}
		if hasHistory {
			confidence += 0.1
		}
		if confidence > 1.0 {
			confidence = 1.0
		}
	}

	features := map[string]any{
		"query_length":      len([]rune(text)),
		"token_count":       len(tokens),
		"clause_count":      clauses,
		"has_question_mark": strings.ContainsAny(text, "?？"),
		"matched_signals":   matched,
		"has_history":       hasHistory,
	}

	return domain.IntentInfo{
		QueryType:  queryType,
		Complexity: complexity,
		Confidence: confidence,
		Features:   features,
	}
}

func classifyQueryType(lower string) (domain.QueryType, int) {
	for _, signal := range typeSignals {
		matches := 0
		for _, kw := range signal.keywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		if matches > 0 {
			return signal.queryType, matches
		}
	}
	// Documented default, not silently zero-confidence.
	return domain.QueryTypeFactual, 0
}

func countClauses(lower string) int {
	clauses := 1
	for _, conn := range clauseConnectors {
		clauses += strings.Count(lower, conn)
	}
	return clauses
}

// tokenizeQuery splits latin/digit runs as words and counts each CJK rune
// as its own token, so Chinese queries are not collapsed into one field.
func tokenizeQuery(s string) []string {
	tokens := make([]string, 0, 16)
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	for _, r := range s {
		switch {
		case unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()
	return tokens
}
