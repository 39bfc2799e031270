package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/ports"
)

const minVariantTokens = 3

// MultiQueryExpander produces paraphrased query variants through an
// external generation capability. The original query is always the first
// element of the result; generation failure degrades to identity-only
// expansion and never raises.
type MultiQueryExpander struct {
	generator ports.ExpansionGenerator
}

func NewMultiQueryExpander(generator ports.ExpansionGenerator) *MultiQueryExpander {
	return &MultiQueryExpander{generator: generator}
}

// Expand returns up to count queries. The second return value reports
// whether any generated variant survived filtering, for diagnostics.
func (e *MultiQueryExpander) Expand(ctx context.Context, query string, count int) ([]string, bool) {
	out := []string{query}
	if count <= 1 || e.generator == nil {
		return out, false
	}

	variants, err := e.generator.GenerateExpansions(ctx, query, count-1)
	if err != nil {
		slog.Warn("query_expansion_degraded", "error", err)
		return out, false
	}

	seen := map[string]struct{}{strings.ToLower(strings.TrimSpace(query)): {}}
	for _, variant := range variants {
		variant = strings.TrimSpace(variant)
		if variant == "" || len(tokenizeQuery(strings.ToLower(variant))) < minVariantTokens {
			continue
		}
		key := strings.ToLower(variant)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, variant)
		if len(out) == count {
			break
		}
	}
	return out, len(out) > 1
}
