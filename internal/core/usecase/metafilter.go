package usecase

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
)

// MetadataFilter applies structural/temporal/tag conditions to a candidate
// set. Conditions combine as a logical AND; a candidate missing a
// referenced field never passes.
type MetadataFilter struct{}

func NewMetadataFilter() *MetadataFilter {
	return &MetadataFilter{}
}

// Apply returns the filtered subset plus a bypassed flag: when every
// candidate would be removed and the spec allows falling back, the filter
// is skipped entirely instead of returning an empty result.
func (f *MetadataFilter) Apply(candidates []domain.CandidateChunk, spec *domain.FilterSpec) ([]domain.CandidateChunk, bool) {
	if spec == nil || len(spec.Conditions) == 0 {
		return candidates, false
	}

	out := make([]domain.CandidateChunk, 0, len(candidates))
	for _, c := range candidates {
		if matchesAll(c.Metadata, spec.Conditions) {
			out = append(out, c)
		}
	}

	if len(out) == 0 && len(candidates) > 0 && spec.FallbackToAll {
		slog.Info("metadata_filter_bypassed", "conditions", len(spec.Conditions), "candidates", len(candidates))
		return candidates, true
	}
	return out, false
}

func matchesAll(metadata map[string]any, conditions []domain.FilterCondition) bool {
	for _, cond := range conditions {
		value, ok := metadata[cond.Field]
		if !ok {
			return false
		}
		if !evaluate(value, cond) {
			return false
		}
	}
	return true
}

func evaluate(value any, cond domain.FilterCondition) bool {
	switch cond.Operator {
	case domain.FilterOpEq:
		return asComparable(value) == asComparable(cond.Value)
	case domain.FilterOpIn:
		list, ok := cond.Value.([]any)
		if !ok {
			if strList, sok := cond.Value.([]string); sok {
				for _, item := range strList {
					if asComparable(value) == item {
						return true
					}
				}
			}
			return false
		}
		for _, item := range list {
			if asComparable(value) == asComparable(item) {
				return true
			}
		}
		return false
	case domain.FilterOpGt:
		fv, fok := asNumber(value)
		cv, cok := asNumber(cond.Value)
		return fok && cok && fv > cv
	case domain.FilterOpLt:
		fv, fok := asNumber(value)
		cv, cok := asNumber(cond.Value)
		return fok && cok && fv < cv
	default:
		// Conservative: an unknown operator filters nothing out of the
		// candidate it guards.
		return false
	}
}

func asComparable(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		n, err := strconv.ParseFloat(t, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
