package usecase

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
)

const DefaultMaxQueryLength = 2000

const collapsiblePunct = "!?.,;:！？。，；："

// QueryPreprocessor normalizes raw query text before any other stage runs.
// Side-effect free.
type QueryPreprocessor struct {
	maxLength int
}

func NewQueryPreprocessor(maxLength int) *QueryPreprocessor {
	if maxLength <= 0 {
		maxLength = DefaultMaxQueryLength
	}
	return &QueryPreprocessor{maxLength: maxLength}
}

// Process trims whitespace, collapses repeated punctuation and strips
// control characters. Empty or over-length input is rejected before any
// downstream work happens.
func (p *QueryPreprocessor) Process(raw string) (string, error) {
	if utf8.RuneCountInString(raw) > p.maxLength {
		return "", domain.WrapError(domain.ErrInvalidQuery, "preprocess query", errors.New("query exceeds maximum length"))
	}

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, raw)

	cleaned = collapseRepeatedPunct(cleaned)
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if cleaned == "" {
		return "", domain.WrapError(domain.ErrInvalidQuery, "preprocess query", errors.New("empty query"))
	}
	return cleaned, nil
}

// collapseRepeatedPunct reduces a run of one repeated punctuation mark to
// a single occurrence. Runs of distinct marks are left alone.
func collapseRepeatedPunct(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prev := rune(-1)
	for _, r := range s {
		if r == prev && strings.ContainsRune(collapsiblePunct, r) {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}
