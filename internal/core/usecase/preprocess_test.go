package usecase

import (
	"strings"
	"testing"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
)

func TestPreprocessNormalizesWhitespaceAndPunctuation(t *testing.T) {
	p := NewQueryPreprocessor(0)

	got, err := p.Process("  what   is\tdocker???  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "what is docker?" {
		t.Fatalf("expected normalized query, got %q", got)
	}
}

func TestPreprocessStripsControlCharacters(t *testing.T) {
	p := NewQueryPreprocessor(0)

	got, err := p.Process("install\x00 docker\x07 now")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "install docker now" {
		t.Fatalf("expected control characters stripped, got %q", got)
	}
}

func TestPreprocessRejectsEmptyQuery(t *testing.T) {
	p := NewQueryPreprocessor(0)

	if _, err := p.Process("   \t  "); !domain.IsKind(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery for blank input, got %v", err)
	}
}

func TestPreprocessRejectsOverlongQuery(t *testing.T) {
	p := NewQueryPreprocessor(100)

	if _, err := p.Process(strings.Repeat("a", 101)); !domain.IsKind(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery for overlong input, got %v", err)
	}
}

func TestPreprocessLengthLimitCountsCharactersNotBytes(t *testing.T) {
	p := NewQueryPreprocessor(2000)

	got, err := p.Process(strings.Repeat("安", 700))
	if err != nil {
		t.Fatalf("unexpected error for 700-character query: %v", err)
	}
	if got != strings.Repeat("安", 700) {
		t.Fatalf("expected query unchanged, got %d characters", len([]rune(got)))
	}

	if _, err := p.Process(strings.Repeat("安", 2001)); !domain.IsKind(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery past the character limit, got %v", err)
	}
}

func TestPreprocessCollapsesRepeatedPunctuation(t *testing.T) {
	p := NewQueryPreprocessor(0)

	cases := []struct {
		in   string
		want string
	}{
		{"docker broken!!!", "docker broken!"},
		{"如何安装docker？？？", "如何安装docker？"},
		{"really?!", "really?!"},
		{"wait... what???", "wait. what?"},
	}
	for _, tc := range cases {
		got, err := p.Process(tc.in)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("Process(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
