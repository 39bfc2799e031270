package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEmbedQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", nil))
	vec, err := embedder.EmbedQuery(context.Background(), "what is docker")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3-dim vector, got %v", vec)
	}
}

func TestEmbedQueryIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed", nil))
	_, err := embedder.EmbedQuery(context.Background(), "hello")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestGenerateExpansionsBuildsPromptAndParsesLines(t *testing.T) {
	var capturedPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		capturedPrompt, _ = payload["prompt"].(string)
		_, _ = w.Write([]byte(`{"response":"1. docker installation guide\n2) setting up docker engine\n\n- docker setup walkthrough"}`))
	}))
	defer server.Close()

	expander := NewExpander(New(server.URL, "gen", "embed", nil))
	variants, err := expander.GenerateExpansions(context.Background(), "how to install docker", 3)
	if err != nil {
		t.Fatalf("GenerateExpansions() error = %v", err)
	}
	if !strings.Contains(capturedPrompt, "how to install docker") {
		t.Fatalf("unexpected prompt: %s", capturedPrompt)
	}
	want := []string{"docker installation guide", "setting up docker engine", "docker setup walkthrough"}
	if len(variants) != len(want) {
		t.Fatalf("expected %d variants, got %v", len(want), variants)
	}
	for i := range want {
		if variants[i] != want[i] {
			t.Fatalf("variant %d: expected %q, got %q", i, want[i], variants[i])
		}
	}
}

func TestGenerateExpansionsTruncatesToCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"one variant\ntwo variant\nthree variant\nfour variant"}`))
	}))
	defer server.Close()

	expander := NewExpander(New(server.URL, "gen", "embed", nil))
	variants, err := expander.GenerateExpansions(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("GenerateExpansions() error = %v", err)
	}
	if len(variants) != 2 {
		t.Fatalf("expected 2 variants, got %v", variants)
	}
}

func TestParseExpansionLinesStripsNumbering(t *testing.T) {
	variants := parseExpansionLines("1. first\n2) second\n- third\n\"quoted\"\n   \n")
	want := []string{"first", "second", "third", "quoted"}
	if len(variants) != len(want) {
		t.Fatalf("expected %d variants, got %v", len(want), variants)
	}
	for i := range want {
		if variants[i] != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], variants[i])
		}
	}
}
