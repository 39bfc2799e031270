package crossencoder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestScorePairsRestoresInputOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			http.NotFound(w, r)
			return
		}
		var payload struct {
			Query string   `json:"query"`
			Texts []string `json:"texts"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.Query != "install docker" || len(payload.Texts) != 3 {
			t.Fatalf("unexpected request: %+v", payload)
		}
		// Ranked output, highest score first.
		_, _ = w.Write([]byte(`[{"index":2,"score":0.9},{"index":0,"score":0.5},{"index":1,"score":0.1}]`))
	}))
	defer server.Close()

	client := New(server.URL, time.Second, nil)
	scores, err := client.ScorePairs(context.Background(), "install docker", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("ScorePairs() error = %v", err)
	}
	want := []float64{0.5, 0.1, 0.9}
	for i := range want {
		if scores[i] != want[i] {
			t.Fatalf("score %d: expected %v, got %v", i, want[i], scores[i])
		}
	}
}

func TestScorePairsLengthMismatchIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"index":0,"score":0.5}]`))
	}))
	defer server.Close()

	client := New(server.URL, time.Second, nil)
	if _, err := client.ScorePairs(context.Background(), "q", []string{"a", "b"}); err == nil {
		t.Fatal("expected error for truncated score list")
	}
}

func TestScorePairsEmptyInput(t *testing.T) {
	client := New("http://127.0.0.1:1", time.Second, nil)
	scores, err := client.ScorePairs(context.Background(), "q", nil)
	if err != nil || scores != nil {
		t.Fatalf("expected nil result without a request, got %v / %v", scores, err)
	}
}

func TestScorePairsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, time.Second, nil)
	if _, err := client.ScorePairs(context.Background(), "q", []string{"a"}); err == nil {
		t.Fatal("expected error for 503 response")
	}
}
