package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-retrieval-service/internal/infrastructure/resilience"
)

// Client scores (query, passage) pairs against a cross-encoder inference
// server speaking the text-embeddings-inference rerank API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

// ScorePairs returns one relevance score per text, in input order.
func (c *Client) ScorePairs(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var scores []float64
	call := func(callCtx context.Context) error {
		var err error
		scores, err = c.rerank(callCtx, query, texts)
		return err
	}
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "crossencoder.rerank", call, classifyRerankError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	return scores, nil
}

func (c *Client) rerank(ctx context.Context, query string, texts []string) ([]float64, error) {
	reqBody := map[string]any{
		"query": query,
		"texts": texts,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &statusError{status: resp.Status, code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}

	// The server returns ranked (index, score) entries; restore input order.
	var ranked []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ranked); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(ranked) != len(texts) {
		return nil, fmt.Errorf("rerank returned %d scores for %d texts", len(ranked), len(texts))
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Index < ranked[j].Index })

	out := make([]float64, len(texts))
	for i, entry := range ranked {
		if entry.Index != i {
			return nil, fmt.Errorf("rerank response missing index %d", i)
		}
		out[i] = entry.Score
	}
	return out, nil
}

type statusError struct {
	status string
	code   int
	body   string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("rerank status: %s", e.status)
	}
	return fmt.Sprintf("rerank status: %s: %s", e.status, e.body)
}

func classifyRerankError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		switch statusErr.code {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
