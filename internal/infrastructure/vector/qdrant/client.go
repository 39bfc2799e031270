package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
)

const sparseVectorName = "text_sparse"

// Client talks to one Qdrant collection over its HTTP API. The collection
// holds both a dense vector per chunk and a named sparse vector for
// lexical matching, so a single store serves both retrieval paths.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
}

func New(baseURL, collection string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SearchVector runs dense similarity search, restricted to the given
// knowledge bases when any are named.
func (c *Client) SearchVector(ctx context.Context, vector []float32, kbIDs []string, limit int) ([]domain.SearchHit, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if f := kbFilter(kbIDs); f != nil {
		reqBody["filter"] = f
	}
	return c.search(ctx, reqBody)
}

// SearchKeyword runs lexical search against the sparse text vector.
func (c *Client) SearchKeyword(ctx context.Context, query string, kbIDs []string, limit int) ([]domain.SearchHit, error) {
	sparse := encodeSparseQuery(query)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   sparseVectorName,
			"vector": sparse,
		},
		"limit":        limit,
		"with_payload": true,
	}
	if f := kbFilter(kbIDs); f != nil {
		reqBody["filter"] = f
	}
	return c.search(ctx, reqBody)
}

func (c *Client) search(ctx context.Context, reqBody map[string]any) ([]domain.SearchHit, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant search status: %s", resp.Status)
	}

	var searchResp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.SearchHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		hit := domain.SearchHit{
			ID:              pointID(r.ID, r.Payload),
			Score:           r.Score,
			Content:         payloadString(r.Payload, "content"),
			KnowledgeBaseID: payloadString(r.Payload, "kb_id"),
			SourceFile:      payloadString(r.Payload, "source_file"),
		}
		if meta, ok := r.Payload["metadata"].(map[string]any); ok {
			hit.Metadata = meta
		}
		out = append(out, hit)
	}
	return out, nil
}

// kbFilter builds the payload filter restricting hits to the requested
// knowledge bases. An empty list means no restriction.
func kbFilter(kbIDs []string) map[string]any {
	if len(kbIDs) == 0 {
		return nil
	}
	return map[string]any{
		"must": []map[string]any{
			{
				"key":   "kb_id",
				"match": map[string]any{"any": kbIDs},
			},
		},
	}
}

// pointID prefers the stable chunk_id carried in the payload; the raw
// point id can be numeric depending on how the collection was loaded.
func pointID(raw any, payload map[string]any) string {
	if id := payloadString(payload, "chunk_id"); id != "" {
		return id
	}
	switch v := raw.(type) {
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
