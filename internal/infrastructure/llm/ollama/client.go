package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-retrieval-service/internal/infrastructure/resilience"
)

// Client is the shared HTTP transport to one Ollama instance. The embed
// and generation adapters layer on top of it.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

// Embedder adapts /api/embed to the query embedding port.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": e.client.embedModel,
		"input": []string{text},
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	call := func(callCtx context.Context) error {
		return e.client.postJSON(callCtx, "/api/embed", request, &response, "embed")
	}
	var err error
	if e.client.executor != nil {
		err = e.client.executor.Execute(ctx, "ollama.embed", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("embed query", err)
	}
	if len(response.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return response.Embeddings[0], nil
}

// Expander adapts /api/generate to the query expansion port. The model is
// asked for numbered paraphrases, one per line.
type Expander struct {
	client *Client
}

func NewExpander(client *Client) *Expander {
	return &Expander{client: client}
}

func (x *Expander) GenerateExpansions(ctx context.Context, query string, count int) ([]string, error) {
	if count <= 0 {
		return nil, nil
	}

	request := map[string]any{
		"model":  x.client.genModel,
		"prompt": buildExpansionPrompt(query, count),
		"stream": false,
	}

	var response struct {
		Response string `json:"response"`
	}
	call := func(callCtx context.Context) error {
		return x.client.postJSON(callCtx, "/api/generate", request, &response, "expand")
	}
	var err error
	if x.client.executor != nil {
		err = x.client.executor.Execute(ctx, "ollama.expand", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("generate expansions", err)
	}

	variants := parseExpansionLines(response.Response)
	if len(variants) > count {
		variants = variants[:count]
	}
	return variants, nil
}

func buildExpansionPrompt(query string, count int) string {
	return fmt.Sprintf(`Rewrite the search query below into %d alternative phrasings that preserve its meaning.
Keep each rewrite on its own line, numbered. Match the language of the original query.
Do not answer the query, only rephrase it.

Query: %s
`, count, query)
}

// parseExpansionLines strips numbering and bullets from model output;
// anything else on a non-empty line counts as one variant.
func parseExpansionLines(raw string) []string {
	out := make([]string, 0, 8)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "0123456789")
		line = strings.TrimLeft(line, ".)- \t")
		line = strings.Trim(line, `"`)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
