// Package ollama implements the local fallback enrichment provider.
// It carries no quota and answers even when the hosted provider is
// exhausted, at the cost of smaller models and coarser output.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
	"github.com/kirillkom/ai-file-vault/internal/infrastructure/llm/tagparse"
	"github.com/kirillkom/ai-file-vault/internal/infrastructure/resilience"
)

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

func (c *Client) Name() string { return domain.ProviderOllama }

// HealthCheck probes the local daemon. Observability only; routing never
// gates on it.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ollama health status: %s", resp.Status)
	}
	return nil
}

func (c *Client) SuggestName(ctx context.Context, text, originalName string) (string, error) {
	resp, err := c.generateText(ctx, "ollama.suggest_name", buildNamePrompt(text, originalName))
	if err != nil {
		return "", err
	}
	name := sanitizeSuggestedName(resp)
	if name == "" {
		return "", fmt.Errorf("empty filename suggestion")
	}
	return name, nil
}

func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := c.generateText(ctx, "ollama.summarize", buildSummaryPrompt(text))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

func (c *Client) Tags(ctx context.Context, text, filename string) ([]domain.Tag, error) {
	resp, err := c.generateText(ctx, "ollama.tags", buildTagsPrompt(text, filename))
	if err != nil {
		return nil, err
	}
	tags, _ := tagparse.Parse(resp)
	return tags, nil
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": c.embedModel,
		"input": []string{clip(text, 8000)},
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.call(ctx, "ollama.embed", "/api/embed", request, &response); err != nil {
		return nil, err
	}
	if len(response.Embeddings) == 0 || len(response.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return response.Embeddings[0], nil
}

func (c *Client) generateText(ctx context.Context, operation, prompt string) (string, error) {
	request := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.call(ctx, operation, "/api/generate", request, &response); err != nil {
		return "", err
	}
	text := strings.TrimSpace(response.Response)
	if text == "" {
		return "", fmt.Errorf("%s: empty model response", operation)
	}
	return text, nil
}

func (c *Client) call(ctx context.Context, operation, path string, payload, out any) error {
	do := func(callCtx context.Context) error {
		return c.postJSON(callCtx, path, payload, out, operation)
	}
	if c.executor == nil {
		return do(ctx)
	}
	return c.executor.Execute(ctx, operation, do, classifyOllamaError)
}

func sanitizeSuggestedName(raw string) string {
	name := strings.TrimSpace(raw)
	name = strings.Trim(name, "\"'`")
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "/", "-")
	if len(name) > 120 {
		name = name[:120]
	}
	return name
}

func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
