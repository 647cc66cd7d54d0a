// Package gemini implements the primary enrichment provider against the
// Gemini REST API. All calls run through the resilience executor with
// transient-only retries; quota routing happens one level up in the gateway.
package gemini

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

const defaultBaseURL = "https://generativelanguage.googleapis.com"

type Client struct {
	baseURL    string
	apiKey     string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(apiKey, genModel, embedModel string, executor *resilience.Executor) *Client {
	return NewWithBaseURL(defaultBaseURL, apiKey, genModel, embedModel, executor)
}

func NewWithBaseURL(baseURL, apiKey, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Name() string { return domain.ProviderGemini }

func (c *Client) SuggestName(ctx context.Context, text, originalName string) (string, error) {
	resp, err := c.generate(ctx, "gemini.suggest_name", buildNamePrompt(text, originalName))
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
	resp, err := c.generate(ctx, "gemini.summarize", buildSummaryPrompt(text))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

func (c *Client) Tags(ctx context.Context, text, filename string) ([]domain.Tag, error) {
	resp, err := c.generate(ctx, "gemini.tags", buildTagsPrompt(text, filename))
	if err != nil {
		return nil, err
	}
	// Degraded parse is still a usable answer; never fail enrichment on it.
	tags, _ := tagparse.Parse(resp)
	return tags, nil
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": "models/" + c.embedModel,
		"content": map[string]any{
			"parts": []map[string]any{{"text": clip(text, 8000)}},
		},
		"taskType": "RETRIEVAL_DOCUMENT",
	}

	var response struct {
		Embedding struct {
			Values []float32 `json:"values"`
		} `json:"embedding"`
	}
	path := fmt.Sprintf("/v1beta/models/%s:embedContent", c.embedModel)
	if err := c.call(ctx, "gemini.embed", path, request, &response); err != nil {
		return nil, err
	}
	if len(response.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return response.Embedding.Values, nil
}

func (c *Client) generate(ctx context.Context, operation, prompt string) (string, error) {
	request := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]any{{"text": prompt}}},
		},
	}

	var response struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	path := fmt.Sprintf("/v1beta/models/%s:generateContent", c.genModel)
	if err := c.call(ctx, operation, path, request, &response); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
		break
	}
	text := strings.TrimSpace(sb.String())
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
	return c.executor.Execute(ctx, operation, do, classifyProviderError)
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
