// Package websearch implements a web search tool backed by the Serper API.
package websearch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"resty.dev/v3"

	"github.com/guildflow/guildflow/pkg/tools"
)

const (
	defaultBaseURL = "https://google.serper.dev"
	defaultLimit   = 5
	maxLimit       = 10
)

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Tool performs web searches on behalf of the model.
type Tool struct {
	client *resty.Client
	logger *slog.Logger
}

func NewTool(config Config, logger *slog.Logger) *Tool {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("X-API-KEY", config.APIKey).
		SetHeader("Content-Type", "application/json")

	return &Tool{
		client: client,
		logger: logger.With("module", "websearch"),
	}
}

func (t *Tool) Name() string { return "web_search" }

func (t *Tool) Description() string {
	return "Searches the web for current information and returns the top results with title, link and snippet."
}

func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query.",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results to return, up to 10.",
			},
		},
		"required": []string{"query"},
	}
}

type searchResponse struct {
	Organic []organicResult `json:"organic"`
}

type organicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

func (t *Tool) Invoke(ctx context.Context, args map[string]any) (*tools.Outcome, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, fmt.Errorf("missing required argument: query")
	}

	limit := defaultLimit
	if raw, ok := args["limit"].(float64); ok && raw > 0 {
		limit = int(raw)
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	var result searchResponse

	response, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"q": query}).
		SetResult(&result).
		Post("/search")
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}

	if response.IsError() {
		return nil, fmt.Errorf("search request failed with status %d", response.StatusCode())
	}

	organic := result.Organic
	if len(organic) > limit {
		organic = organic[:limit]
	}

	results := make([]map[string]any, 0, len(organic))
	for _, item := range organic {
		results = append(results, map[string]any{
			"title":   item.Title,
			"link":    item.Link,
			"snippet": item.Snippet,
		})
	}

	t.logger.DebugContext(ctx, "Web search completed", "query", query, "results", len(results))

	return &tools.Outcome{
		Summary: fmt.Sprintf("Found %d results for %q", len(results), query),
		Payload: map[string]any{"results": results},
	}, nil
}
