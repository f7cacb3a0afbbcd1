package websearch

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))

		var request map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		assert.NotEmpty(t, request["q"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}))

	t.Cleanup(server.Close)

	return server
}

func TestInvoke_ReturnsResults(t *testing.T) {
	server := newTestServer(t, http.StatusOK, map[string]any{
		"organic": []map[string]any{
			{"title": "Go", "link": "https://go.dev", "snippet": "The Go programming language"},
			{"title": "Go blog", "link": "https://go.dev/blog", "snippet": "News"},
		},
	})

	tool := NewTool(Config{APIKey: "test-key", BaseURL: server.URL}, slog.Default())

	outcome, err := tool.Invoke(t.Context(), map[string]any{"query": "golang"})
	require.NoError(t, err)

	assert.Contains(t, outcome.Summary, "2 results")

	results, ok := outcome.Payload["results"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, results, 2)
	assert.Equal(t, "https://go.dev", results[0]["link"])
}

func TestInvoke_LimitCapsResults(t *testing.T) {
	organic := make([]map[string]any, 8)
	for i := range organic {
		organic[i] = map[string]any{"title": "t", "link": "l", "snippet": "s"}
	}

	server := newTestServer(t, http.StatusOK, map[string]any{"organic": organic})
	tool := NewTool(Config{APIKey: "test-key", BaseURL: server.URL}, slog.Default())

	outcome, err := tool.Invoke(t.Context(), map[string]any{"query": "anything", "limit": float64(3)})
	require.NoError(t, err)

	results := outcome.Payload["results"].([]map[string]any)
	assert.Len(t, results, 3)
}

func TestInvoke_MissingQuery(t *testing.T) {
	tool := NewTool(Config{APIKey: "test-key"}, slog.Default())

	_, err := tool.Invoke(t.Context(), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query")
}

func TestInvoke_UpstreamError(t *testing.T) {
	server := newTestServer(t, http.StatusForbidden, map[string]any{"message": "bad key"})
	tool := NewTool(Config{APIKey: "test-key", BaseURL: server.URL}, slog.Default())

	_, err := tool.Invoke(t.Context(), map[string]any{"query": "golang"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
