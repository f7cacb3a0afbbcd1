package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofiber/fiber/v3"

	"github.com/guildflow/guildflow/pkg/channels/gochannel"
	"github.com/guildflow/guildflow/pkg/eventbus"
	"github.com/guildflow/guildflow/pkg/events"
	"github.com/guildflow/guildflow/pkg/genai"
	"github.com/guildflow/guildflow/pkg/persistence/file"
	"github.com/guildflow/guildflow/pkg/signature"
	"github.com/guildflow/guildflow/pkg/tools"
)

const (
	testWebhookSecret = "webhook-secret"
	testJWTSecret     = "jwt-secret"
)

type fakeUserStore struct {
	mu    sync.Mutex
	keys  map[string]string
	usage map[string]int64
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{keys: map[string]string{}, usage: map[string]int64{}}
}

func (s *fakeUserStore) SetAPIKey(_ context.Context, userID, apiKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if apiKey == "" {
		delete(s.keys, userID)
	} else {
		s.keys[userID] = apiKey
	}

	return nil
}

func (s *fakeUserStore) APIKey(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.keys[userID], nil
}

func (s *fakeUserStore) IncrementUsage(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.usage[userID]++

	return s.usage[userID], nil
}

func (s *fakeUserStore) UsageCount(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.usage[userID], nil
}

type fakeClient struct {
	reply string

	mu        sync.Mutex
	histories [][]genai.Turn
}

func (f *fakeClient) Generate(_ context.Context, history []genai.Turn, _ []genai.ToolDefinition) (<-chan genai.Chunk, error) {
	f.mu.Lock()
	f.histories = append(f.histories, append([]genai.Turn(nil), history...))
	f.mu.Unlock()

	out := make(chan genai.Chunk, 1)
	out <- genai.Chunk{Text: f.reply}
	close(out)

	return out, nil
}

func (f *fakeClient) WithAPIKey(_ string) genai.Client { return f }

func setupTestApp(t *testing.T) (*fiber.App, eventbus.EventBus, *fakeUserStore, *fakeClient) {
	t.Helper()

	logger := slog.Default()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NewSlogLogger(logger))
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	userStore := newFakeUserStore()
	registry := tools.NewRegistry(logger)
	client := &fakeClient{reply: "generated answer"}

	api := NewAPI(
		logger,
		file.NewPersistence(t.TempDir()),
		bus,
		client,
		registry,
		tools.NewInvoker(registry, logger),
		userStore,
		testWebhookSecret,
		testJWTSecret,
	)

	return api.App(), bus, userStore, client
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	return "Bearer " + token
}

func closeBody(t *testing.T, resp *http.Response) {
	t.Helper()

	if err := resp.Body.Close(); err != nil {
		t.Logf("Failed to close response body: %v", err)
	}
}

func TestAPI_RootEndpoint(t *testing.T) {
	app, _, _, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer closeBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "GuildFlow API", string(body))
}

func TestAPI_Webhook_MissingSignature(t *testing.T) {
	app, _, _, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewBufferString(`{}`))
	req.Header.Set("X-GitHub-Event", "push")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer closeBody(t, resp)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Webhook_InvalidSignature(t *testing.T) {
	app, _, _, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewBufferString(`{}`))
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer closeBody(t, resp)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_Webhook_ValidPushIsQueued(t *testing.T) {
	app, bus, _, _ := setupTestApp(t)

	received := make(chan *events.PushReceived, 1)

	bus.Handle(events.PushReceivedEvent, func(_ context.Context, event any) error {
		push, ok := event.(*events.PushReceived)
		if ok {
			received <- push
		}

		return nil
	})
	require.NoError(t, bus.Subscribe(t.Context()))

	payload := []byte(`{"ref":"refs/heads/main","repository":{"full_name":"acme/api"}}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewBuffer(payload))
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-GitHub-Delivery", "delivery-1")
	req.Header.Set("X-Hub-Signature-256", signature.Sign(testWebhookSecret, payload))

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer closeBody(t, resp)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case push := <-received:
		assert.Equal(t, "delivery-1", push.DeliveryID)
		assert.JSONEq(t, string(payload), string(push.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("push event was not delivered")
	}
}

func TestAPI_Webhook_NonPushEventIgnored(t *testing.T) {
	app, _, _, _ := setupTestApp(t)

	payload := []byte(`{"zen":"Keep it logically awesome."}`)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", bytes.NewBuffer(payload))
	req.Header.Set("X-GitHub-Event", "ping")
	req.Header.Set("X-Hub-Signature-256", signature.Sign(testWebhookSecret, payload))

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer closeBody(t, resp)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ignored", body["status"])
}

func TestAPI_Workflows_RequireAuth(t *testing.T) {
	app, _, _, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/workflows/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer closeBody(t, resp)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func createWorkflowRequest(t *testing.T) *http.Request {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"guild_id":     "guild-1",
		"name":         "main push summaries",
		"trigger_type": "repo_push",
		"trigger_config": map[string]string{
			"repo":   "acme/api",
			"branch": "main",
		},
		"action_type": "prompt_generation",
		"action_config": map[string]string{
			"target_channel_id": "chan-1",
			"prompt_template":   "Summarize the push to {{repo}}.",
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/workflows/", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t, "user-1"))

	return req
}

func TestAPI_CreateAndFetchWorkflow(t *testing.T) {
	app, _, _, _ := setupTestApp(t)

	resp, err := app.Test(createWorkflowRequest(t))
	require.NoError(t, err)

	defer closeBody(t, resp)

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created["workflow_id"])
	assert.Contains(t, created["message"], "main push summaries")
	assert.NotContains(t, created, "trigger_config")

	getReq := httptest.NewRequest(http.MethodGet, "/v1/workflows/"+created["workflow_id"].(string), nil)
	getReq.Header.Set("Authorization", bearerToken(t, "user-1"))

	getResp, err := app.Test(getReq)
	require.NoError(t, err)

	defer closeBody(t, getResp)

	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var fetched map[string]any
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&fetched))
	assert.Equal(t, "user-1", fetched["created_by"])
	assert.Equal(t, true, fetched["is_enabled"])
}

func TestAPI_CreateWorkflow_InvalidConfig(t *testing.T) {
	app, _, _, _ := setupTestApp(t)

	body, err := json.Marshal(map[string]any{
		"guild_id":       "guild-1",
		"name":           "broken workflow",
		"trigger_type":   "repo_push",
		"trigger_config": map[string]string{"repo": "not-a-repo"},
		"action_type":    "prompt_generation",
		"action_config": map[string]string{
			"target_channel_id": "chan-1",
			"prompt_template":   "x",
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/workflows/", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t, "user-1"))

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer closeBody(t, resp)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_DisableWorkflow(t *testing.T) {
	app, _, _, _ := setupTestApp(t)

	resp, err := app.Test(createWorkflowRequest(t))
	require.NoError(t, err)

	defer closeBody(t, resp)

	var created map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))

	disableReq := httptest.NewRequest(http.MethodPost, "/v1/workflows/"+created["workflow_id"].(string)+"/disable", nil)
	disableReq.Header.Set("Authorization", bearerToken(t, "user-1"))

	disableResp, err := app.Test(disableReq)
	require.NoError(t, err)

	defer closeBody(t, disableResp)

	require.Equal(t, http.StatusOK, disableResp.StatusCode)

	var updated map[string]any
	require.NoError(t, json.NewDecoder(disableResp.Body).Decode(&updated))
	assert.Equal(t, false, updated["is_enabled"])
}

func TestAPI_DeleteWorkflow_NotFound(t *testing.T) {
	app, _, _, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodDelete, "/v1/workflows/missing", nil)
	req.Header.Set("Authorization", bearerToken(t, "user-1"))

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer closeBody(t, resp)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Chat_ReturnsReplyAndCountsUsage(t *testing.T) {
	app, _, userStore, _ := setupTestApp(t)

	body, err := json.Marshal(map[string]string{"prompt": "hello"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t, "user-7"))

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer closeBody(t, resp)

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var chat map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&chat))
	assert.Equal(t, "generated answer", chat["reply"])

	count, err := userStore.UsageCount(t.Context(), "user-7")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAPI_Chat_HistoryPrecedesPrompt(t *testing.T) {
	app, _, _, client := setupTestApp(t)

	body, err := json.Marshal(map[string]any{
		"prompt": "and in Go?",
		"history": []map[string]string{
			{"role": "user", "text": "how do I reverse a list in Python?"},
			{"role": "model", "text": "Use reversed() or list slicing."},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t, "user-7"))

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer closeBody(t, resp)

	require.Equal(t, http.StatusOK, resp.StatusCode)

	client.mu.Lock()
	defer client.mu.Unlock()

	require.Len(t, client.histories, 1)

	seen := client.histories[0]
	require.Len(t, seen, 3)
	assert.Equal(t, genai.RoleUser, seen[0].Role)
	assert.Equal(t, "how do I reverse a list in Python?", seen[0].Parts[0].Text)
	assert.Equal(t, genai.RoleModel, seen[1].Role)
	assert.Equal(t, "Use reversed() or list slicing.", seen[1].Parts[0].Text)
	assert.Equal(t, genai.RoleUser, seen[2].Role)
	assert.Equal(t, "and in Go?", seen[2].Parts[0].Text)
}

func TestAPI_Chat_RejectsUnknownHistoryRole(t *testing.T) {
	app, _, _, _ := setupTestApp(t)

	body, err := json.Marshal(map[string]any{
		"prompt":  "hello",
		"history": []map[string]string{{"role": "system", "text": "x"}},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t, "user-7"))

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer closeBody(t, resp)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_SetAPIKeyAndUsage(t *testing.T) {
	app, _, userStore, _ := setupTestApp(t)

	body, err := json.Marshal(map[string]string{"api_key": "sk-user-key"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/v1/users/me/api-key", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t, "user-3"))

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer closeBody(t, resp)

	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	stored, err := userStore.APIKey(t.Context(), "user-3")
	require.NoError(t, err)
	assert.Equal(t, "sk-user-key", stored)

	usageReq := httptest.NewRequest(http.MethodGet, "/v1/users/me/usage", nil)
	usageReq.Header.Set("Authorization", bearerToken(t, "user-3"))

	usageResp, err := app.Test(usageReq)
	require.NoError(t, err)

	defer closeBody(t, usageResp)

	require.Equal(t, http.StatusOK, usageResp.StatusCode)

	var usage map[string]any
	require.NoError(t, json.NewDecoder(usageResp.Body).Decode(&usage))
	assert.Equal(t, "user-3", usage["user_id"])
}
