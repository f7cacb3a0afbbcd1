package conversation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildflow/guildflow/pkg/genai"
	"github.com/guildflow/guildflow/pkg/tools"
)

// scriptedClient replays one prepared chunk sequence per generation turn.
type scriptedClient struct {
	turns    [][]genai.Chunk
	err      error
	requests [][]genai.Turn
}

func (s *scriptedClient) Generate(_ context.Context, history []genai.Turn, _ []genai.ToolDefinition) (<-chan genai.Chunk, error) {
	if s.err != nil {
		return nil, s.err
	}

	s.requests = append(s.requests, append([]genai.Turn(nil), history...))

	var chunks []genai.Chunk
	if len(s.turns) > 0 {
		chunks = s.turns[0]
		s.turns = s.turns[1:]
	}

	out := make(chan genai.Chunk, len(chunks))
	for _, chunk := range chunks {
		out <- chunk
	}

	close(out)

	return out, nil
}

type echoTool struct{}

func (echoTool) Name() string               { return "echo" }
func (echoTool) Description() string        { return "echoes" }
func (echoTool) Parameters() map[string]any { return map[string]any{"type": "object"} }

func (echoTool) Invoke(_ context.Context, args map[string]any) (*tools.Outcome, error) {
	return &tools.Outcome{Summary: "echoed", Payload: args}, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls [][]genai.ToolCall
}

func (n *recordingNotifier) NotifyToolCalls(_ context.Context, calls []genai.ToolCall) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.calls = append(n.calls, calls)
}

func newTestRunner(t *testing.T, client genai.Client) *Runner {
	t.Helper()

	logger := slog.Default()
	registry := tools.NewRegistry(logger)
	registry.Register(echoTool{})

	return NewRunner(client, registry, tools.NewInvoker(registry, logger), logger)
}

func TestRun_TextOnlySingleTurn(t *testing.T) {
	client := &scriptedClient{turns: [][]genai.Chunk{
		{{Text: "Hello "}, {Text: "there."}},
	}}

	runner := newTestRunner(t, client)

	answer, err := runner.Run(t.Context(), []genai.Turn{genai.UserText("hi")})
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", answer)
	assert.Len(t, client.requests, 1)
}

func TestRun_ToolCallThenText(t *testing.T) {
	client := &scriptedClient{turns: [][]genai.Chunk{
		{{ToolCalls: []genai.ToolCall{{ID: "call-1", Name: "echo", Arguments: `{"msg":"hi"}`}}}},
		{{Text: "Done."}},
	}}

	notifier := &recordingNotifier{}
	runner := newTestRunner(t, client).WithNotifier(notifier)

	answer, err := runner.Run(t.Context(), []genai.Turn{genai.UserText("use the tool")})
	require.NoError(t, err)
	assert.Equal(t, "Done.", answer)

	require.Len(t, client.requests, 2)

	// Second request must carry the tool-call turn and its results.
	second := client.requests[1]
	require.Len(t, second, 3)
	assert.Equal(t, genai.RoleModel, second[1].Role)
	assert.Equal(t, genai.RoleFunction, second[2].Role)
	require.NotNil(t, second[2].Parts[0].ToolResult)
	assert.Equal(t, "call-1", second[2].Parts[0].ToolResult.CallID)

	require.Eventually(t, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()

		return len(notifier.calls) == 1
	}, time.Second, 10*time.Millisecond)

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, "echo", notifier.calls[0][0].Name)
}

// blockedNotifier parks until released, standing in for a stalled channel post.
type blockedNotifier struct {
	started chan struct{}
	release chan struct{}
}

func (n *blockedNotifier) NotifyToolCalls(_ context.Context, _ []genai.ToolCall) {
	close(n.started)
	<-n.release
}

func TestRun_SlowNotifierDoesNotDelayTools(t *testing.T) {
	client := &scriptedClient{turns: [][]genai.Chunk{
		{{ToolCalls: []genai.ToolCall{{ID: "call-1", Name: "echo", Arguments: `{}`}}}},
		{{Text: "Done."}},
	}}

	notifier := &blockedNotifier{started: make(chan struct{}), release: make(chan struct{})}
	t.Cleanup(func() { close(notifier.release) })

	runner := newTestRunner(t, client).WithNotifier(notifier)

	answer, err := runner.Run(t.Context(), []genai.Turn{genai.UserText("use the tool")})
	require.NoError(t, err)
	assert.Equal(t, "Done.", answer)

	// The notification fired but is still blocked; the loop finished anyway.
	select {
	case <-notifier.started:
	case <-time.After(time.Second):
		t.Fatal("notifier was never invoked")
	}
}

func TestRun_InterleavedTextKeptWithToolCalls(t *testing.T) {
	client := &scriptedClient{turns: [][]genai.Chunk{
		{{Text: "Searching..."}, {ToolCalls: []genai.ToolCall{{ID: "call-1", Name: "echo", Arguments: `{}`}}}},
		{{Text: "Found it."}},
	}}

	runner := newTestRunner(t, client)

	answer, err := runner.Run(t.Context(), []genai.Turn{genai.UserText("go")})
	require.NoError(t, err)
	assert.Equal(t, "Found it.", answer)

	modelTurn := client.requests[1][1]
	assert.Equal(t, "Searching...", modelTurn.Parts[0].Text)
	require.NotNil(t, modelTurn.Parts[1].ToolCall)
}

func TestRun_EmptyResponse(t *testing.T) {
	client := &scriptedClient{turns: [][]genai.Chunk{{}}}
	runner := newTestRunner(t, client)

	_, err := runner.Run(t.Context(), []genai.Turn{genai.UserText("hi")})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestRun_TurnLimit(t *testing.T) {
	toolTurn := []genai.Chunk{{ToolCalls: []genai.ToolCall{{ID: "call-1", Name: "echo", Arguments: `{}`}}}}

	client := &scriptedClient{turns: [][]genai.Chunk{
		toolTurn, toolTurn, toolTurn, toolTurn,
	}}

	runner := newTestRunner(t, client).WithMaxTurns(3)

	_, err := runner.Run(t.Context(), []genai.Turn{genai.UserText("loop")})
	assert.ErrorIs(t, err, ErrTurnLimit)
	assert.Len(t, client.requests, 3)
}

func TestRun_GenerateError(t *testing.T) {
	client := &scriptedClient{err: errors.New("backend down")}
	runner := newTestRunner(t, client)

	_, err := runner.Run(t.Context(), []genai.Turn{genai.UserText("hi")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestRun_StreamError(t *testing.T) {
	client := &scriptedClient{turns: [][]genai.Chunk{
		{{Text: "partial"}, {Err: errors.New("stream reset")}},
	}}

	runner := newTestRunner(t, client)

	_, err := runner.Run(t.Context(), []genai.Turn{genai.UserText("hi")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream reset")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	client := &scriptedClient{turns: [][]genai.Chunk{{{Text: "never"}}}}
	runner := newTestRunner(t, client)

	_, err := runner.Run(ctx, []genai.Turn{genai.UserText("hi")})
	assert.ErrorIs(t, err, context.Canceled)
}
