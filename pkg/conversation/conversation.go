// Package conversation drives the multi-turn generation loop: it feeds the
// model the accumulated history, executes any tool calls it requests, and
// repeats until the model answers with text.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/guildflow/guildflow/pkg/genai"
	"github.com/guildflow/guildflow/pkg/tools"
)

// DefaultMaxTurns bounds the generate/execute cycle of a single run so a
// model that keeps requesting tools cannot loop forever.
const DefaultMaxTurns = 8

var (
	// ErrEmptyResponse is returned when a generation turn produces neither
	// text nor tool calls.
	ErrEmptyResponse = errors.New("model returned an empty response")

	// ErrTurnLimit is returned when the run exhausts its turn budget without
	// reaching a text answer.
	ErrTurnLimit = errors.New("conversation exceeded the turn limit")
)

// Notifier is told which tools are about to run, so users see progress while
// a turn executes. Notifications are dispatched on their own goroutine and
// never delay tool execution; failures are logged and ignored.
type Notifier interface {
	NotifyToolCalls(ctx context.Context, calls []genai.ToolCall)
}

// Runner owns one conversation loop configuration and is safe for concurrent
// runs.
type Runner struct {
	client   genai.Client
	invoker  *tools.Invoker
	registry *tools.Registry
	notifier Notifier
	maxTurns int
	logger   *slog.Logger
}

func NewRunner(client genai.Client, registry *tools.Registry, invoker *tools.Invoker, logger *slog.Logger) *Runner {
	return &Runner{
		client:   client,
		invoker:  invoker,
		registry: registry,
		maxTurns: DefaultMaxTurns,
		logger:   logger.With("module", "conversation"),
	}
}

// WithNotifier attaches a progress notifier.
func (r *Runner) WithNotifier(notifier Notifier) *Runner {
	r.notifier = notifier

	return r
}

// WithMaxTurns overrides the turn budget. Values below one are ignored.
func (r *Runner) WithMaxTurns(maxTurns int) *Runner {
	if maxTurns >= 1 {
		r.maxTurns = maxTurns
	}

	return r
}

// Run executes the loop until the model produces text, the turn budget is
// exhausted, or the context is done. It returns the final text answer.
func (r *Runner) Run(ctx context.Context, history []genai.Turn) (string, error) {
	definitions := r.registry.Definitions()

	for turn := 1; turn <= r.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("conversation aborted: %w", err)
		}

		text, calls, err := r.generate(ctx, history, definitions)
		if err != nil {
			return "", err
		}

		if len(calls) == 0 {
			if text == "" {
				return "", ErrEmptyResponse
			}

			r.logger.DebugContext(ctx, "Conversation finished", "turns", turn)

			return text, nil
		}

		r.logger.DebugContext(ctx, "Executing tool calls", "turn", turn, "calls", len(calls))

		if r.notifier != nil {
			go r.notifier.NotifyToolCalls(ctx, calls)
		}

		results := r.invoker.ExecuteBatch(ctx, calls)

		modelTurn := genai.ModelToolCalls(calls)
		if text != "" {
			modelTurn.Parts = append([]genai.Part{{Text: text}}, modelTurn.Parts...)
		}

		history = append(history, modelTurn, genai.FunctionResults(results))
	}

	return "", ErrTurnLimit
}

// generate consumes one streaming generation turn, collecting text deltas and
// the assembled tool calls.
func (r *Runner) generate(ctx context.Context, history []genai.Turn, definitions []genai.ToolDefinition) (string, []genai.ToolCall, error) {
	chunks, err := r.client.Generate(ctx, history, definitions)
	if err != nil {
		return "", nil, fmt.Errorf("generation failed: %w", err)
	}

	var text strings.Builder

	var calls []genai.ToolCall

	for chunk := range chunks {
		if chunk.Err != nil {
			return "", nil, chunk.Err
		}

		text.WriteString(chunk.Text)
		calls = append(calls, chunk.ToolCalls...)
	}

	return text.String(), calls, nil
}
