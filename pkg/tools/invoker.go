package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/guildflow/guildflow/pkg/genai"
)

const defaultInvokeTimeout = 30 * time.Second

// Response keys of a failure-shaped tool result.
const (
	ResponseErrorMessage   = "error_message"
	ResponseDisplaySummary = "display_summary"
	ResponseData           = "data"
)

// Invoker executes the tool calls offered in one generation turn.
type Invoker struct {
	registry *Registry
	logger   *slog.Logger
	timeout  time.Duration
}

func NewInvoker(registry *Registry, logger *slog.Logger) *Invoker {
	return &Invoker{
		registry: registry,
		logger:   logger.With("module", "tool_invoker"),
		timeout:  defaultInvokeTimeout,
	}
}

// WithTimeout sets the per-invocation timeout.
func (inv *Invoker) WithTimeout(timeout time.Duration) *Invoker {
	inv.timeout = timeout

	return inv
}

// ExecuteBatch runs all calls of one turn concurrently and joins the results
// in the order the calls were issued. Each call succeeds or fails on its own:
// a failed call yields an error-shaped result and never prevents the others
// from being attempted.
func (inv *Invoker) ExecuteBatch(ctx context.Context, calls []genai.ToolCall) []genai.ToolResult {
	results := make([]genai.ToolResult, len(calls))

	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)

		go func(i int, call genai.ToolCall) {
			defer wg.Done()

			results[i] = inv.execute(ctx, call)
		}(i, call)
	}

	wg.Wait()

	return results
}

func (inv *Invoker) execute(ctx context.Context, call genai.ToolCall) genai.ToolResult {
	tool, ok := inv.registry.Get(call.Name)
	if !ok {
		inv.logger.WarnContext(ctx, "Tool not registered", "tool", call.Name)

		return failureResult(call, fmt.Sprintf("tool %q is not registered", call.Name))
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return failureResult(call, fmt.Sprintf("invalid tool arguments: %s", err))
		}
	}

	invokeCtx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	outcome, err := tool.Invoke(invokeCtx, args)
	if err != nil {
		inv.logger.WarnContext(ctx, "Tool invocation failed", "tool", call.Name, "error", err)

		if errors.Is(err, context.DeadlineExceeded) {
			return failureResult(call, fmt.Sprintf("tool %q timed out after %s", call.Name, inv.timeout))
		}

		return failureResult(call, err.Error())
	}

	return genai.ToolResult{
		CallID: call.ID,
		Name:   call.Name,
		Response: map[string]any{
			ResponseDisplaySummary: outcome.Summary,
			ResponseData:           outcome.Payload,
		},
	}
}

func failureResult(call genai.ToolCall, message string) genai.ToolResult {
	return genai.ToolResult{
		CallID: call.ID,
		Name:   call.Name,
		Response: map[string]any{
			ResponseErrorMessage:   message,
			ResponseDisplaySummary: fmt.Sprintf("Error executing tool %q", call.Name),
		},
	}
}
