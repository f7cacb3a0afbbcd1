// Package tools provides the registry and batch invoker for model-callable tools.
package tools

import "context"

// Tool is a named capability the generation step can request.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema for the tool's argument object.
	Parameters() map[string]any
	Invoke(ctx context.Context, args map[string]any) (*Outcome, error)
}

// Outcome is a successful tool invocation: a display-oriented summary plus an
// arbitrary structured payload for the model.
type Outcome struct {
	Summary string
	Payload map[string]any
}
