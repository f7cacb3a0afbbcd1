package genai

import "context"

// ToolDefinition describes a tool offered to the model for a generation call.
// Parameters is a JSON Schema object describing the argument shape.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Chunk is one streamed fragment of a generation turn. Text fragments arrive
// in order; assembled tool calls arrive in a final chunk once the stream ends.
// Err reports an upstream failure and terminates the stream.
type Chunk struct {
	Text      string
	ToolCalls []ToolCall
	Err       error
}

// Client streams one generation turn. The returned channel is closed when the
// turn completes, fails, or ctx is cancelled. Cancelling ctx aborts the
// underlying request without retry.
type Client interface {
	Generate(ctx context.Context, history []Turn, tools []ToolDefinition) (<-chan Chunk, error)
}

// KeyedClient can re-authenticate with a caller-supplied API key, so users
// may bring their own generation credits.
type KeyedClient interface {
	Client

	WithAPIKey(apiKey string) Client
}
