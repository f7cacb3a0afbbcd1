package tools

import (
	"log/slog"

	"github.com/guildflow/guildflow/pkg/genai"
)

// Registry maps tool names to handlers. It is populated at startup and
// read-only afterwards; unregistered names resolve to failure-shaped results
// at invocation time, never to a panic or fatal error.
type Registry struct {
	logger *slog.Logger
	tools  map[string]Tool
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger.With("module", "tools"),
		tools:  make(map[string]Tool),
	}
}

func (r *Registry) Register(tool Tool) {
	r.tools[tool.Name()] = tool
	r.logger.Info("Registered tool", "tool", tool.Name())
}

func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]

	return tool, ok
}

// Definitions returns the tool declarations offered to the model.
func (r *Registry) Definitions() []genai.ToolDefinition {
	definitions := make([]genai.ToolDefinition, 0, len(r.tools))

	for _, tool := range r.tools {
		definitions = append(definitions, genai.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}

	return definitions
}
