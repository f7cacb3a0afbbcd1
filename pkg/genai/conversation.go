// Package genai wraps the generative-AI backend behind a streaming client
// interface with tool-calling support.
package genai

// Role tags a conversation turn.
type Role string

const (
	RoleUser     Role = "user"
	RoleModel    Role = "model"
	RoleFunction Role = "function"
)

// ToolCall is the model's request to invoke a named tool. Arguments is the
// raw JSON argument object exactly as produced by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"args"`
}

// ToolResult pairs 1:1 with a ToolCall. Response carries either the tool's
// success payload or an error payload shaped by the invoker.
type ToolResult struct {
	CallID   string         `json:"call_id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// Part is one piece of a turn: text, an attachment, a tool call, or a tool
// result. Exactly one field is set.
type Part struct {
	Text       string      `json:"text,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// Turn is one entry of a conversation history.
type Turn struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// UserText builds a plain text user turn.
func UserText(text string) Turn {
	return Turn{Role: RoleUser, Parts: []Part{{Text: text}}}
}

// UserTextWithAttachment builds a user turn carrying a prompt and a file.
func UserTextWithAttachment(text string, attachment *Attachment) Turn {
	return Turn{Role: RoleUser, Parts: []Part{{Text: text}, {Attachment: attachment}}}
}

// ModelText builds a plain text model turn.
func ModelText(text string) Turn {
	return Turn{Role: RoleModel, Parts: []Part{{Text: text}}}
}

// ModelToolCalls builds the model turn recording the tool calls of one
// generation turn, in the order they were issued.
func ModelToolCalls(calls []ToolCall) Turn {
	parts := make([]Part, 0, len(calls))
	for i := range calls {
		parts = append(parts, Part{ToolCall: &calls[i]})
	}

	return Turn{Role: RoleModel, Parts: parts}
}

// FunctionResults builds the function turn carrying all tool results of one
// batch, in call order.
func FunctionResults(results []ToolResult) Turn {
	parts := make([]Part, 0, len(results))
	for i := range results {
		parts = append(parts, Part{ToolResult: &results[i]})
	}

	return Turn{Role: RoleFunction, Parts: parts}
}
