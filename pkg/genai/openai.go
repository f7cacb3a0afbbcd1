package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/sashabaranov/go-openai"
)

const defaultGenerateTimeout = 120 * time.Second
const chunkBufferSize = 64

// Config configures the OpenAI-compatible backend.
type Config struct {
	APIKey  string
	BaseURL string // optional, for OpenAI-compatible gateways
	Model   string
	Timeout time.Duration
}

// OpenAIClient implements Client over the chat completions streaming API.
type OpenAIClient struct {
	client  *openai.Client
	config  Config
	logger  *slog.Logger
	timeout time.Duration
}

func NewOpenAIClient(config Config, logger *slog.Logger) *OpenAIClient {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultGenerateTimeout
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientConfig),
		config:  config,
		logger:  logger.With("module", "genai"),
		timeout: timeout,
	}
}

// WithAPIKey returns a client that authenticates with the given key instead
// of the service key. Used for per-user keys.
func (c *OpenAIClient) WithAPIKey(apiKey string) Client {
	config := c.config
	config.APIKey = apiKey

	return NewOpenAIClient(config, c.logger)
}

// Generate starts one streaming generation turn. Text deltas are emitted as
// they arrive; tool calls are assembled from stream fragments and emitted in
// one final chunk, preserving the order the model issued them.
func (c *OpenAIClient) Generate(ctx context.Context, history []Turn, tools []ToolDefinition) (<-chan Chunk, error) {
	request := openai.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: toMessages(history),
		Tools:    toTools(tools),
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	stream, err := c.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		cancel()

		return nil, fmt.Errorf("failed to start generation stream: %w", err)
	}

	chunks := make(chan Chunk, chunkBufferSize)

	go func() {
		defer cancel()
		defer close(chunks)
		defer func() {
			if err := stream.Close(); err != nil {
				c.logger.Warn("Failed to close generation stream", "error", err)
			}
		}()

		accumulators := make(map[int]*toolCallAccumulator)

		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				if calls := assembleToolCalls(accumulators); len(calls) > 0 {
					chunks <- Chunk{ToolCalls: calls}
				}

				return
			}

			if err != nil {
				chunks <- Chunk{Err: fmt.Errorf("generation stream failed: %w", err)}

				return
			}

			if len(response.Choices) == 0 {
				continue
			}

			delta := response.Choices[0].Delta

			if delta.Content != "" {
				chunks <- Chunk{Text: delta.Content}
			}

			for i, fragment := range delta.ToolCalls {
				index := i
				if fragment.Index != nil {
					index = *fragment.Index
				}

				acc, ok := accumulators[index]
				if !ok {
					acc = &toolCallAccumulator{index: index}
					accumulators[index] = acc
				}

				if fragment.ID != "" {
					acc.id = fragment.ID
				}

				if fragment.Function.Name != "" {
					acc.name = fragment.Function.Name
				}

				acc.arguments += fragment.Function.Arguments
			}
		}
	}()

	return chunks, nil
}

type toolCallAccumulator struct {
	index     int
	id        string
	name      string
	arguments string
}

func assembleToolCalls(accumulators map[int]*toolCallAccumulator) []ToolCall {
	ordered := make([]*toolCallAccumulator, 0, len(accumulators))
	for _, acc := range accumulators {
		ordered = append(ordered, acc)
	}

	sort.Slice(ordered, func(i, j int) bool { return ordered[i].index < ordered[j].index })

	calls := make([]ToolCall, 0, len(ordered))
	for _, acc := range ordered {
		calls = append(calls, ToolCall{ID: acc.id, Name: acc.name, Arguments: acc.arguments})
	}

	return calls
}

func toTools(definitions []ToolDefinition) []openai.Tool {
	if len(definitions) == 0 {
		return nil
	}

	tools := make([]openai.Tool, 0, len(definitions))
	for _, definition := range definitions {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        definition.Name,
				Description: definition.Description,
				Parameters:  definition.Parameters,
			},
		})
	}

	return tools
}

func toMessages(history []Turn) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(history))

	for _, turn := range history {
		switch turn.Role {
		case RoleUser:
			messages = append(messages, userMessage(turn))
		case RoleModel:
			messages = append(messages, modelMessage(turn))
		case RoleFunction:
			// One tool message per result, keyed to its call.
			for _, part := range turn.Parts {
				if part.ToolResult == nil {
					continue
				}

				messages = append(messages, toolMessage(part.ToolResult))
			}
		}
	}

	return messages
}

func userMessage(turn Turn) openai.ChatCompletionMessage {
	hasAttachment := false

	for _, part := range turn.Parts {
		if part.Attachment != nil {
			hasAttachment = true

			break
		}
	}

	if !hasAttachment {
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: joinText(turn),
		}
	}

	content := make([]openai.ChatMessagePart, 0, len(turn.Parts))

	for _, part := range turn.Parts {
		switch {
		case part.Text != "":
			content = append(content, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: part.Text,
			})
		case part.Attachment != nil && part.Attachment.IsImage():
			content = append(content, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: part.Attachment.DataURI(),
				},
			})
		case part.Attachment != nil && part.Attachment.IsText():
			content = append(content, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: fmt.Sprintf("Attached file (%s):\n%s", part.Attachment.MIMEType, part.Attachment.Data),
			})
		case part.Attachment != nil:
			content = append(content, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: fmt.Sprintf("Attached file of unsupported type %s was omitted.", part.Attachment.MIMEType),
			})
		}
	}

	return openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: content,
	}
}

func modelMessage(turn Turn) openai.ChatCompletionMessage {
	message := openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: joinText(turn),
	}

	for _, part := range turn.Parts {
		if part.ToolCall == nil {
			continue
		}

		message.ToolCalls = append(message.ToolCalls, openai.ToolCall{
			ID:   part.ToolCall.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      part.ToolCall.Name,
				Arguments: part.ToolCall.Arguments,
			},
		})
	}

	return message
}

func toolMessage(result *ToolResult) openai.ChatCompletionMessage {
	content, err := json.Marshal(result.Response)
	if err != nil {
		content = []byte(fmt.Sprintf(`{"error_message":"failed to encode tool result: %s"}`, err))
	}

	return openai.ChatCompletionMessage{
		Role:       openai.ChatMessageRoleTool,
		ToolCallID: result.CallID,
		Name:       result.Name,
		Content:    string(content),
	}
}

func joinText(turn Turn) string {
	text := ""
	for _, part := range turn.Parts {
		text += part.Text
	}

	return text
}
