// Package discord posts messages to Discord channels over the REST API.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/guildflow/guildflow/pkg/genai"
)

const defaultBaseURL = "https://discord.com/api/v10"

type Config struct {
	BotToken string
	BaseURL  string
	Timeout  time.Duration
}

// Client posts to channels as the configured bot.
type Client struct {
	client *resty.Client
	logger *slog.Logger
}

func NewClient(config Config, logger *slog.Logger) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Authorization", "Bot "+config.BotToken).
		SetHeader("Content-Type", "application/json")

	return &Client{
		client: client,
		logger: logger.With("module", "discord"),
	}
}

// PostMessage sends content to a channel, splitting it into multiple messages
// when it exceeds the Discord length limit. Chunks are posted sequentially so
// they arrive in order; the first failure aborts the remainder.
func (c *Client) PostMessage(ctx context.Context, channelID, content string) error {
	if content == "" {
		return nil
	}

	chunks := SplitMessage(content)

	for i, chunk := range chunks {
		if err := c.postChunk(ctx, channelID, chunk); err != nil {
			return fmt.Errorf("failed to post message chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}

	c.logger.DebugContext(ctx, "Posted message", "channel_id", channelID, "chunks", len(chunks))

	return nil
}

func (c *Client) postChunk(ctx context.Context, channelID, content string) error {
	response, err := c.client.R().
		SetContext(ctx).
		SetPathParam("channelID", channelID).
		SetBody(map[string]string{"content": content}).
		Post("/channels/{channelID}/messages")
	if err != nil {
		return err
	}

	if response.IsError() {
		return fmt.Errorf("discord returned status %d: %s", response.StatusCode(), response.String())
	}

	return nil
}

// ChannelNotifier posts tool progress lines to a fixed channel. It is
// best-effort: errors are logged, never propagated.
type ChannelNotifier struct {
	client    *Client
	channelID string
}

func (c *Client) Notifier(channelID string) *ChannelNotifier {
	return &ChannelNotifier{client: c, channelID: channelID}
}

func (n *ChannelNotifier) NotifyToolCalls(ctx context.Context, calls []genai.ToolCall) {
	names := make([]string, 0, len(calls))
	for _, call := range calls {
		names = append(names, call.Name)
	}

	content := fmt.Sprintf("-# Running: %s", strings.Join(names, ", "))

	if err := n.client.PostMessage(ctx, n.channelID, content); err != nil {
		n.client.logger.WarnContext(ctx, "Failed to post tool progress", "channel_id", n.channelID, "error", err)
	}
}
