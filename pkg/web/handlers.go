// Package web provides the HTTP surface: webhook intake, workflow management
// and the chat endpoint.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/guildflow/guildflow/pkg/conversation"
	"github.com/guildflow/guildflow/pkg/eventbus"
	"github.com/guildflow/guildflow/pkg/events"
	"github.com/guildflow/guildflow/pkg/genai"
	"github.com/guildflow/guildflow/pkg/models"
	"github.com/guildflow/guildflow/pkg/signature"
	"github.com/guildflow/guildflow/pkg/tools"
	"github.com/guildflow/guildflow/pkg/workflow"
)

const (
	signatureHeader = "X-Hub-Signature-256"
	eventHeader     = "X-GitHub-Event"
	deliveryHeader  = "X-GitHub-Delivery"
)

// UserStore keeps per-user API keys and usage counters.
type UserStore interface {
	SetAPIKey(ctx context.Context, userID, apiKey string) error
	APIKey(ctx context.Context, userID string) (string, error)
	IncrementUsage(ctx context.Context, userID string) (int64, error)
	UsageCount(ctx context.Context, userID string) (int64, error)
}

type APIHandlers struct {
	repository    *workflow.Repository
	validator     *validator.Validate
	eventBus      eventbus.EventBus
	webhookSecret string
	client        genai.KeyedClient
	registry      *tools.Registry
	invoker       *tools.Invoker
	users         UserStore
	logger        *slog.Logger
}

func NewAPIHandlers(
	repository *workflow.Repository,
	validator *validator.Validate,
	eventBus eventbus.EventBus,
	webhookSecret string,
	client genai.KeyedClient,
	registry *tools.Registry,
	invoker *tools.Invoker,
	users UserStore,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		repository:    repository,
		validator:     validator,
		eventBus:      eventBus,
		webhookSecret: webhookSecret,
		client:        client,
		registry:      registry,
		invoker:       invoker,
		users:         users,
		logger:        logger.With("module", "web"),
	}
}

// GitHubWebhook validates and queues one webhook delivery. The signature is
// checked against the raw body before anything is parsed; processing happens
// asynchronously so GitHub gets its answer within its delivery timeout.
func (h *APIHandlers) GitHubWebhook(c fiber.Ctx) error {
	received := c.Get(signatureHeader)
	if received == "" {
		return badRequest(c, "missing "+signatureHeader+" header")
	}

	body := c.Body()

	if !signature.Verify(h.webhookSecret, body, received) {
		h.logger.WarnContext(c.Context(), "Rejected webhook with invalid signature",
			"delivery_id", c.Get(deliveryHeader))

		return unauthorized(c, "invalid signature")
	}

	if event := c.Get(eventHeader); event != "push" {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "ignored", "event": event})
	}

	payload := make([]byte, len(body))
	copy(payload, body)

	pushEvent := &events.PushReceived{
		BaseEvent: events.BaseEvent{
			ID:        h.eventBus.GenerateID(),
			Type:      events.PushReceivedEvent,
			Timestamp: time.Now().UTC(),
		},
		DeliveryID: c.Get(deliveryHeader),
		Payload:    payload,
	}

	if err := h.eventBus.Publish(c.Context(), pushEvent.DeliveryID, pushEvent); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted", "event_id": pushEvent.ID})
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.repository.FetchAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	found, err := h.repository.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleRepositoryError(c, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var request CreateWorkflowRequest
	if err := c.Bind().JSON(&request); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(request); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.repository.Create(c.Context(), request.toModel(UserID(c)))
	if err != nil {
		if errors.Is(err, models.ErrInvalidConfig) {
			return badRequest(c, err.Error())
		}

		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(CreateWorkflowResponse{
		WorkflowID: created.ID,
		Message:    fmt.Sprintf("workflow %q created", created.Name),
	})
}

func (h *APIHandlers) EnableWorkflow(c fiber.Ctx) error {
	return h.setEnabled(c, true)
}

func (h *APIHandlers) DisableWorkflow(c fiber.Ctx) error {
	return h.setEnabled(c, false)
}

func (h *APIHandlers) setEnabled(c fiber.Ctx, enabled bool) error {
	updated, err := h.repository.SetEnabled(c.Context(), c.Params("id"), enabled)
	if err != nil {
		return handleRepositoryError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.repository.Delete(c.Context(), c.Params("id")); err != nil {
		return handleRepositoryError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Chat runs one generation loop on behalf of the authenticated user. A user
// with a stored API key is billed to that key; everyone else shares the
// service key.
func (h *APIHandlers) Chat(c fiber.Ctx) error {
	var request ChatRequest
	if err := c.Bind().JSON(&request); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(request); err != nil {
		return badRequest(c, err.Error())
	}

	userID := UserID(c)

	turn := genai.UserText(request.Prompt)

	if request.Attachment != "" {
		attachment, err := genai.ParseDataURI(request.Attachment)
		if err != nil {
			return badRequest(c, "invalid attachment: "+err.Error())
		}

		turn = genai.UserTextWithAttachment(request.Prompt, attachment)
	}

	// Prior turns are replayed as context ahead of the new prompt.
	history := make([]genai.Turn, 0, len(request.History)+1)

	for _, entry := range request.History {
		switch entry.Role {
		case "user":
			history = append(history, genai.UserText(entry.Text))
		case "model":
			history = append(history, genai.ModelText(entry.Text))
		}
	}

	history = append(history, turn)

	client := genai.Client(h.client)

	if userKey, err := h.users.APIKey(c.Context(), userID); err != nil {
		h.logger.WarnContext(c.Context(), "Failed to load user API key", "user_id", userID, "error", err)
	} else if userKey != "" {
		client = h.client.WithAPIKey(userKey)
	}

	runner := conversation.NewRunner(client, h.registry, h.invoker, h.logger)

	reply, err := runner.Run(c.Context(), history)
	if err != nil {
		if errors.Is(err, conversation.ErrEmptyResponse) || errors.Is(err, conversation.ErrTurnLimit) {
			return badRequest(c, err.Error())
		}

		return internalError(c, err)
	}

	if _, err := h.users.IncrementUsage(c.Context(), userID); err != nil {
		h.logger.WarnContext(c.Context(), "Failed to record usage", "user_id", userID, "error", err)
	}

	return c.JSON(ChatResponse{Reply: reply})
}

func (h *APIHandlers) SetAPIKey(c fiber.Ctx) error {
	var request SetAPIKeyRequest
	if err := c.Bind().JSON(&request); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	if err := h.users.SetAPIKey(c.Context(), UserID(c), request.APIKey); err != nil {
		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetUsage(c fiber.Ctx) error {
	userID := UserID(c)

	count, err := h.users.UsageCount(c.Context(), userID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(UsageResponse{UserID: userID, Count: count})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, healthy := h.repository.HealthCheck(c.Context())
	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": message})
	}

	return c.JSON(fiber.Map{"status": message})
}
