package web

import "github.com/guildflow/guildflow/pkg/models"

type CreateWorkflowRequest struct {
	GuildID       string            `json:"guild_id"       validate:"required"`
	Name          string            `json:"name"           validate:"required,min=3"`
	TriggerType   string            `json:"trigger_type"   validate:"required"`
	TriggerConfig map[string]string `json:"trigger_config" validate:"required"`
	ActionType    string            `json:"action_type"    validate:"required"`
	ActionConfig  map[string]string `json:"action_config"  validate:"required"`
}

func (r CreateWorkflowRequest) toModel(createdBy string) *models.Workflow {
	return &models.Workflow{
		GuildID:       r.GuildID,
		Name:          r.Name,
		TriggerType:   models.TriggerType(r.TriggerType),
		TriggerConfig: r.TriggerConfig,
		ActionType:    models.ActionType(r.ActionType),
		ActionConfig:  r.ActionConfig,
		CreatedBy:     createdBy,
		Enabled:       true,
	}
}

// ChatTurn is one prior exchange replayed as context for the next answer.
type ChatTurn struct {
	Role string `json:"role" validate:"required,oneof=user model"`
	Text string `json:"text" validate:"required"`
}

type ChatRequest struct {
	Prompt     string     `json:"prompt"               validate:"required"`
	Attachment string     `json:"attachment,omitempty"` // data URI
	History    []ChatTurn `json:"history,omitempty"    validate:"omitempty,dive"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

type CreateWorkflowResponse struct {
	WorkflowID string `json:"workflow_id"`
	Message    string `json:"message"`
}

type SetAPIKeyRequest struct {
	APIKey string `json:"api_key"`
}

type UsageResponse struct {
	UserID string `json:"user_id"`
	Count  int64  `json:"count"`
}
