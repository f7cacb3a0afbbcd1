// Package models defines the core domain models for GuildFlow automation rules.
package models

import "time"

// TriggerType identifies the class of external event that can activate a workflow.
type TriggerType string

const (
	TriggerTypeRepoPush TriggerType = "repo_push"
	TriggerTypeSchedule TriggerType = "schedule" // reserved, not executable yet
)

// ActionType identifies the effect executed when a workflow fires.
type ActionType string

const (
	ActionTypePromptGeneration ActionType = "prompt_generation"
	ActionTypeChannelMessage   ActionType = "channel_message" // reserved, not executable yet
)

// Trigger config keys for repo_push triggers.
const (
	TriggerConfigRepo   = "repo"
	TriggerConfigBranch = "branch"
)

// Action config keys for prompt_generation actions.
const (
	ActionConfigTargetChannelID = "target_channel_id"
	ActionConfigPromptTemplate  = "prompt_template"
)

// Workflow is a persisted automation rule mapping a trigger condition to an action.
// A workflow is only eligible for execution while Enabled is true; disabled
// workflows remain stored but are excluded from matching.
type Workflow struct {
	ID            string            `json:"id"`
	GuildID       string            `json:"guild_id"       validate:"required"`
	Name          string            `json:"name"           validate:"required,min=3"`
	TriggerType   TriggerType       `json:"trigger_type"   validate:"required,oneof=repo_push schedule"`
	TriggerConfig map[string]string `json:"trigger_config" validate:"required"`
	ActionType    ActionType        `json:"action_type"    validate:"required,oneof=prompt_generation channel_message"`
	ActionConfig  map[string]string `json:"action_config"  validate:"required"`
	CreatedBy     string            `json:"created_by"     validate:"required"`
	Enabled       bool              `json:"is_enabled"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
