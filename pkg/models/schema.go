package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Config schemas enforce the shape of trigger and action configuration maps
// at creation time, before a workflow is persisted.
var triggerConfigSchemas = map[TriggerType]string{
	TriggerTypeRepoPush: `{
		"type": "object",
		"properties": {
			"repo":   {"type": "string", "minLength": 3, "pattern": "^[^/]+/[^/]+$"},
			"branch": {"type": "string", "minLength": 1}
		},
		"required": ["repo", "branch"],
		"additionalProperties": false
	}`,
	TriggerTypeSchedule: `{
		"type": "object",
		"properties": {
			"cron": {"type": "string", "minLength": 1}
		},
		"required": ["cron"],
		"additionalProperties": false
	}`,
}

var actionConfigSchemas = map[ActionType]string{
	ActionTypePromptGeneration: `{
		"type": "object",
		"properties": {
			"target_channel_id": {"type": "string", "minLength": 1},
			"prompt_template":   {"type": "string", "minLength": 1}
		},
		"required": ["target_channel_id", "prompt_template"],
		"additionalProperties": false
	}`,
	ActionTypeChannelMessage: `{
		"type": "object",
		"properties": {
			"target_channel_id": {"type": "string", "minLength": 1},
			"message":           {"type": "string", "minLength": 1}
		},
		"required": ["target_channel_id", "message"],
		"additionalProperties": false
	}`,
}

// ErrInvalidConfig marks configuration maps rejected by their type schema.
var ErrInvalidConfig = errors.New("invalid workflow configuration")

// ValidateConfigs checks the workflow's trigger and action configuration maps
// against the schema registered for their types.
func (w *Workflow) ValidateConfigs() error {
	triggerSchema, ok := triggerConfigSchemas[w.TriggerType]
	if !ok {
		return fmt.Errorf("%w: no config schema for trigger type %q", ErrInvalidConfig, w.TriggerType)
	}

	if err := validateAgainstSchema(triggerSchema, w.TriggerConfig); err != nil {
		return fmt.Errorf("%w: trigger config: %s", ErrInvalidConfig, err)
	}

	actionSchema, ok := actionConfigSchemas[w.ActionType]
	if !ok {
		return fmt.Errorf("%w: no config schema for action type %q", ErrInvalidConfig, w.ActionType)
	}

	if err := validateAgainstSchema(actionSchema, w.ActionConfig); err != nil {
		return fmt.Errorf("%w: action config: %s", ErrInvalidConfig, err)
	}

	return nil
}

func validateAgainstSchema(schema string, config map[string]string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		details = append(details, resultErr.String())
	}

	return errors.New(strings.Join(details, "; "))
}
