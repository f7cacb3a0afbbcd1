// Package events defines the event types flowing between the API intake and
// the workflow worker.
package events

import (
	"encoding/json"
	"time"
)

type EventType string

// Kafka topic shared by all guildflow events.
const Topic = "guildflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// A validated GitHub push webhook was accepted and queued.
	PushReceivedEvent EventType = "webhook.push.received"

	// Workflow execution lifecycle.
	WorkflowTriggeredEvent EventType = "workflow.triggered"
	WorkflowCompletedEvent EventType = "workflow.completed"
	WorkflowFailedEvent    EventType = "workflow.failed"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// PushReceived carries the parsed payload of one webhook delivery. It is
// ephemeral: consumed by exactly one matching pass, never persisted.
type PushReceived struct {
	BaseEvent

	DeliveryID string          `json:"delivery_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

func (e PushReceived) GetType() EventType {
	return PushReceivedEvent
}

type WorkflowTriggered struct {
	BaseEvent

	WorkflowID        string            `json:"workflow_id"`
	WorkflowName      string            `json:"workflow_name"`
	TriggerAttributes map[string]string `json:"trigger_attributes,omitempty"`
}

func (e WorkflowTriggered) GetType() EventType {
	return WorkflowTriggeredEvent
}

type WorkflowCompleted struct {
	BaseEvent

	WorkflowID string        `json:"workflow_id"`
	ChannelID  string        `json:"channel_id"`
	Duration   time.Duration `json:"duration"`
}

func (e WorkflowCompleted) GetType() EventType {
	return WorkflowCompletedEvent
}

type WorkflowFailed struct {
	BaseEvent

	WorkflowID string `json:"workflow_id"`
	Error      string `json:"error"`
}

func (e WorkflowFailed) GetType() EventType {
	return WorkflowFailedEvent
}
