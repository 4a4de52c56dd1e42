// Package events defines event types for generation and workflow lifecycle
// notifications.
package events

import "time"

type EventType string

const Topic = "canvasflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	GenerationStartedEvent   EventType = "generation.started"
	GenerationCompletedEvent EventType = "generation.completed"
	GenerationFailedEvent    EventType = "generation.failed"
	WorkflowSavedEvent       EventType = "workflow.saved"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id,omitempty"`
}

type GenerationStarted struct {
	BaseEvent

	Model    string `json:"model"`
	Provider string `json:"provider"`
}

func (e GenerationStarted) GetType() EventType {
	return GenerationStartedEvent
}

type GenerationCompleted struct {
	BaseEvent

	ResultURL string        `json:"result_url"`
	Duration  time.Duration `json:"duration"`
}

func (e GenerationCompleted) GetType() EventType {
	return GenerationCompletedEvent
}

type GenerationFailed struct {
	BaseEvent

	Reason string `json:"reason"`
}

func (e GenerationFailed) GetType() EventType {
	return GenerationFailedEvent
}

type WorkflowSaved struct {
	BaseEvent

	WorkflowID string `json:"workflow_id"`
	NodeCount  int    `json:"node_count"`
}

func (e WorkflowSaved) GetType() EventType {
	return WorkflowSavedEvent
}
