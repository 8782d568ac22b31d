// Package events defines event types for execution lifecycle notifications
// and incremental streaming output.
package events

import (
	"time"

	"github.com/chatloom/chatloom/pkg/models"
)

type EventType string

// Event is implemented by every event published on the bus or emitted to a
// streaming sink.
type Event interface {
	GetType() EventType
}

// Broker topics.
const Topic = "chatloom.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events.
	ExecutionRequestedEvent EventType = "execution.requested"
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCanceledEvent  EventType = "execution.canceled"

	// Streaming events emitted while a run is in flight.
	NodeCompletedEvent EventType = "node.completed"
	TokenDeltaEvent    EventType = "node.token"
)

type BaseEvent struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	Timestamp      time.Time      `json:"timestamp"`
	ConversationID string         `json:"conversation_id"`
	ExecutionID    string         `json:"execution_id,omitempty"`
	WorkerID       string         `json:"worker_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ExecutionRequested asks a worker to drive one conversational turn. It
// carries everything needed to rebuild the execution request.
type ExecutionRequested struct {
	BaseEvent

	UserID       string                  `json:"user_id"`
	WorkspaceID  string                  `json:"workspace_id,omitempty"`
	Message      string                  `json:"message"`
	Capabilities models.CapabilityConfig `json:"capabilities"`
}

func (e ExecutionRequested) GetType() EventType {
	return ExecutionRequestedEvent
}

type ExecutionStarted struct {
	BaseEvent

	Capabilities models.CapabilityConfig `json:"capabilities"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	Result   *models.ExecutionResult `json:"result"`
	Duration time.Duration           `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	Result   *models.ExecutionResult `json:"result,omitempty"`
	Error    string                  `json:"error"`
	Duration time.Duration           `json:"duration"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCanceled struct {
	BaseEvent

	Result   *models.ExecutionResult `json:"result,omitempty"`
	Duration time.Duration           `json:"duration"`
}

func (e ExecutionCanceled) GetType() EventType {
	return ExecutionCanceledEvent
}

// NodeCompleted is the end-of-node streaming event: exactly one is emitted per
// executed node, in graph order, carrying the node's delta and the running
// aggregated totals after that delta was merged.
type NodeCompleted struct {
	BaseEvent

	NodeID     string                 `json:"node_id"`
	Kind       models.NodeKind        `json:"kind"`
	Delta      *models.ContextDelta   `json:"delta,omitempty"`
	Aggregated models.AggregatedUsage `json:"aggregated"`
	DurationMs int64                  `json:"duration_ms"`
}

func (e NodeCompleted) GetType() EventType {
	return NodeCompletedEvent
}

// TokenDelta is a token-level sub-event emitted while a model node streams
// partial text. It never carries usage information and must not feed running
// totals; only the end-of-node usage entry does.
type TokenDelta struct {
	BaseEvent

	NodeID  string `json:"node_id"`
	Content string `json:"content"`
}

func (e TokenDelta) GetType() EventType {
	return TokenDeltaEvent
}
