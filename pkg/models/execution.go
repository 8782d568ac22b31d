package models

import "time"

// ExecutionStatus represents the lifecycle state of a workflow run.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCanceled  ExecutionStatus = "canceled"
)

// Terminal reports whether the status is final.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCanceled:
		return true
	default:
		return false
	}
}

// ErrorKind classifies a run-level failure for callers. Raw node errors never
// cross the executor boundary.
type ErrorKind string

const (
	ErrorKindInvalidCapabilityConfig ErrorKind = "invalid_capability_config"
	ErrorKindUnsupportedNodeKind     ErrorKind = "unsupported_node_kind"
	ErrorKindMissingCollaborator     ErrorKind = "missing_collaborator"
	ErrorKindNodeExecution           ErrorKind = "node_execution_error"
	ErrorKindTimeout                 ErrorKind = "timeout"
	ErrorKindCanceled                ErrorKind = "canceled"
)

// ExecutionResult is the persistable outcome of one run, handed off to the
// storage layer once the run reaches a terminal state.
type ExecutionResult struct {
	ID               string          `json:"id"`
	ConversationID   string          `json:"conversation_id"`
	UserID           string          `json:"user_id"`
	WorkspaceID      string          `json:"workspace_id,omitempty"`
	Status           ExecutionStatus `json:"status"`
	Reply            *Message        `json:"reply,omitempty"`
	TokensUsed       int             `json:"tokens_used"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	Cost             float64         `json:"cost"`
	StartedAt        time.Time       `json:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	ErrorKind        ErrorKind       `json:"error_kind,omitempty"`
	Error            string          `json:"error,omitempty"`
}
