package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrExecutionNotFound indicates an execution record was not found by the given identifier.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrConversationNotFound indicates no history exists for the given conversation.
	ErrConversationNotFound = errors.New("conversation not found")
)

// ExecutionError wraps execution-record errors with operation context.
type ExecutionError struct {
	Op          string // Operation being performed (e.g., "Save", "GetByID", "Purge")
	ExecutionID string
	Err         error
}

func (e *ExecutionError) Error() string {
	if e.ExecutionID != "" {
		return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
	}

	return fmt.Sprintf("%s operation failed: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates a new execution error with context.
func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{
		Op:          op,
		ExecutionID: executionID,
		Err:         err,
	}
}

// ConversationError wraps conversation-history errors with operation context.
type ConversationError struct {
	Op             string
	ConversationID string
	Err            error
}

func (e *ConversationError) Error() string {
	return fmt.Sprintf("%s operation failed for conversation %s: %v", e.Op, e.ConversationID, e.Err)
}

func (e *ConversationError) Unwrap() error {
	return e.Err
}

func (e *ConversationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsExecutionNotFound checks if an error indicates an execution record was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}
