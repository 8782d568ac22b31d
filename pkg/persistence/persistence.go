// Package persistence provides the storage abstraction for execution records
// and conversation history.
package persistence

import (
	"context"
	"time"

	"github.com/chatloom/chatloom/pkg/models"
)

// ExecutionRepository stores the outcome of every run for retrieval, billing
// reconciliation and retention sweeps.
type ExecutionRepository interface {
	SaveExecution(ctx context.Context, result *models.ExecutionResult) error
	ExecutionByID(ctx context.Context, id string) (*models.ExecutionResult, error)
	ExecutionsByConversation(ctx context.Context, conversationID string) ([]*models.ExecutionResult, error)
	PurgeExecutions(ctx context.Context, olderThan time.Time) (int64, error)
}

// ConversationRepository stores the message history a new run is seeded with.
type ConversationRepository interface {
	AppendMessages(ctx context.Context, conversationID string, messages []models.Message) error
	History(ctx context.Context, conversationID string) ([]models.Message, error)
	ClearHistory(ctx context.Context, conversationID string) error
}

type Persistence interface {
	Executions() ExecutionRepository
	Conversations() ConversationRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
