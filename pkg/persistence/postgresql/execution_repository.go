package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/persistence"
)

// ExecutionRepository persists execution records in the executions table.
// The reply message is stored as JSONB; the usage totals are flattened into
// columns so billing queries never parse JSON.
type ExecutionRepository struct {
	db *sql.DB
}

func (r *ExecutionRepository) SaveExecution(ctx context.Context, result *models.ExecutionResult) error {
	var reply []byte

	if result.Reply != nil {
		var err error

		reply, err = json.Marshal(result.Reply)
		if err != nil {
			return persistence.NewExecutionError("Save", result.ID, err)
		}
	}

	query := `
		INSERT INTO executions (
			id, conversation_id, user_id, workspace_id, status, reply,
			tokens_used, prompt_tokens, completion_tokens, cost,
			started_at, completed_at, error_kind, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			reply = EXCLUDED.reply,
			tokens_used = EXCLUDED.tokens_used,
			prompt_tokens = EXCLUDED.prompt_tokens,
			completion_tokens = EXCLUDED.completion_tokens,
			cost = EXCLUDED.cost,
			completed_at = EXCLUDED.completed_at,
			error_kind = EXCLUDED.error_kind,
			error = EXCLUDED.error
	`

	_, err := r.db.ExecContext(ctx, query,
		result.ID, result.ConversationID, result.UserID, result.WorkspaceID,
		result.Status, reply,
		result.TokensUsed, result.PromptTokens, result.CompletionTokens, result.Cost,
		result.StartedAt, result.CompletedAt,
		nullString(string(result.ErrorKind)), nullString(result.Error),
	)
	if err != nil {
		return persistence.NewExecutionError("Save", result.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.ExecutionResult, error) {
	query := selectColumns + " WHERE id = $1"

	result, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return result, nil
}

func (r *ExecutionRepository) ExecutionsByConversation(ctx context.Context, conversationID string) ([]*models.ExecutionResult, error) {
	query := selectColumns + " WHERE conversation_id = $1 ORDER BY started_at"

	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, persistence.NewExecutionError("List", "", err)
	}
	defer rows.Close()

	var results []*models.ExecutionResult

	for rows.Next() {
		result, err := scanExecution(rows)
		if err != nil {
			return nil, persistence.NewExecutionError("List", "", err)
		}

		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewExecutionError("List", "", err)
	}

	return results, nil
}

func (r *ExecutionRepository) PurgeExecutions(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM executions WHERE started_at < $1", olderThan)
	if err != nil {
		return 0, persistence.NewExecutionError("Purge", "", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, persistence.NewExecutionError("Purge", "", err)
	}

	return purged, nil
}

const selectColumns = `
	SELECT id, conversation_id, user_id, workspace_id, status, reply,
		tokens_used, prompt_tokens, completion_tokens, cost,
		started_at, completed_at, error_kind, error
	FROM executions
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*models.ExecutionResult, error) {
	var (
		result    models.ExecutionResult
		reply     []byte
		errorKind sql.NullString
		errorText sql.NullString
	)

	err := row.Scan(
		&result.ID, &result.ConversationID, &result.UserID, &result.WorkspaceID,
		&result.Status, &reply,
		&result.TokensUsed, &result.PromptTokens, &result.CompletionTokens, &result.Cost,
		&result.StartedAt, &result.CompletedAt,
		&errorKind, &errorText,
	)
	if err != nil {
		return nil, err
	}

	if len(reply) > 0 {
		var message models.Message
		if err := json.Unmarshal(reply, &message); err != nil {
			return nil, err
		}

		result.Reply = &message
	}

	result.ErrorKind = models.ErrorKind(errorKind.String)
	result.Error = errorText.String

	return &result, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
