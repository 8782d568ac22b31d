package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/persistence"
)

// ConversationRepository stores conversation history as one JSONB row per
// message, ordered by insertion.
type ConversationRepository struct {
	db *sql.DB
}

func (r *ConversationRepository) AppendMessages(ctx context.Context, conversationID string, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &persistence.ConversationError{Op: "Append", ConversationID: conversationID, Err: err}
	}

	for _, message := range messages {
		payload, err := json.Marshal(message)
		if err != nil {
			_ = tx.Rollback()

			return &persistence.ConversationError{Op: "Append", ConversationID: conversationID, Err: err}
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO conversation_messages (conversation_id, message) VALUES ($1, $2)",
			conversationID, payload,
		)
		if err != nil {
			_ = tx.Rollback()

			return &persistence.ConversationError{Op: "Append", ConversationID: conversationID, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &persistence.ConversationError{Op: "Append", ConversationID: conversationID, Err: err}
	}

	return nil
}

func (r *ConversationRepository) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT message FROM conversation_messages WHERE conversation_id = $1 ORDER BY id",
		conversationID,
	)
	if err != nil {
		return nil, &persistence.ConversationError{Op: "History", ConversationID: conversationID, Err: err}
	}
	defer rows.Close()

	var history []models.Message

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, &persistence.ConversationError{Op: "History", ConversationID: conversationID, Err: err}
		}

		var message models.Message
		if err := json.Unmarshal(payload, &message); err != nil {
			return nil, &persistence.ConversationError{Op: "History", ConversationID: conversationID, Err: err}
		}

		history = append(history, message)
	}

	if err := rows.Err(); err != nil {
		return nil, &persistence.ConversationError{Op: "History", ConversationID: conversationID, Err: err}
	}

	return history, nil
}

func (r *ConversationRepository) ClearHistory(ctx context.Context, conversationID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM conversation_messages WHERE conversation_id = $1",
		conversationID,
	)
	if err != nil {
		return &persistence.ConversationError{Op: "Clear", ConversationID: conversationID, Err: err}
	}

	return nil
}
