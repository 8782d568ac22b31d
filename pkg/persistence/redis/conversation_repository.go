package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/persistence"
)

// ConversationRepository stores each conversation as a Redis list of JSON
// messages, TTL refreshed on every append.
type ConversationRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func (r *ConversationRepository) AppendMessages(ctx context.Context, conversationID string, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	key := conversationKey(conversationID)

	payloads := make([]any, 0, len(messages))

	for _, message := range messages {
		payload, err := json.Marshal(message)
		if err != nil {
			return &persistence.ConversationError{Op: "Append", ConversationID: conversationID, Err: err}
		}

		payloads = append(payloads, payload)
	}

	if err := r.rdb.RPush(ctx, key, payloads...).Err(); err != nil {
		return &persistence.ConversationError{Op: "Append", ConversationID: conversationID, Err: err}
	}

	if r.ttl > 0 {
		if err := r.rdb.Expire(ctx, key, r.ttl).Err(); err != nil {
			return &persistence.ConversationError{Op: "Append", ConversationID: conversationID, Err: err}
		}
	}

	return nil
}

func (r *ConversationRepository) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := r.rdb.LRange(ctx, conversationKey(conversationID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, &persistence.ConversationError{Op: "History", ConversationID: conversationID, Err: err}
	}

	history := make([]models.Message, 0, len(rows))

	for _, row := range rows {
		var message models.Message
		if err := json.Unmarshal([]byte(row), &message); err != nil {
			return nil, &persistence.ConversationError{Op: "History", ConversationID: conversationID, Err: err}
		}

		history = append(history, message)
	}

	return history, nil
}

func (r *ConversationRepository) ClearHistory(ctx context.Context, conversationID string) error {
	if err := r.rdb.Del(ctx, conversationKey(conversationID)).Err(); err != nil {
		return &persistence.ConversationError{Op: "Clear", ConversationID: conversationID, Err: err}
	}

	return nil
}
