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

// ExecutionRepository stores each execution record as a JSON value plus a
// per-conversation set of record ids for listing.
type ExecutionRepository struct {
	rdb redis.Cmdable
}

func (r *ExecutionRepository) SaveExecution(ctx context.Context, result *models.ExecutionResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return persistence.NewExecutionError("Save", result.ID, err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, executionKey(result.ID), payload, 0)
	pipe.SAdd(ctx, conversationExecutionsKey(result.ConversationID), result.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewExecutionError("Save", result.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) ExecutionByID(ctx context.Context, id string) (*models.ExecutionResult, error) {
	payload, err := r.rdb.Get(ctx, executionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	var result models.ExecutionResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return &result, nil
}

func (r *ExecutionRepository) ExecutionsByConversation(ctx context.Context, conversationID string) ([]*models.ExecutionResult, error) {
	ids, err := r.rdb.SMembers(ctx, conversationExecutionsKey(conversationID)).Result()
	if err != nil {
		return nil, persistence.NewExecutionError("List", "", err)
	}

	results := make([]*models.ExecutionResult, 0, len(ids))

	for _, id := range ids {
		result, err := r.ExecutionByID(ctx, id)
		if err != nil {
			// Index entries can outlive purged records.
			if persistence.IsExecutionNotFound(err) {
				continue
			}

			return nil, err
		}

		results = append(results, result)
	}

	return results, nil
}

func (r *ExecutionRepository) PurgeExecutions(ctx context.Context, olderThan time.Time) (int64, error) {
	var (
		purged int64
		cursor uint64
	)

	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, executionKey("*"), 100).Result()
		if err != nil {
			return purged, persistence.NewExecutionError("Purge", "", err)
		}

		for _, key := range keys {
			result, err := r.ExecutionByID(ctx, executionIDFromKey(key))
			if err != nil {
				if persistence.IsExecutionNotFound(err) {
					continue
				}

				return purged, err
			}

			if !result.StartedAt.Before(olderThan) {
				continue
			}

			pipe := r.rdb.TxPipeline()
			pipe.Del(ctx, key)
			pipe.SRem(ctx, conversationExecutionsKey(result.ConversationID), result.ID)

			if _, err := pipe.Exec(ctx); err != nil {
				return purged, persistence.NewExecutionError("Purge", result.ID, err)
			}

			purged++
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return purged, nil
}
