// Package redis provides Redis-backed persistence for execution records and
// conversation history. Suited to deployments where history is hot,
// short-lived state rather than an archive.
package redis

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chatloom/chatloom/pkg/persistence"
)

// Persistence implements persistence.Persistence on a Redis instance.
// Conversations are lists of JSON messages; executions are JSON values with
// a per-conversation index set.
type Persistence struct {
	client        *redis.Client
	executions    *ExecutionRepository
	conversations *ConversationRepository
}

// NewPersistence connects to Redis at the given URL (redis://...). ttl
// bounds the lifetime of conversation keys; zero means no expiry.
func NewPersistence(ctx context.Context, url string, ttl time.Duration) (*Persistence, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Persistence{
		client:        client,
		executions:    &ExecutionRepository{rdb: client},
		conversations: &ConversationRepository{rdb: client, ttl: ttl},
	}, nil
}

func (p *Persistence) Executions() persistence.ExecutionRepository {
	return p.executions
}

func (p *Persistence) Conversations() persistence.ConversationRepository {
	return p.conversations
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

func executionKey(id string) string {
	return "execution:" + id
}

func conversationExecutionsKey(conversationID string) string {
	return "conversation:" + conversationID + ":executions"
}

func conversationKey(conversationID string) string {
	return "conversation:" + conversationID + ":messages"
}

func executionIDFromKey(key string) string {
	return strings.TrimPrefix(key, "execution:")
}
