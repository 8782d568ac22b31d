// Package postgresql provides PostgreSQL-backed persistence for execution
// records and conversation history.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/chatloom/chatloom/pkg/persistence"
	"github.com/chatloom/chatloom/pkg/persistence/sqlbase"
)

var migrations = map[int]string{
	1: `
		CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			workspace_id TEXT NOT NULL,
			status TEXT NOT NULL,
			reply JSONB,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			cost DOUBLE PRECISION NOT NULL DEFAULT 0,
			started_at TIMESTAMP WITH TIME ZONE NOT NULL,
			completed_at TIMESTAMP WITH TIME ZONE,
			error_kind TEXT,
			error TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_executions_conversation_id ON executions(conversation_id);
		CREATE INDEX IF NOT EXISTS idx_executions_started_at ON executions(started_at);

		CREATE TABLE IF NOT EXISTS conversation_messages (
			id BIGSERIAL PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			message JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_conversation_messages_conversation_id ON conversation_messages(conversation_id);
	`,
}

// Persistence implements persistence.Persistence backed by PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	executions    *ExecutionRepository
	conversations *ConversationRepository
}

// NewPersistence opens the database, verifies connectivity and applies any
// pending schema migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrator := sqlbase.NewMigrationManager(logger, db, migrations)
	if err := migrator.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            db,
		logger:        logger,
		executions:    &ExecutionRepository{db: db},
		conversations: &ConversationRepository{db: db},
	}, nil
}

func (p *Persistence) Executions() persistence.ExecutionRepository {
	return p.executions
}

func (p *Persistence) Conversations() persistence.ConversationRepository {
	return p.conversations
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Persistence) Close(_ context.Context) error {
	return p.db.Close()
}
