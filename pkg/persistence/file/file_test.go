package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/persistence"
)

func sampleExecution(id, conversationID string, startedAt time.Time) *models.ExecutionResult {
	return &models.ExecutionResult{
		ID:             id,
		ConversationID: conversationID,
		UserID:         "user-1",
		WorkspaceID:    "ws-1",
		Status:         models.ExecutionStatusCompleted,
		TokensUsed:     70,
		StartedAt:      startedAt,
	}
}

func TestSaveAndLoadExecution(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	want := sampleExecution("exec-1", "conv-1", time.Now().UTC())
	require.NoError(t, p.Executions().SaveExecution(ctx, want))

	got, err := p.Executions().ExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.TokensUsed, got.TokensUsed)
}

func TestExecutionByIDNotFound(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.Executions().ExecutionByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestSaveExecutionOverwritesExisting(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	first := sampleExecution("exec-1", "conv-1", time.Now().UTC())
	first.Status = models.ExecutionStatusRunning
	require.NoError(t, p.Executions().SaveExecution(ctx, first))

	first.Status = models.ExecutionStatusCompleted
	require.NoError(t, p.Executions().SaveExecution(ctx, first))

	got, err := p.Executions().ExecutionByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, got.Status)
}

func TestExecutionsByConversationFilters(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, p.Executions().SaveExecution(ctx, sampleExecution("exec-1", "conv-1", time.Now())))
	require.NoError(t, p.Executions().SaveExecution(ctx, sampleExecution("exec-2", "conv-1", time.Now())))
	require.NoError(t, p.Executions().SaveExecution(ctx, sampleExecution("exec-3", "conv-2", time.Now())))

	results, err := p.Executions().ExecutionsByConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestPurgeExecutionsRemovesOnlyOldRecords(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	old := sampleExecution("exec-old", "conv-1", time.Now().Add(-48*time.Hour))
	recent := sampleExecution("exec-new", "conv-1", time.Now())

	require.NoError(t, p.Executions().SaveExecution(ctx, old))
	require.NoError(t, p.Executions().SaveExecution(ctx, recent))

	purged, err := p.Executions().PurgeExecutions(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = p.Executions().ExecutionByID(ctx, "exec-old")
	assert.True(t, persistence.IsExecutionNotFound(err))

	_, err = p.Executions().ExecutionByID(ctx, "exec-new")
	assert.NoError(t, err)
}

func TestPurgeExecutionsEmptyStore(t *testing.T) {
	p := NewPersistence(t.TempDir())

	purged, err := p.Executions().PurgeExecutions(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestAppendAndReadHistory(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, p.Conversations().AppendMessages(ctx, "conv-1", []models.Message{
		{Role: models.MessageRoleUser, Content: "hello"},
	}))
	require.NoError(t, p.Conversations().AppendMessages(ctx, "conv-1", []models.Message{
		{Role: models.MessageRoleAssistant, Content: "hi there"},
	}))

	history, err := p.Conversations().History(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, "hi there", history[1].Content)
}

func TestHistoryMissingConversationIsEmpty(t *testing.T) {
	p := NewPersistence(t.TempDir())

	history, err := p.Conversations().History(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestClearHistory(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	require.NoError(t, p.Conversations().AppendMessages(ctx, "conv-1", []models.Message{
		{Role: models.MessageRoleUser, Content: "hello"},
	}))
	require.NoError(t, p.Conversations().ClearHistory(ctx, "conv-1"))

	history, err := p.Conversations().History(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, history)

	// Clearing an already-empty conversation is a no-op.
	require.NoError(t, p.Conversations().ClearHistory(ctx, "conv-1"))
}

func TestNewPersistenceAcceptsFileURL(t *testing.T) {
	dir := t.TempDir()
	p := NewPersistence("file://" + dir)

	require.NoError(t, p.HealthCheck(context.Background()))
	require.NoError(t, p.Close(context.Background()))
}
