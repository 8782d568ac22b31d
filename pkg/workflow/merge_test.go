package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatloom/chatloom/pkg/models"
)

func TestMergerAppendsMessagesAndToolState(t *testing.T) {
	merger := NewMerger()
	ectx := models.NewExecutionContext("exec-1", "conv-1", "user-1", "", []models.Message{
		{Role: models.MessageRoleUser, Content: "hello"},
	})

	delta := &models.ContextDelta{
		Messages: []models.Message{
			{Role: models.MessageRoleAssistant, Content: "hi there"},
		},
		ToolCalls: []models.ToolCall{
			{ID: "call-1", Name: "clock"},
		},
		ToolResults: []models.ToolResult{
			{CallID: "call-1", Name: "clock", Output: "2026-01-01T00:00:00Z"},
		},
	}

	err := merger.Apply(ectx, delta)
	require.NoError(t, err)

	require.Len(t, ectx.Messages, 2)
	assert.Equal(t, "hi there", ectx.Messages[1].Content)
	require.Len(t, ectx.ToolCalls, 1)
	require.Len(t, ectx.ToolResults, 1)
}

func TestMergerReplacesRetrievalContextWhenSet(t *testing.T) {
	merger := NewMerger()
	ectx := models.NewExecutionContext("exec-1", "conv-1", "user-1", "", nil)

	first := "first context"
	second := "second context"

	require.NoError(t, merger.Apply(ectx, &models.ContextDelta{RetrievalContext: &first}))
	require.NoError(t, merger.Apply(ectx, &models.ContextDelta{RetrievalContext: &second}))

	require.NotNil(t, ectx.RetrievalContext)
	assert.Equal(t, "second context", *ectx.RetrievalContext)

	// A delta without retrieval context leaves the existing value alone.
	require.NoError(t, merger.Apply(ectx, &models.ContextDelta{
		Messages: []models.Message{{Role: models.MessageRoleAssistant, Content: "x"}},
	}))
	assert.Equal(t, "second context", *ectx.RetrievalContext)
}

func TestMergerRejectsDuplicateUsageKey(t *testing.T) {
	merger := NewMerger()
	ectx := models.NewExecutionContext("exec-1", "conv-1", "user-1", "", nil)

	require.NoError(t, merger.Apply(ectx, &models.ContextDelta{
		Usage: map[string]models.UsageRecord{
			"model": {CallID: "call-1", Model: "gpt-4o"},
		},
	}))

	err := merger.Apply(ectx, &models.ContextDelta{
		Messages: []models.Message{{Role: models.MessageRoleAssistant, Content: "late"}},
		Usage: map[string]models.UsageRecord{
			"model": {CallID: "call-2", Model: "gpt-4o"},
		},
	})
	require.ErrorIs(t, err, ErrDuplicateUsageKey)

	// The rejected delta must leave the context untouched, messages included.
	assert.Empty(t, ectx.Messages)
	assert.Equal(t, "call-1", ectx.UsageMetadata["model"].CallID)
}

func TestMergerStampsSequenceInMergeOrder(t *testing.T) {
	merger := NewMerger()
	ectx := models.NewExecutionContext("exec-1", "conv-1", "user-1", "", nil)

	require.NoError(t, merger.Apply(ectx, &models.ContextDelta{
		Usage: map[string]models.UsageRecord{
			"model": {CallID: "call-1"},
		},
	}))
	require.NoError(t, merger.Apply(ectx, &models.ContextDelta{
		Usage: map[string]models.UsageRecord{
			"tool": {CallID: "call-2"},
		},
	}))

	assert.Equal(t, 1, ectx.UsageMetadata["model"].Sequence)
	assert.Equal(t, 2, ectx.UsageMetadata["tool"].Sequence)
}

func TestMergerIgnoresZeroDelta(t *testing.T) {
	merger := NewMerger()
	ectx := models.NewExecutionContext("exec-1", "conv-1", "user-1", "", nil)

	require.NoError(t, merger.Apply(ectx, &models.ContextDelta{}))
	require.NoError(t, merger.Apply(ectx, nil))

	assert.Empty(t, ectx.Messages)
	assert.Empty(t, ectx.UsageMetadata)
}
