package tool

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chatloom/chatloom/pkg/mocks"
	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/protocol"
)

func pendingContext(calls ...models.ToolCall) models.ExecutionContext {
	ectx := models.NewExecutionContext("exec-1", "conv-1", "user-1", "", nil)
	ectx.ToolCalls = calls

	return *ectx
}

func TestNodeRequiresDispatcher(t *testing.T) {
	_, err := NewNode("tool", protocol.Dependencies{}, models.CapabilityConfig{})

	require.ErrorIs(t, err, protocol.ErrMissingCollaborator)
}

func TestExecuteDispatchesPendingCallsInOrder(t *testing.T) {
	dispatcher := &mocks.MockToolDispatcher{}
	dispatcher.On("Dispatch", mock.Anything, models.ToolCall{ID: "call-1", Name: "clock"}).
		Return(&models.ToolResult{CallID: "call-1", Name: "clock", Output: "noon"}, nil)
	dispatcher.On("Dispatch", mock.Anything, models.ToolCall{ID: "call-2", Name: "clock"}).
		Return(&models.ToolResult{CallID: "call-2", Name: "clock", Output: "midnight"}, nil)

	node, err := NewNode("tool", protocol.Dependencies{Tools: dispatcher}, models.CapabilityConfig{})
	require.NoError(t, err)

	delta, err := node.Execute(context.Background(), pendingContext(
		models.ToolCall{ID: "call-1", Name: "clock"},
		models.ToolCall{ID: "call-2", Name: "clock"},
	), slog.Default())
	require.NoError(t, err)

	require.Len(t, delta.ToolResults, 2)
	assert.Equal(t, "call-1", delta.ToolResults[0].CallID)
	assert.Equal(t, "call-2", delta.ToolResults[1].CallID)

	// Each result becomes a tool-role turn the model reads next.
	require.Len(t, delta.Messages, 2)
	assert.Equal(t, models.MessageRoleTool, delta.Messages[0].Role)
	assert.Equal(t, "noon", delta.Messages[0].Content)
	assert.Equal(t, "call-1", delta.Messages[0].ToolCallID)
}

func TestExecuteRecordsToolFailureWithoutAbortingRun(t *testing.T) {
	dispatcher := &mocks.MockToolDispatcher{}
	dispatcher.On("Dispatch", mock.Anything, mock.Anything).
		Return(nil, errors.New("upstream 503"))

	node, err := NewNode("tool", protocol.Dependencies{Tools: dispatcher}, models.CapabilityConfig{})
	require.NoError(t, err)

	delta, err := node.Execute(context.Background(), pendingContext(
		models.ToolCall{ID: "call-1", Name: "weather"},
	), slog.Default())
	require.NoError(t, err)

	require.Len(t, delta.ToolResults, 1)
	assert.True(t, delta.ToolResults[0].Failed())
	assert.Contains(t, delta.Messages[0].Content, "tool error")
}

func TestExecuteProtocolViolationIsFatal(t *testing.T) {
	dispatcher := &mocks.MockToolDispatcher{}
	dispatcher.On("Dispatch", mock.Anything, mock.Anything).
		Return(nil, protocol.ErrProtocolViolation)

	node, err := NewNode("tool", protocol.Dependencies{Tools: dispatcher}, models.CapabilityConfig{})
	require.NoError(t, err)

	_, err = node.Execute(context.Background(), pendingContext(
		models.ToolCall{ID: "call-1", Name: "not-offered"},
	), slog.Default())

	require.ErrorIs(t, err, protocol.ErrProtocolViolation)
}

func TestExecuteSkipsAnsweredCalls(t *testing.T) {
	dispatcher := &mocks.MockToolDispatcher{}

	node, err := NewNode("tool", protocol.Dependencies{Tools: dispatcher}, models.CapabilityConfig{})
	require.NoError(t, err)

	ectx := pendingContext(models.ToolCall{ID: "call-1", Name: "clock"})
	ectx.ToolResults = []models.ToolResult{{CallID: "call-1", Name: "clock", Output: "done"}}

	delta, err := node.Execute(context.Background(), ectx, slog.Default())
	require.NoError(t, err)

	assert.Empty(t, delta.ToolResults)
	dispatcher.AssertNotCalled(t, "Dispatch")
}
