package model

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

func newContext(messages ...models.Message) models.ExecutionContext {
	ectx := models.NewExecutionContext("exec-1", "conv-1", "user-1", "", messages)

	return *ectx
}

func TestNodeRequiresModelClient(t *testing.T) {
	_, err := NewNode("model", protocol.Dependencies{}, models.CapabilityConfig{Model: "gpt-4o"})

	require.ErrorIs(t, err, protocol.ErrMissingCollaborator)
}

func TestNodeRequiresDispatcherWhenToolsEnabled(t *testing.T) {
	deps := protocol.Dependencies{Model: &mocks.MockModelClient{}}

	_, err := NewNode("model", deps, models.CapabilityConfig{
		Model:        "gpt-4o",
		ToolsEnabled: true,
		ToolSet:      []string{"clock"},
	})

	require.ErrorIs(t, err, protocol.ErrMissingCollaborator)
}

func TestExecuteReturnsReplyWithUsage(t *testing.T) {
	client := &mocks.MockModelClient{}
	client.On("Invoke", mock.Anything, mock.Anything).Return(&protocol.ModelResponse{
		Message: models.Message{Role: models.MessageRoleAssistant, Content: "hi"},
		Usage:   map[string]any{"prompt_tokens": 5, "completion_tokens": 2},
	}, nil)

	node, err := NewNode("model", protocol.Dependencies{Model: client}, models.CapabilityConfig{Model: "gpt-4o"})
	require.NoError(t, err)

	delta, err := node.Execute(context.Background(), newContext(
		models.Message{Role: models.MessageRoleUser, Content: "hello"},
	), slog.Default())
	require.NoError(t, err)

	require.Len(t, delta.Messages, 1)
	assert.Equal(t, models.MessageRoleAssistant, delta.Messages[0].Role)

	record, ok := delta.Usage["model"]
	require.True(t, ok)
	assert.Equal(t, "gpt-4o", record.Model)
	assert.NotEmpty(t, record.CallID)
	assert.Equal(t, 5, record.Raw["prompt_tokens"])
}

func TestExecuteWithoutUsageReportIsNotAnError(t *testing.T) {
	client := &mocks.MockModelClient{}
	client.On("Invoke", mock.Anything, mock.Anything).Return(&protocol.ModelResponse{
		Message: models.Message{Role: models.MessageRoleAssistant, Content: "hi"},
	}, nil)

	node, err := NewNode("model", protocol.Dependencies{Model: client}, models.CapabilityConfig{Model: "gpt-4o"})
	require.NoError(t, err)

	delta, err := node.Execute(context.Background(), newContext(), slog.Default())
	require.NoError(t, err)

	assert.Empty(t, delta.Usage)
}

func TestExecuteRetriesOnceOnTransientError(t *testing.T) {
	client := &mocks.MockModelClient{}
	client.On("Invoke", mock.Anything, mock.Anything).
		Return(nil, protocol.ErrTransient).Once()
	client.On("Invoke", mock.Anything, mock.Anything).
		Return(&protocol.ModelResponse{
			Message: models.Message{Role: models.MessageRoleAssistant, Content: "recovered"},
		}, nil).Once()

	node, err := NewNode("model", protocol.Dependencies{Model: client}, models.CapabilityConfig{Model: "gpt-4o"})
	require.NoError(t, err)

	delta, err := node.Execute(context.Background(), newContext(), slog.Default())
	require.NoError(t, err)

	assert.Equal(t, "recovered", delta.Messages[0].Content)
	client.AssertNumberOfCalls(t, "Invoke", 2)
}

func TestExecuteDoesNotRetryPermanentErrors(t *testing.T) {
	client := &mocks.MockModelClient{}
	client.On("Invoke", mock.Anything, mock.Anything).
		Return(nil, errors.New("bad request"))

	node, err := NewNode("model", protocol.Dependencies{Model: client}, models.CapabilityConfig{Model: "gpt-4o"})
	require.NoError(t, err)

	_, err = node.Execute(context.Background(), newContext(), slog.Default())
	require.Error(t, err)
	client.AssertNumberOfCalls(t, "Invoke", 1)
}

func TestExecuteFoldsRetrievalContextBeforeLatestUserTurn(t *testing.T) {
	var seen []models.Message

	client := &mocks.MockModelClient{}
	client.On("Invoke", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		seen = args.Get(1).(protocol.ModelRequest).Messages
	}).Return(&protocol.ModelResponse{
		Message: models.Message{Role: models.MessageRoleAssistant, Content: "ok"},
	}, nil)

	node, err := NewNode("model", protocol.Dependencies{Model: client}, models.CapabilityConfig{Model: "gpt-4o"})
	require.NoError(t, err)

	ectx := newContext(
		models.Message{Role: models.MessageRoleUser, Content: "older question"},
		models.Message{Role: models.MessageRoleAssistant, Content: "older answer"},
		models.Message{Role: models.MessageRoleUser, Content: "current question"},
	)

	rc := "retrieved facts"
	ectx.RetrievalContext = &rc

	_, err = node.Execute(context.Background(), ectx, slog.Default())
	require.NoError(t, err)

	require.Len(t, seen, 4)
	assert.Equal(t, models.MessageRoleSystem, seen[2].Role)
	assert.Contains(t, seen[2].Content, "retrieved facts")
	assert.Equal(t, "current question", seen[3].Content)
}

func TestExecuteOffersToolSchemasWhenEnabled(t *testing.T) {
	dispatcher := &mocks.MockToolDispatcher{}
	dispatcher.On("Schemas", []string{"clock"}).Return([]protocol.ToolSchema{{Name: "clock"}})

	var seen []protocol.ToolSchema

	client := &mocks.MockModelClient{}
	client.On("Invoke", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		seen = args.Get(1).(protocol.ModelRequest).ToolSchemas
	}).Return(&protocol.ModelResponse{
		Message: models.Message{
			Role:      models.MessageRoleAssistant,
			ToolCalls: []models.ToolCall{{ID: "call-1", Name: "clock"}},
		},
	}, nil)

	node, err := NewNode("model", protocol.Dependencies{Model: client, Tools: dispatcher}, models.CapabilityConfig{
		Model:        "gpt-4o",
		ToolsEnabled: true,
		ToolSet:      []string{"clock"},
	})
	require.NoError(t, err)

	delta, err := node.Execute(context.Background(), newContext(), slog.Default())
	require.NoError(t, err)

	require.Len(t, seen, 1)
	assert.Equal(t, "clock", seen[0].Name)

	// Requested tool calls surface on the delta for the tool node.
	require.Len(t, delta.ToolCalls, 1)
	assert.Equal(t, "call-1", delta.ToolCalls[0].ID)
}

func TestExecuteStreamForwardsTokens(t *testing.T) {
	client := &mocks.MockStreamingModelClient{Tokens: []string{"a", "b"}}
	client.On("InvokeStream", mock.Anything, mock.Anything).Return(&protocol.ModelResponse{
		Message: models.Message{Role: models.MessageRoleAssistant, Content: "ab"},
	}, nil)

	node, err := NewNode("model", protocol.Dependencies{Model: client}, models.CapabilityConfig{Model: "gpt-4o"})
	require.NoError(t, err)

	var tokens []string

	delta, err := node.ExecuteStream(context.Background(), newContext(), func(token string) {
		tokens = append(tokens, token)
	}, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, tokens)
	assert.Equal(t, "ab", delta.Messages[0].Content)
}
