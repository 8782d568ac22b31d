package execution

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chatloom/chatloom/pkg/events"
	"github.com/chatloom/chatloom/pkg/mocks"
	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/nodes/memory"
	"github.com/chatloom/chatloom/pkg/nodes/model"
	"github.com/chatloom/chatloom/pkg/nodes/retrieval"
	"github.com/chatloom/chatloom/pkg/nodes/tool"
	"github.com/chatloom/chatloom/pkg/persistence/file"
	"github.com/chatloom/chatloom/pkg/pricing"
	"github.com/chatloom/chatloom/pkg/protocol"
	"github.com/chatloom/chatloom/pkg/registry"
	"github.com/chatloom/chatloom/pkg/workflow"
)

type executorFixture struct {
	executor  *Executor
	persist   *file.Persistence
	model     *mocks.MockModelClient
	retriever *mocks.MockRetriever
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()

	logger := slog.Default()

	reg := registry.NewRegistry(logger)
	reg.Register(model.NewFactory())
	reg.Register(retrieval.NewFactory())
	reg.Register(tool.NewFactory())
	reg.Register(memory.NewFactory())

	modelClient := &mocks.MockModelClient{}
	retriever := &mocks.MockRetriever{}

	deps := protocol.Dependencies{
		Logger:    logger,
		Model:     modelClient,
		Retriever: retriever,
		Tools:     &mocks.MockToolDispatcher{},
		Memory:    &mocks.MockMemoryStore{},
	}

	persist := file.NewPersistence(t.TempDir())

	builder := workflow.NewBuilder(reg, deps, logger)
	runner := workflow.NewRunner(logger, pricing.DefaultTable())

	return &executorFixture{
		executor:  NewExecutor(logger, builder, runner, persist, nil, "test"),
		persist:   persist,
		model:     modelClient,
		retriever: retriever,
	}
}

func validRequest() Request {
	return Request{
		ConversationID: "conv-1",
		UserID:         "user-1",
		Message:        "What is the capital of France?",
		Capabilities:   models.CapabilityConfig{Model: "gpt-4o"},
	}
}

func TestExecuteProducesReplyAndAggregatedUsage(t *testing.T) {
	f := newExecutorFixture(t)

	f.model.On("Invoke", mock.Anything, mock.Anything).Return(&protocol.ModelResponse{
		Message: models.Message{Role: models.MessageRoleAssistant, Content: "Paris."},
		Usage:   map[string]any{"prompt_tokens": 30, "completion_tokens": 40},
	}, nil)

	result, err := f.executor.Execute(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)
	require.NotNil(t, result.Reply)
	assert.Equal(t, "Paris.", result.Reply.Content)
	assert.Equal(t, 70, result.TokensUsed)
	assert.Equal(t, 30, result.PromptTokens)
	assert.Equal(t, 40, result.CompletionTokens)
	assert.InDelta(t, 30*2.50/1e6+40*10.00/1e6, result.Cost, 1e-12)
	assert.Empty(t, result.ErrorKind)
}

func TestExecutePersistsRecordAndHistory(t *testing.T) {
	f := newExecutorFixture(t)

	f.model.On("Invoke", mock.Anything, mock.Anything).Return(&protocol.ModelResponse{
		Message: models.Message{Role: models.MessageRoleAssistant, Content: "Paris."},
	}, nil)

	result, err := f.executor.Execute(context.Background(), validRequest())
	require.NoError(t, err)

	stored, err := f.persist.Executions().ExecutionByID(context.Background(), result.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Status, stored.Status)

	history, err := f.persist.Conversations().History(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.MessageRoleUser, history[0].Role)
	assert.Equal(t, models.MessageRoleAssistant, history[1].Role)
}

func TestExecuteSeedsRunWithStoredHistory(t *testing.T) {
	f := newExecutorFixture(t)

	require.NoError(t, f.persist.Conversations().AppendMessages(context.Background(), "conv-1", []models.Message{
		{Role: models.MessageRoleUser, Content: "earlier question"},
		{Role: models.MessageRoleAssistant, Content: "earlier answer"},
	}))

	var seen []models.Message

	f.model.On("Invoke", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		seen = args.Get(1).(protocol.ModelRequest).Messages
	}).Return(&protocol.ModelResponse{
		Message: models.Message{Role: models.MessageRoleAssistant, Content: "ok"},
	}, nil)

	_, err := f.executor.Execute(context.Background(), validRequest())
	require.NoError(t, err)

	require.Len(t, seen, 3)
	assert.Equal(t, "earlier question", seen[0].Content)
	assert.Equal(t, "earlier answer", seen[1].Content)
	assert.Equal(t, "What is the capital of France?", seen[2].Content)
}

func TestExecuteRetrievalDisabledNeverSearches(t *testing.T) {
	f := newExecutorFixture(t)

	f.model.On("Invoke", mock.Anything, mock.Anything).Return(&protocol.ModelResponse{
		Message: models.Message{Role: models.MessageRoleAssistant, Content: "ok"},
	}, nil)

	req := validRequest()
	req.Capabilities.RetrievalEnabled = true // no documents selected

	_, err := f.executor.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Zero(t, f.retriever.SearchCalls)
}

func TestExecuteRetrievalEnabledWithDocumentsSearches(t *testing.T) {
	f := newExecutorFixture(t)

	f.retriever.On("Search", mock.Anything, mock.Anything, []string{"doc-1"}, models.DefaultTopK).
		Return([]protocol.RetrievedChunk{{DocumentID: "doc-1", Content: "France facts"}}, nil)

	f.model.On("Invoke", mock.Anything, mock.Anything).Return(&protocol.ModelResponse{
		Message: models.Message{Role: models.MessageRoleAssistant, Content: "ok"},
	}, nil)

	req := validRequest()
	req.Capabilities.RetrievalEnabled = true
	req.Capabilities.DocumentSelection = []string{"doc-1"}

	_, err := f.executor.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, f.retriever.SearchCalls)
}

func TestExecuteModelFailureClassifiedWithoutLeakingDetails(t *testing.T) {
	f := newExecutorFixture(t)

	f.model.On("Invoke", mock.Anything, mock.Anything).
		Return(nil, errors.New("api key sk-secret rejected by upstream"))

	result, err := f.executor.Execute(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.Equal(t, models.ErrorKindNodeExecution, result.ErrorKind)
	assert.NotContains(t, result.Error, "sk-secret")
	assert.Nil(t, result.Reply)
}

func TestExecuteRejectsInvalidRequest(t *testing.T) {
	f := newExecutorFixture(t)

	req := validRequest()
	req.Message = ""

	_, err := f.executor.Execute(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestExecuteRejectsInvalidCapabilityConfig(t *testing.T) {
	f := newExecutorFixture(t)

	req := validRequest()
	req.Capabilities.ToolsEnabled = true // no tool set

	_, err := f.executor.Execute(context.Background(), req)
	require.ErrorIs(t, err, workflow.ErrInvalidCapabilityConfig)
}

func TestExecuteDefaultsWorkspaceToUser(t *testing.T) {
	f := newExecutorFixture(t)

	f.model.On("Invoke", mock.Anything, mock.Anything).Return(&protocol.ModelResponse{
		Message: models.Message{Role: models.MessageRoleAssistant, Content: "ok"},
	}, nil)

	result, err := f.executor.Execute(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, "user-1", result.WorkspaceID)
}

func TestExecuteStreamDeliversEventsAndMatchesBufferedResult(t *testing.T) {
	f := newExecutorFixture(t)

	f.model.On("Invoke", mock.Anything, mock.Anything).Return(&protocol.ModelResponse{
		Message: models.Message{Role: models.MessageRoleAssistant, Content: "Paris."},
		Usage:   map[string]any{"prompt_tokens": 30, "completion_tokens": 40},
	}, nil)

	var nodeEvents []events.NodeCompleted

	sink := func(event events.Event) {
		if nc, ok := event.(events.NodeCompleted); ok {
			nodeEvents = append(nodeEvents, nc)
		}
	}

	result, err := f.executor.ExecuteStream(context.Background(), validRequest(), sink)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, result.Status)
	assert.Equal(t, 70, result.TokensUsed)

	require.Len(t, nodeEvents, 1)
	assert.Equal(t, models.NodeKindModel, nodeEvents[0].Kind)
	assert.Equal(t, 70, nodeEvents[0].Aggregated.TokensUsed)
}
