// Package execution provides the unified entry point for running one
// conversational turn: request validation, history loading, graph
// construction, run supervision and result persistence.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/chatloom/chatloom/pkg/eventbus"
	"github.com/chatloom/chatloom/pkg/events"
	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/persistence"
	"github.com/chatloom/chatloom/pkg/workflow"
)

// DefaultRunTimeout bounds a run's wall-clock time when the request does not
// set its own budget.
const DefaultRunTimeout = 2 * time.Minute

// ErrInvalidRequest indicates a malformed execution request, rejected before
// any node runs.
var ErrInvalidRequest = errors.New("invalid execution request")

// Request describes one conversational turn to execute.
type Request struct {
	ConversationID string                  `json:"conversation_id" validate:"required"`
	UserID         string                  `json:"user_id"         validate:"required"`
	WorkspaceID    string                  `json:"workspace_id"`
	Message        string                  `json:"message"         validate:"required"`
	Capabilities   models.CapabilityConfig `json:"capabilities"`
	Timeout        time.Duration           `json:"-"`
}

// Executor coordinates one run end to end. Errors returned by Execute and
// ExecuteStream are pre-run problems (bad request, bad configuration); once
// nodes start executing, failures are reported on the result instead, with
// raw node errors classified and never passed through.
type Executor struct {
	logger      *slog.Logger
	builder     *workflow.Builder
	runner      *workflow.Runner
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	validate    *validator.Validate
	workerID    string
}

func NewExecutor(
	logger *slog.Logger,
	builder *workflow.Builder,
	runner *workflow.Runner,
	persist persistence.Persistence,
	publisher eventbus.EventPublisher,
	workerID string,
) *Executor {
	return &Executor{
		logger:      logger.With("module", "executor"),
		builder:     builder,
		runner:      runner,
		persistence: persist,
		publisher:   publisher,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		workerID:    workerID,
	}
}

// Execute runs one turn in buffered mode and returns the terminal result.
func (e *Executor) Execute(ctx context.Context, req Request) (*models.ExecutionResult, error) {
	return e.execute(ctx, req, nil)
}

// ExecuteStream runs one turn with identical semantics, forwarding
// per-node and token events to sink while the run is in flight. The terminal
// result is returned after the final event has been delivered.
func (e *Executor) ExecuteStream(ctx context.Context, req Request, sink workflow.EventSink) (*models.ExecutionResult, error) {
	return e.execute(ctx, req, sink)
}

func (e *Executor) execute(ctx context.Context, req Request, sink workflow.EventSink) (*models.ExecutionResult, error) {
	if err := e.validateRequest(req); err != nil {
		return nil, err
	}

	graph, err := e.builder.Build(req.Capabilities)
	if err != nil {
		return nil, err
	}

	history, err := e.persistence.Conversations().History(ctx, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	executionID := uuid.New().String()

	ectx := models.NewExecutionContext(executionID, req.ConversationID, req.UserID, req.WorkspaceID, history)
	ectx.Messages = append(ectx.Messages, models.Message{
		Role:    models.MessageRoleUser,
		Content: req.Message,
	})

	logger := e.logger.With(
		"execution_id", executionID,
		"conversation_id", req.ConversationID,
		"user_id", req.UserID,
	)

	startedAt := time.Now().UTC()

	e.publishEvent(ctx, executionID, events.ExecutionStarted{
		BaseEvent:    e.baseEvent(events.ExecutionStartedEvent, ectx),
		Capabilities: req.Capabilities,
	})

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		status models.ExecutionStatus
		runErr error
	)

	if sink != nil {
		status, runErr = e.runner.RunStream(runCtx, graph, ectx, sink)
	} else {
		status, runErr = e.runner.Run(runCtx, graph, ectx)
	}

	result := e.buildResult(ectx, status, runErr, startedAt)

	e.finalize(ctx, logger, req, ectx, result, history, startedAt)

	return result, nil
}

func (e *Executor) validateRequest(req Request) error {
	if err := e.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return fmt.Errorf("%w: %s", ErrInvalidRequest, validationErrors.Error())
		}

		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	return nil
}

// buildResult maps the run outcome to the caller-facing record. The reply is
// the last assistant turn; on failure it may be absent. Aggregated usage is
// carried over even for failed runs so partial token counts remain billable.
func (e *Executor) buildResult(ectx *models.ExecutionContext, status models.ExecutionStatus, runErr error, startedAt time.Time) *models.ExecutionResult {
	completedAt := time.Now().UTC()

	result := &models.ExecutionResult{
		ID:               ectx.ID,
		ConversationID:   ectx.ConversationID,
		UserID:           ectx.UserID,
		WorkspaceID:      ectx.WorkspaceID,
		Status:           status,
		TokensUsed:       ectx.Aggregated.TokensUsed,
		PromptTokens:     ectx.Aggregated.PromptTokens,
		CompletionTokens: ectx.Aggregated.CompletionTokens,
		Cost:             ectx.Aggregated.Cost,
		StartedAt:        startedAt,
		CompletedAt:      &completedAt,
	}

	if reply, ok := ectx.LastAssistantMessage(); ok {
		result.Reply = &reply
	}

	if runErr != nil {
		result.ErrorKind = workflow.ClassifyError(runErr)
		result.Error = publicErrorMessage(result.ErrorKind)
	}

	return result
}

// finalize persists the outcome and publishes the terminal lifecycle event.
// Both are best-effort: a storage or broker hiccup is logged, the caller
// still receives the run's result.
func (e *Executor) finalize(ctx context.Context, logger *slog.Logger, req Request, ectx *models.ExecutionContext, result *models.ExecutionResult, history []models.Message, startedAt time.Time) {
	if err := e.persistence.Executions().SaveExecution(ctx, result); err != nil {
		logger.Error("Failed to persist execution record", "error", err)
	}

	// The new turns are everything beyond the preloaded history.
	newMessages := ectx.Messages[len(history):]
	if len(newMessages) > 0 {
		if err := e.persistence.Conversations().AppendMessages(ctx, req.ConversationID, newMessages); err != nil {
			logger.Error("Failed to append conversation history", "error", err)
		}
	}

	duration := time.Since(startedAt)

	switch result.Status {
	case models.ExecutionStatusCompleted:
		e.publishEvent(ctx, result.ID, events.ExecutionCompleted{
			BaseEvent: e.baseEvent(events.ExecutionCompletedEvent, ectx),
			Result:    result,
			Duration:  duration,
		})
		logger.Info("Execution completed",
			"tokens_used", result.TokensUsed, "cost", result.Cost, "duration", duration)
	case models.ExecutionStatusCanceled:
		e.publishEvent(ctx, result.ID, events.ExecutionCanceled{
			BaseEvent: e.baseEvent(events.ExecutionCanceledEvent, ectx),
			Result:    result,
			Duration:  duration,
		})
		logger.Warn("Execution canceled", "duration", duration)
	default:
		e.publishEvent(ctx, result.ID, events.ExecutionFailed{
			BaseEvent: e.baseEvent(events.ExecutionFailedEvent, ectx),
			Result:    result,
			Error:     result.Error,
			Duration:  duration,
		})
		logger.Error("Execution failed",
			"error_kind", result.ErrorKind, "duration", duration)
	}
}

func (e *Executor) publishEvent(ctx context.Context, key string, event events.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.Warn("Failed to publish lifecycle event", "event_type", event.GetType(), "error", err)
	}
}

func (e *Executor) baseEvent(eventType events.EventType, ectx *models.ExecutionContext) events.BaseEvent {
	return events.BaseEvent{
		ID:             uuid.New().String(),
		Type:           eventType,
		Timestamp:      time.Now().UTC(),
		ConversationID: ectx.ConversationID,
		ExecutionID:    ectx.ID,
		WorkerID:       e.workerID,
	}
}

// publicErrorMessage renders the classification for callers. Raw node error
// text stays in the logs.
func publicErrorMessage(kind models.ErrorKind) string {
	switch kind {
	case models.ErrorKindTimeout:
		return "the run exceeded its time budget"
	case models.ErrorKindCanceled:
		return "the run was canceled"
	case models.ErrorKindInvalidCapabilityConfig:
		return "the capability configuration is invalid"
	case models.ErrorKindUnsupportedNodeKind:
		return "the configuration requires an unsupported node kind"
	case models.ErrorKindMissingCollaborator:
		return "a required collaborator is not configured"
	default:
		return "a node failed during execution"
	}
}
