// Package main provides the Chatloom execution worker: it consumes
// execution requests from the event bus and drives them to completion.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chatloom/chatloom/pkg/eventbus"
	"github.com/chatloom/chatloom/pkg/events"
	"github.com/chatloom/chatloom/pkg/execution"
)

type Worker struct {
	id       string
	executor *execution.Executor
	eventBus eventbus.EventBus
	logger   *slog.Logger
}

func NewWorker(id string, executor *execution.Executor, eventBus eventbus.EventBus, logger *slog.Logger) *Worker {
	return &Worker{
		id:       id,
		executor: executor,
		eventBus: eventBus,
		logger:   logger.With("module", "worker", "worker_id", id),
	}
}

// Start subscribes to execution requests and blocks until SIGINT or SIGTERM.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := w.eventBus.Handle(events.ExecutionRequestedEvent, w.handleExecutionRequested); err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		return err
	}

	w.logger.Info("Worker started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.Info("Shutting down worker")
	cancel()

	return nil
}

func (w *Worker) handleExecutionRequested(ctx context.Context, event interface{}) error {
	requested, ok := event.(*events.ExecutionRequested)
	if !ok {
		w.logger.Error("Invalid event payload for execution request")

		return nil
	}

	logger := w.logger.With(
		"event_id", requested.ID,
		"conversation_id", requested.ConversationID,
	)
	logger.Info("Processing execution request")

	result, err := w.executor.Execute(ctx, execution.Request{
		ConversationID: requested.ConversationID,
		UserID:         requested.UserID,
		WorkspaceID:    requested.WorkspaceID,
		Message:        requested.Message,
		Capabilities:   requested.Capabilities,
	})
	if err != nil {
		// Pre-run rejections are not retryable; ack and move on.
		logger.Error("Execution request rejected", "error", err)

		return nil
	}

	logger.Info("Execution request processed",
		"execution_id", result.ID,
		"status", result.Status,
		"tokens_used", result.TokensUsed,
	)

	return nil
}
