package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chatloom/chatloom/pkg/events"
	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/otelhelper"
	"github.com/chatloom/chatloom/pkg/pricing"
	"github.com/chatloom/chatloom/pkg/protocol"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// EventSink receives streaming events while a run is in flight: one
// NodeCompleted per executed node in graph order, plus TokenDelta sub-events
// while a model node streams partial text.
type EventSink func(event events.Event)

// Runner drives a graph to completion over a run context, sequentially and
// in graph order. Nodes of one run never execute concurrently; each depends
// on the merged context of its predecessor. Cancellation and the per-run
// budget are checked at node boundaries only, so an in-flight node always
// runs to its own completion before an abort takes effect.
type Runner struct {
	logger *slog.Logger
	rates  pricing.Table
	tracer trace.Tracer
}

// NewRunner creates a runner. rates feeds cost aggregation after every merge.
func NewRunner(logger *slog.Logger, rates pricing.Table) *Runner {
	return &Runner{
		logger: logger.With("module", "workflow_runner"),
		rates:  rates,
		tracer: otel.Tracer("chatloom/workflow"),
	}
}

// Run executes the graph in buffered mode: nodes run to completion, deltas
// merge immediately, and the final context plus aggregated usage is left on
// ectx. A node failure aborts the run; usage merged before the failure is
// preserved for cost accounting even though the run is marked failed.
func (r *Runner) Run(ctx context.Context, graph *Graph, ectx *models.ExecutionContext) (models.ExecutionStatus, error) {
	return r.run(ctx, graph, ectx, nil)
}

// RunStream executes the graph with identical ordering and merge semantics,
// emitting an event to sink after each node completes. Token sub-events do
// not carry usage; only end-of-node usage entries feed the aggregator.
func (r *Runner) RunStream(ctx context.Context, graph *Graph, ectx *models.ExecutionContext, sink EventSink) (models.ExecutionStatus, error) {
	return r.run(ctx, graph, ectx, sink)
}

func (r *Runner) run(ctx context.Context, graph *Graph, ectx *models.ExecutionContext, sink EventSink) (models.ExecutionStatus, error) {
	logger := r.logger.With(
		"execution_id", ectx.ID,
		"conversation_id", ectx.ConversationID,
	)

	ctx, span := r.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String(otelhelper.ExecutionIDKey, ectx.ID),
		attribute.String(otelhelper.ConversationIDKey, ectx.ConversationID),
		attribute.Int("chatloom.graph.steps", len(graph.Steps)),
	))
	defer span.End()

	merger := NewMerger()

	for _, step := range graph.Steps {
		if err := boundaryErr(ctx); err != nil {
			ectx.Aggregated = Aggregate(ectx.UsageMetadata, r.rates)
			otelhelper.SetError(span, err)
			logger.Warn("Run aborted at node boundary", "error", err)

			return abortStatus(err), err
		}

		if step.Condition != nil && !step.Condition(ectx) {
			logger.Info("Skipping node, run-time condition not met",
				"node_id", step.Node.ID(), "kind", step.Node.Kind())

			continue
		}

		started := time.Now()

		delta, err := r.executeNode(ctx, step.Node, ectx, sink, logger)
		if err == nil {
			err = merger.Apply(ectx, delta)
		}

		// Totals are always recomputed from the merged usage metadata,
		// including after a failure, so partial usage survives for forensics.
		ectx.Aggregated = Aggregate(ectx.UsageMetadata, r.rates)

		if err != nil {
			nodeErr := &NodeExecutionError{NodeID: step.Node.ID(), Kind: step.Node.Kind(), Err: err}
			otelhelper.SetError(span, nodeErr)
			logger.Error("Node failed, aborting run",
				"node_id", step.Node.ID(), "kind", step.Node.Kind(), "error", err)

			return models.ExecutionStatusFailed, nodeErr
		}

		logger.Info("Node completed",
			"node_id", step.Node.ID(),
			"kind", step.Node.Kind(),
			"duration_ms", time.Since(started).Milliseconds(),
			"tokens_used", ectx.Aggregated.TokensUsed,
		)

		if sink != nil {
			sink(events.NodeCompleted{
				BaseEvent:  r.baseEvent(events.NodeCompletedEvent, ectx),
				NodeID:     step.Node.ID(),
				Kind:       step.Node.Kind(),
				Delta:      delta,
				Aggregated: ectx.Aggregated,
				DurationMs: time.Since(started).Milliseconds(),
			})
		}
	}

	// Covers runs whose every step was skipped: zero usage entries aggregate
	// to all-zero totals, a valid completed state.
	ectx.Aggregated = Aggregate(ectx.UsageMetadata, r.rates)

	span.SetAttributes(
		attribute.Int("chatloom.usage.tokens", ectx.Aggregated.TokensUsed),
		attribute.Float64("chatloom.usage.cost", ectx.Aggregated.Cost),
	)

	return models.ExecutionStatusCompleted, nil
}

func (r *Runner) executeNode(ctx context.Context, node protocol.Node, ectx *models.ExecutionContext, sink EventSink, logger *slog.Logger) (*models.ContextDelta, error) {
	nodeLogger := logger.With("node_id", node.ID(), "node_kind", node.Kind())

	ctx, span := r.tracer.Start(ctx, "workflow.node."+string(node.Kind()), trace.WithAttributes(
		attribute.String(otelhelper.NodeIDKey, node.ID()),
		attribute.String(otelhelper.NodeKindKey, string(node.Kind())),
	))
	defer span.End()

	snapshot := ectx.Snapshot()

	if sink != nil {
		if streaming, ok := node.(protocol.StreamingNode); ok {
			emit := func(token string) {
				sink(events.TokenDelta{
					BaseEvent: r.baseEvent(events.TokenDeltaEvent, ectx),
					NodeID:    node.ID(),
					Content:   token,
				})
			}

			delta, err := streaming.ExecuteStream(ctx, snapshot, emit, nodeLogger)
			if err != nil {
				otelhelper.SetError(span, err)
			}

			return delta, err
		}
	}

	delta, err := node.Execute(ctx, snapshot, nodeLogger)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return delta, err
}

func (r *Runner) baseEvent(eventType events.EventType, ectx *models.ExecutionContext) events.BaseEvent {
	return events.BaseEvent{
		ID:             uuid.New().String(),
		Type:           eventType,
		Timestamp:      time.Now().UTC(),
		ConversationID: ectx.ConversationID,
		ExecutionID:    ectx.ID,
	}
}

func boundaryErr(ctx context.Context) error {
	switch {
	case ctx.Err() == nil:
		return nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return ErrRunTimeout
	default:
		return ErrRunCanceled
	}
}

func abortStatus(err error) models.ExecutionStatus {
	if errors.Is(err, ErrRunCanceled) {
		return models.ExecutionStatusCanceled
	}

	return models.ExecutionStatusFailed
}
