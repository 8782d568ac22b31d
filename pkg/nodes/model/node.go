// Package model implements the model node: the terminal production step of
// every graph, invoking the model-call capability over the accumulated
// conversation.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/protocol"
	"github.com/google/uuid"
)

// Node invokes the model client with the run's messages, folding the
// retrieval context into a system turn when present and offering tool
// schemas when tools are enabled.
type Node struct {
	id           string
	model        string
	client       protocol.ModelClient
	tools        protocol.ToolDispatcher
	toolSet      []string
	toolsEnabled bool
}

func NewNode(id string, deps protocol.Dependencies, config models.CapabilityConfig) (*Node, error) {
	if deps.Model == nil {
		return nil, fmt.Errorf("%w: model node requires a model client", protocol.ErrMissingCollaborator)
	}

	if config.ToolsEnabled && deps.Tools == nil {
		return nil, fmt.Errorf("%w: tools enabled but no tool dispatcher supplied", protocol.ErrMissingCollaborator)
	}

	return &Node{
		id:           id,
		model:        config.Model,
		client:       deps.Model,
		tools:        deps.Tools,
		toolSet:      config.ToolSet,
		toolsEnabled: config.ToolsEnabled,
	}, nil
}

func (n *Node) ID() string {
	return n.id
}

func (n *Node) Kind() models.NodeKind {
	return models.NodeKindModel
}

// Execute performs one model call and returns the new assistant turn as a
// context delta. When the provider reports usage, a raw usage record keyed by
// a fresh call id is included; when it declines to, the run proceeds with
// zero usage for this call, which is expected rather than an error.
func (n *Node) Execute(ctx context.Context, ectx models.ExecutionContext, logger *slog.Logger) (*models.ContextDelta, error) {
	return n.execute(ctx, ectx, nil, logger)
}

// ExecuteStream is used by the runner in streaming mode. Token fragments are
// forwarded through emit as the provider streams them; usage is only attached
// once the provider signals call completion.
func (n *Node) ExecuteStream(ctx context.Context, ectx models.ExecutionContext, emit protocol.TokenSink, logger *slog.Logger) (*models.ContextDelta, error) {
	return n.execute(ctx, ectx, emit, logger)
}

func (n *Node) execute(ctx context.Context, ectx models.ExecutionContext, emit protocol.TokenSink, logger *slog.Logger) (*models.ContextDelta, error) {
	request := protocol.ModelRequest{
		Model:    n.model,
		Messages: n.buildMessages(ectx),
	}

	if n.toolsEnabled {
		request.ToolSchemas = n.tools.Schemas(n.toolSet)
	}

	response, err := n.invoke(ctx, request, emit, logger)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	delta := &models.ContextDelta{
		Messages:  []models.Message{response.Message},
		ToolCalls: response.Message.ToolCalls,
	}

	if response.Usage != nil {
		callID := uuid.New().String()
		delta.Usage = map[string]models.UsageRecord{
			n.id: {
				CallID: callID,
				Model:  n.model,
				Raw:    response.Usage,
			},
		}
	} else {
		logger.Info("Provider reported no usage for model call", "model", n.model)
	}

	return delta, nil
}

// invoke performs the provider call, retrying once on a transient error.
// The retry is invisible to the runner's state machine.
func (n *Node) invoke(ctx context.Context, request protocol.ModelRequest, emit protocol.TokenSink, logger *slog.Logger) (*protocol.ModelResponse, error) {
	response, err := n.invokeOnce(ctx, request, emit)
	if err != nil && errors.Is(err, protocol.ErrTransient) && ctx.Err() == nil {
		logger.Warn("Transient model call failure, retrying once", "error", err)

		response, err = n.invokeOnce(ctx, request, emit)
	}

	return response, err
}

func (n *Node) invokeOnce(ctx context.Context, request protocol.ModelRequest, emit protocol.TokenSink) (*protocol.ModelResponse, error) {
	if emit != nil {
		if streaming, ok := n.client.(protocol.StreamingModelClient); ok {
			return streaming.InvokeStream(ctx, request, emit)
		}
	}

	return n.client.Invoke(ctx, request)
}

// buildMessages assembles the provider-facing transcript: history first, with
// the retrieval context, when present, folded in as a system turn ahead of
// the latest user message.
func (n *Node) buildMessages(ectx models.ExecutionContext) []models.Message {
	if ectx.RetrievalContext == nil || *ectx.RetrievalContext == "" {
		return ectx.Messages
	}

	contextTurn := models.Message{
		Role:    models.MessageRoleSystem,
		Content: "Relevant context retrieved for this conversation:\n\n" + *ectx.RetrievalContext,
	}

	messages := make([]models.Message, 0, len(ectx.Messages)+1)

	// Insert ahead of the final user turn so the context reads as grounding
	// for the question being answered.
	insertAt := len(ectx.Messages)
	for i := len(ectx.Messages) - 1; i >= 0; i-- {
		if ectx.Messages[i].Role == models.MessageRoleUser {
			insertAt = i

			break
		}
	}

	messages = append(messages, ectx.Messages[:insertAt]...)
	messages = append(messages, contextTurn)
	messages = append(messages, ectx.Messages[insertAt:]...)

	return messages
}
