// Package tool implements the tool node: it dispatches the tool calls the
// model requested and feeds the results back into the conversation.
package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/protocol"
)

// Node resolves every pending tool call in request order. Individual tool
// failures are recorded as failed results and do not abort the run; the model
// sees the failure text on the next turn. A protocol violation, a call naming
// a tool outside the configured set, is the exception and fails the node.
type Node struct {
	id         string
	dispatcher protocol.ToolDispatcher
}

func NewNode(id string, deps protocol.Dependencies, _ models.CapabilityConfig) (*Node, error) {
	if deps.Tools == nil {
		return nil, fmt.Errorf("%w: tool node requires a tool dispatcher", protocol.ErrMissingCollaborator)
	}

	return &Node{id: id, dispatcher: deps.Tools}, nil
}

func (n *Node) ID() string {
	return n.id
}

func (n *Node) Kind() models.NodeKind {
	return models.NodeKindTool
}

func (n *Node) Execute(ctx context.Context, ectx models.ExecutionContext, logger *slog.Logger) (*models.ContextDelta, error) {
	pending := ectx.PendingToolCalls()

	delta := &models.ContextDelta{
		ToolResults: make([]models.ToolResult, 0, len(pending)),
		Messages:    make([]models.Message, 0, len(pending)),
	}

	for _, call := range pending {
		result, err := n.dispatcher.Dispatch(ctx, call)
		if err != nil {
			if errors.Is(err, protocol.ErrProtocolViolation) {
				return nil, fmt.Errorf("tool call %s: %w", call.ID, err)
			}

			logger.Warn("Tool call failed", "tool", call.Name, "call_id", call.ID, "error", err)

			result = &models.ToolResult{
				CallID: call.ID,
				Name:   call.Name,
				Error:  err.Error(),
			}
		} else {
			logger.Info("Tool call completed", "tool", call.Name, "call_id", call.ID)
		}

		delta.ToolResults = append(delta.ToolResults, *result)
		delta.Messages = append(delta.Messages, toolMessage(*result))
	}

	return delta, nil
}

// toolMessage renders a result as the tool-role turn the model consumes.
func toolMessage(result models.ToolResult) models.Message {
	content := result.Output
	if result.Failed() {
		content = "tool error: " + result.Error
	}

	return models.Message{
		Role:       models.MessageRoleTool,
		Content:    content,
		ToolCallID: result.CallID,
	}
}
