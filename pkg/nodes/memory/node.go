// Package memory implements the memory node: it folds the turn's new
// messages into the conversation's long-lived memory after the reply exists.
package memory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/protocol"
)

// Node hands the turn's messages to the memory store. Memory write failures
// never fail the run; the reply has already been produced and losing one fold
// is recoverable on a later turn.
type Node struct {
	id    string
	store protocol.MemoryStore
}

func NewNode(id string, deps protocol.Dependencies, _ models.CapabilityConfig) (*Node, error) {
	if deps.Memory == nil {
		return nil, fmt.Errorf("%w: memory node requires a memory store", protocol.ErrMissingCollaborator)
	}

	return &Node{id: id, store: deps.Memory}, nil
}

func (n *Node) ID() string {
	return n.id
}

func (n *Node) Kind() models.NodeKind {
	return models.NodeKindMemory
}

func (n *Node) Execute(ctx context.Context, ectx models.ExecutionContext, logger *slog.Logger) (*models.ContextDelta, error) {
	if err := n.store.Fold(ctx, ectx.ConversationID, ectx.Messages); err != nil {
		logger.Warn("Memory fold failed, continuing", "conversation_id", ectx.ConversationID, "error", err)

		return &models.ContextDelta{}, nil
	}

	logger.Info("Folded turn into conversation memory",
		"conversation_id", ectx.ConversationID, "messages", len(ectx.Messages))

	return &models.ContextDelta{}, nil
}
