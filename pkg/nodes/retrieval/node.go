// Package retrieval implements the retrieval node: a best-effort document
// search that augments the run context ahead of the model call.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/protocol"
)

// Node searches the selected documents with the latest user message as the
// query and contributes the concatenated chunks as the run's retrieval
// context. Retrieval is best-effort: a search failure degrades the turn to an
// unaugmented model call instead of failing the run.
type Node struct {
	id          string
	retriever   protocol.Retriever
	documentIDs []string
	topK        int
}

func NewNode(id string, deps protocol.Dependencies, config models.CapabilityConfig) (*Node, error) {
	if deps.Retriever == nil {
		return nil, fmt.Errorf("%w: retrieval node requires a retriever", protocol.ErrMissingCollaborator)
	}

	return &Node{
		id:          id,
		retriever:   deps.Retriever,
		documentIDs: config.DocumentSelection,
		topK:        config.EffectiveTopK(),
	}, nil
}

func (n *Node) ID() string {
	return n.id
}

func (n *Node) Kind() models.NodeKind {
	return models.NodeKindRetrieval
}

func (n *Node) Execute(ctx context.Context, ectx models.ExecutionContext, logger *slog.Logger) (*models.ContextDelta, error) {
	latest, ok := ectx.LatestUserMessage()
	if !ok {
		logger.Warn("No user message to use as retrieval query, skipping search")

		return &models.ContextDelta{}, nil
	}

	chunks, err := n.retriever.Search(ctx, latest.Content, n.documentIDs, n.topK)
	if err != nil {
		logger.Warn("Retrieval search failed, continuing without context",
			"documents", len(n.documentIDs), "error", err)

		return &models.ContextDelta{}, nil
	}

	if len(chunks) == 0 {
		logger.Info("Retrieval returned no chunks", "documents", len(n.documentIDs))

		return &models.ContextDelta{}, nil
	}

	logger.Info("Retrieval contributed context",
		"chunks", len(chunks), "documents", len(n.documentIDs))

	rendered := renderChunks(chunks)

	return &models.ContextDelta{RetrievalContext: &rendered}, nil
}

func renderChunks(chunks []protocol.RetrievedChunk) string {
	var sb strings.Builder

	for i, chunk := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}

		fmt.Fprintf(&sb, "[%s] %s", chunk.DocumentID, chunk.Content)
	}

	return sb.String()
}
