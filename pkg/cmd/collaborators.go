package cmd

import (
	"context"
	"log/slog"

	"github.com/chatloom/chatloom/pkg/modelclient"
	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/persistence"
	"github.com/chatloom/chatloom/pkg/protocol"
	"github.com/chatloom/chatloom/pkg/tools"
)

// NewDependencies wires the default collaborator set: the loopback model
// client, the built-in tool registry and a persistence-backed memory store.
// Deployments with a real model provider or vector store swap in their own
// implementations.
func NewDependencies(logger *slog.Logger, persist persistence.Persistence, toolRegistry *tools.Registry) protocol.Dependencies {
	return protocol.Dependencies{
		Logger:    logger,
		Model:     modelclient.NewLoopback(),
		Retriever: &emptyRetriever{},
		Tools:     toolRegistry,
		Memory:    &conversationMemoryStore{persist: persist},
	}
}

// emptyRetriever satisfies the retriever contract without a document index.
// Every search finds nothing, so retrieval-enabled runs degrade to plain
// model calls.
type emptyRetriever struct{}

func (r *emptyRetriever) Search(_ context.Context, _ string, _ []string, _ int) ([]protocol.RetrievedChunk, error) {
	return nil, nil
}

// conversationMemoryStore keeps folded memory as a snapshot of the
// conversation transcript under a dedicated key. Each fold replaces the
// previous snapshot.
type conversationMemoryStore struct {
	persist persistence.Persistence
}

func (s *conversationMemoryStore) Fold(ctx context.Context, conversationID string, messages []models.Message) error {
	key := conversationID + ":memory"

	if err := s.persist.Conversations().ClearHistory(ctx, key); err != nil {
		return err
	}

	return s.persist.Conversations().AppendMessages(ctx, key, messages)
}
