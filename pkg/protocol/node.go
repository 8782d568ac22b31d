// Package protocol defines the interfaces and contracts between the workflow
// engine and its nodes and collaborators.
package protocol

import (
	"context"
	"errors"
	"log/slog"

	"github.com/chatloom/chatloom/pkg/models"
)

// ErrMissingCollaborator is returned by a node factory when a collaborator the
// node's configuration requires (retriever, tool dispatcher, model client) was
// not supplied. Surfaced as a configuration error, never reaches a running run.
var ErrMissingCollaborator = errors.New("required collaborator not supplied")

// Node is a single typed unit of work in a workflow graph. A node is
// constructed once per graph and executed at most once per run. It receives a
// consistent snapshot of the run context and returns an immutable delta; it
// never mutates shared state directly.
type Node interface {
	ID() string
	Kind() models.NodeKind
	Execute(ctx context.Context, ectx models.ExecutionContext, logger *slog.Logger) (*models.ContextDelta, error)
}

// TokenSink receives incremental text fragments produced while a node is
// executing. Token fragments carry no usage information; usage is only known
// once the underlying call completes.
type TokenSink func(token string)

// StreamingNode is optionally implemented by nodes that can surface
// incremental output. The runner type-asserts for it in streaming mode and
// falls back to Execute otherwise.
type StreamingNode interface {
	Node
	ExecuteStream(ctx context.Context, ectx models.ExecutionContext, emit TokenSink, logger *slog.Logger) (*models.ContextDelta, error)
}

// Dependencies carries the shared, read-mostly collaborators wired into nodes
// at graph construction. All of them must be safe for concurrent invocation;
// run-scoped state never lives here.
type Dependencies struct {
	Logger    *slog.Logger
	Model     ModelClient
	Retriever Retriever
	Tools     ToolDispatcher
	Memory    MemoryStore
}

// NodeFactory creates node instances for one node kind.
type NodeFactory interface {
	// Create builds a node with the given stable id, wiring in the
	// collaborators this kind needs from deps.
	Create(id string, deps Dependencies, config models.CapabilityConfig) (Node, error)

	// Kind returns the node kind this factory produces.
	Kind() models.NodeKind

	// Description returns a short description of what the node does.
	Description() string
}
