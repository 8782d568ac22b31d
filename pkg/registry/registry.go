// Package registry provides the node factory registry used by the graph
// builder to construct nodes for a capability configuration.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/protocol"
)

// ErrUnsupportedNodeKind indicates a node kind no factory is registered for.
// Surfaced as a configuration error; it never reaches a running run.
var ErrUnsupportedNodeKind = errors.New("unsupported node kind")

// Registry maps node kinds to their factories. Registration happens once at
// startup; afterwards the registry is read-only and safe for concurrent use.
type Registry struct {
	logger    *slog.Logger
	factories map[models.NodeKind]protocol.NodeFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[models.NodeKind]protocol.NodeFactory),
	}
}

// Register adds a factory for its node kind, replacing any previous one.
func (r *Registry) Register(factory protocol.NodeFactory) {
	r.factories[factory.Kind()] = factory
}

// Create builds a node of the given kind, wiring in the collaborators the
// kind needs from deps. Fails with ErrUnsupportedNodeKind for unknown kinds
// and passes through protocol.ErrMissingCollaborator from the factory.
func (r *Registry) Create(kind models.NodeKind, id string, deps protocol.Dependencies, config models.CapabilityConfig) (protocol.Node, error) {
	factory, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedNodeKind, kind)
	}

	return factory.Create(id, deps, config)
}

// Kinds returns the registered node kinds in stable order.
func (r *Registry) Kinds() []models.NodeKind {
	kinds := make([]models.NodeKind, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}

	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	return kinds
}
