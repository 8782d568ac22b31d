package workflow

import (
	"fmt"
	"log/slog"

	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/protocol"
	"github.com/chatloom/chatloom/pkg/registry"
)

// Stable node ids within a graph. A graph built for a given capability
// configuration is deterministic: same configuration, same sequence.
const (
	NodeIDRetrieval = "retrieval"
	NodeIDModel     = "model"
	NodeIDTool      = "tool"
	NodeIDMemory    = "memory"
)

// Step is one slot in a graph: a node plus an optional run-time condition.
// A nil condition means the node always executes; a false condition skips the
// node entirely at its boundary.
type Step struct {
	Node      protocol.Node
	Condition func(ectx *models.ExecutionContext) bool
}

// Graph is the ordered node sequence for one capability configuration.
// Built once per run, discarded after it.
type Graph struct {
	Capabilities models.CapabilityConfig
	Steps        []Step
}

// Builder translates a capability configuration into a concrete graph,
// wiring shared collaborators into the nodes that need them.
type Builder struct {
	registry *registry.Registry
	deps     protocol.Dependencies
	logger   *slog.Logger
}

// NewBuilder creates a graph builder over the given node registry and
// collaborator set.
func NewBuilder(reg *registry.Registry, deps protocol.Dependencies, logger *slog.Logger) *Builder {
	return &Builder{
		registry: reg,
		deps:     deps,
		logger:   logger.With("module", "graph_builder"),
	}
}

// Build assembles the node sequence for config:
//
//	[retrieval?] -> model -> [tool?] -> [memory?]
//
// The retrieval node is included iff retrieval is enabled AND at least one
// document is selected; otherwise the request is logged as skipped and no
// node is constructed (no placeholder, no search issued). The tool node is
// included iff tools are enabled, but gated at run time on the model having
// emitted pending tool calls. The memory node is appended when memory is
// enabled. Exactly one model node is always present.
func (b *Builder) Build(config models.CapabilityConfig) (*Graph, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	graph := &Graph{Capabilities: config}

	if config.RetrievalApplies() {
		node, err := b.createNode(models.NodeKindRetrieval, NodeIDRetrieval, config)
		if err != nil {
			return nil, err
		}

		graph.Steps = append(graph.Steps, Step{Node: node})
	} else if config.RetrievalEnabled {
		b.logger.Info("Retrieval requested but skipped: no documents selected",
			"model", config.Model)
	}

	modelNode, err := b.createNode(models.NodeKindModel, NodeIDModel, config)
	if err != nil {
		return nil, err
	}

	graph.Steps = append(graph.Steps, Step{Node: modelNode})

	if config.ToolsEnabled {
		node, err := b.createNode(models.NodeKindTool, NodeIDTool, config)
		if err != nil {
			return nil, err
		}

		graph.Steps = append(graph.Steps, Step{
			Node: node,
			// Whether tools actually run depends on the model's response,
			// known only at run time.
			Condition: func(ectx *models.ExecutionContext) bool {
				return len(ectx.PendingToolCalls()) > 0
			},
		})
	}

	if config.MemoryEnabled {
		node, err := b.createNode(models.NodeKindMemory, NodeIDMemory, config)
		if err != nil {
			return nil, err
		}

		graph.Steps = append(graph.Steps, Step{Node: node})
	}

	return graph, nil
}

func (b *Builder) createNode(kind models.NodeKind, id string, config models.CapabilityConfig) (protocol.Node, error) {
	node, err := b.registry.Create(kind, id, b.deps, config)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s node: %w", kind, err)
	}

	return node, nil
}

func validateConfig(config models.CapabilityConfig) error {
	if config.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidCapabilityConfig)
	}

	if config.ToolsEnabled && len(config.ToolSet) == 0 {
		return fmt.Errorf("%w: tools enabled without a tool set", ErrInvalidCapabilityConfig)
	}

	return nil
}
