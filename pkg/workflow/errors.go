// Package workflow implements the node-graph orchestrator that drives one
// conversational turn: graph construction, context merging, usage aggregation
// and the buffered/streaming runner.
package workflow

import (
	"errors"
	"fmt"

	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/protocol"
	"github.com/chatloom/chatloom/pkg/registry"
)

// ErrInvalidCapabilityConfig indicates a malformed capability configuration,
// rejected before any node runs.
var ErrInvalidCapabilityConfig = errors.New("invalid capability configuration")

// ErrDuplicateUsageKey indicates a node tried to merge a usage record under a
// key already present in the run. Call ids must be unique within a run; a
// duplicate is an implementation error and is rejected, not overwritten.
var ErrDuplicateUsageKey = errors.New("duplicate usage metadata key")

// ErrRunTimeout indicates the per-run wall-clock budget expired. Reported at
// the next node boundary, never mid-node.
var ErrRunTimeout = errors.New("run timed out")

// ErrRunCanceled indicates a cooperative cancellation took effect at a node
// boundary.
var ErrRunCanceled = errors.New("run canceled")

// NodeExecutionError wraps an unrecoverable node failure with the node's
// identity. Partial usage merged before the failure is preserved on the run.
type NodeExecutionError struct {
	NodeID string
	Kind   models.NodeKind
	Err    error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s (%s) failed: %v", e.NodeID, e.Kind, e.Err)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}

// ClassifyError maps a run-level error to the caller-facing error kind.
func ClassifyError(err error) models.ErrorKind {
	var nodeErr *NodeExecutionError

	switch {
	case errors.Is(err, ErrInvalidCapabilityConfig):
		return models.ErrorKindInvalidCapabilityConfig
	case errors.Is(err, registry.ErrUnsupportedNodeKind):
		return models.ErrorKindUnsupportedNodeKind
	case errors.Is(err, protocol.ErrMissingCollaborator):
		return models.ErrorKindMissingCollaborator
	case errors.Is(err, ErrRunTimeout):
		return models.ErrorKindTimeout
	case errors.Is(err, ErrRunCanceled):
		return models.ErrorKindCanceled
	case errors.As(err, &nodeErr):
		return models.ErrorKindNodeExecution
	default:
		return models.ErrorKindNodeExecution
	}
}
