package workflow

import (
	"fmt"
	"sort"

	"github.com/chatloom/chatloom/pkg/models"
)

// Merger applies node deltas to the shared run context with field-specific
// rules. It is the only code path permitted to mutate the context; nodes see
// a snapshot on entry and return an immutable delta on exit.
//
// Rules: messages, tool calls and tool results append; retrieval context
// replaces when set; usage metadata merges by key and rejects duplicates.
// A Merger belongs to exactly one run; it stamps each merged usage record
// with the merge sequence so aggregation order is deterministic.
type Merger struct {
	sequence int
}

// NewMerger creates a merger for one run.
func NewMerger() *Merger {
	return &Merger{}
}

// Apply merges a node's delta into the live context. On a duplicate usage key
// nothing is applied from the offending entry onward and the run must abort.
func (m *Merger) Apply(ectx *models.ExecutionContext, delta *models.ContextDelta) error {
	if delta.IsZero() {
		return nil
	}

	if err := m.mergeUsage(ectx, delta); err != nil {
		return err
	}

	ectx.Messages = append(ectx.Messages, delta.Messages...)
	ectx.ToolCalls = append(ectx.ToolCalls, delta.ToolCalls...)
	ectx.ToolResults = append(ectx.ToolResults, delta.ToolResults...)

	if delta.RetrievalContext != nil {
		rc := *delta.RetrievalContext
		ectx.RetrievalContext = &rc
	}

	return nil
}

func (m *Merger) mergeUsage(ectx *models.ExecutionContext, delta *models.ContextDelta) error {
	if len(delta.Usage) == 0 {
		return nil
	}

	if ectx.UsageMetadata == nil {
		ectx.UsageMetadata = make(map[string]models.UsageRecord, len(delta.Usage))
	}

	// Validate the whole batch before touching the context so a rejected
	// delta leaves the run state untouched.
	for key := range delta.Usage {
		if _, exists := ectx.UsageMetadata[key]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateUsageKey, key)
		}
	}

	for _, key := range sortedKeys(delta.Usage) {
		record := delta.Usage[key]
		m.sequence++
		record.Sequence = m.sequence
		ectx.UsageMetadata[key] = record
	}

	return nil
}

func sortedKeys(usage map[string]models.UsageRecord) []string {
	keys := make([]string, 0, len(usage))
	for key := range usage {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
