package models

// NodeKind identifies the closed set of node types a graph can contain.
type NodeKind string

const (
	NodeKindModel     NodeKind = "model"
	NodeKindRetrieval NodeKind = "retrieval"
	NodeKindTool      NodeKind = "tool"
	NodeKindMemory    NodeKind = "memory"
)

// DefaultTopK bounds the retrieval context when the request does not say.
const DefaultTopK = 5

// CapabilityConfig is the set of request flags that determines which nodes a
// graph contains. A given config always produces the same node sequence.
type CapabilityConfig struct {
	Model             string   `json:"model"`
	RetrievalEnabled  bool     `json:"retrieval_enabled"`
	DocumentSelection []string `json:"document_selection,omitempty"`
	TopK              int      `json:"top_k,omitempty"`
	ToolsEnabled      bool     `json:"tools_enabled"`
	ToolSet           []string `json:"tool_set,omitempty"`
	MemoryEnabled     bool     `json:"memory_enabled"`
}

// RetrievalApplies reports whether a retrieval node belongs in the graph:
// retrieval must be enabled AND at least one document selected. Enforced here
// once so call sites cannot drift apart on the skip rule.
func (c CapabilityConfig) RetrievalApplies() bool {
	return c.RetrievalEnabled && len(c.DocumentSelection) > 0
}

// EffectiveTopK returns the configured top-k or the default.
func (c CapabilityConfig) EffectiveTopK() int {
	if c.TopK > 0 {
		return c.TopK
	}

	return DefaultTopK
}
