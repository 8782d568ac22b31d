package models

// ExecutionContext is the shared state threaded through one workflow run.
// Nodes receive a snapshot on entry and return a ContextDelta on exit; the
// workflow merger is the only code path that mutates the live context.
type ExecutionContext struct {
	ID               string                 `json:"id"`
	ConversationID   string                 `json:"conversation_id"`
	UserID           string                 `json:"user_id"`
	WorkspaceID      string                 `json:"workspace_id,omitempty"`
	Messages         []Message              `json:"messages,omitempty"`
	RetrievalContext *string                `json:"retrieval_context,omitempty"`
	ToolCalls        []ToolCall             `json:"tool_calls,omitempty"`
	ToolResults      []ToolResult           `json:"tool_results,omitempty"`
	UsageMetadata    map[string]UsageRecord `json:"usage_metadata,omitempty"`
	Aggregated       AggregatedUsage        `json:"aggregated"`
}

// NewExecutionContext builds a run context for a conversation. WorkspaceID
// falls back to the user id; no distinct workspace concept exists upstream.
func NewExecutionContext(id, conversationID, userID, workspaceID string, history []Message) *ExecutionContext {
	if workspaceID == "" {
		workspaceID = userID
	}

	messages := make([]Message, len(history))
	copy(messages, history)

	return &ExecutionContext{
		ID:             id,
		ConversationID: conversationID,
		UserID:         userID,
		WorkspaceID:    workspaceID,
		Messages:       messages,
		UsageMetadata:  make(map[string]UsageRecord),
	}
}

// Snapshot returns a deep copy safe to hand to a node. Mutating the snapshot
// never affects the live run context.
func (c *ExecutionContext) Snapshot() ExecutionContext {
	snapshot := *c

	snapshot.Messages = append([]Message(nil), c.Messages...)
	snapshot.ToolCalls = append([]ToolCall(nil), c.ToolCalls...)
	snapshot.ToolResults = append([]ToolResult(nil), c.ToolResults...)

	if c.RetrievalContext != nil {
		rc := *c.RetrievalContext
		snapshot.RetrievalContext = &rc
	}

	snapshot.UsageMetadata = make(map[string]UsageRecord, len(c.UsageMetadata))
	for key, record := range c.UsageMetadata {
		snapshot.UsageMetadata[key] = record
	}

	return snapshot
}

// LatestUserMessage returns the most recent user turn, if any.
func (c *ExecutionContext) LatestUserMessage() (Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == MessageRoleUser {
			return c.Messages[i], true
		}
	}

	return Message{}, false
}

// LastAssistantMessage returns the most recent assistant turn, if any.
func (c *ExecutionContext) LastAssistantMessage() (Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == MessageRoleAssistant {
			return c.Messages[i], true
		}
	}

	return Message{}, false
}

// PendingToolCalls returns dispatched-for calls that have no recorded result yet.
func (c *ExecutionContext) PendingToolCalls() []ToolCall {
	answered := make(map[string]bool, len(c.ToolResults))
	for _, result := range c.ToolResults {
		answered[result.CallID] = true
	}

	var pending []ToolCall

	for _, call := range c.ToolCalls {
		if !answered[call.ID] {
			pending = append(pending, call)
		}
	}

	return pending
}

// ContextDelta is the partial state a node returns after execution. Field
// semantics mirror the merge rules: Messages, ToolCalls and ToolResults are
// appended, RetrievalContext replaces when set, Usage merges by key.
type ContextDelta struct {
	Messages         []Message              `json:"messages,omitempty"`
	RetrievalContext *string                `json:"retrieval_context,omitempty"`
	ToolCalls        []ToolCall             `json:"tool_calls,omitempty"`
	ToolResults      []ToolResult           `json:"tool_results,omitempty"`
	Usage            map[string]UsageRecord `json:"usage,omitempty"`
}

// IsZero reports whether the delta carries no state at all.
func (d *ContextDelta) IsZero() bool {
	if d == nil {
		return true
	}

	return len(d.Messages) == 0 &&
		d.RetrievalContext == nil &&
		len(d.ToolCalls) == 0 &&
		len(d.ToolResults) == 0 &&
		len(d.Usage) == 0
}
