// Package models defines the core domain models for conversational workflow execution.
package models

// MessageRole identifies the author of a conversation turn.
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)

// Message is a single role-tagged turn in a conversation.
type Message struct {
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`   // pending calls emitted by an assistant turn
	ToolCallID string      `json:"tool_call_id,omitempty"` // set on tool-role turns answering a call
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolResult records the outcome of one dispatched tool call.
type ToolResult struct {
	CallID string `json:"call_id"`
	Name   string `json:"name"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Failed reports whether the dispatch produced an error instead of output.
func (r ToolResult) Failed() bool {
	return r.Error != ""
}
