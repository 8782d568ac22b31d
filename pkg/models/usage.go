package models

// UsageRecord is one provider-reported token accounting entry for a single
// model call. Raw preserves the provider's field names untouched; providers
// disagree on them (prompt_tokens vs input_tokens, total_tokens vs
// tokens_used), so normalization is deferred to aggregation.
type UsageRecord struct {
	CallID   string         `json:"call_id"`
	Model    string         `json:"model"`
	Raw      map[string]any `json:"raw,omitempty"`
	Sequence int            `json:"sequence"` // merge order, assigned by the merger
}

// AggregatedUsage holds run-wide totals derived from all usage records.
// It is always recomputed from UsageMetadata, never set by a node.
type AggregatedUsage struct {
	TokensUsed       int     `json:"tokens_used"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
}
