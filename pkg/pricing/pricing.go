// Package pricing maps model identifiers to USD token rates for cost accounting.
package pricing

// Rate defines USD cost per 1M tokens for prompt and completion tokens.
type Rate struct {
	PromptPerM     float64
	CompletionPerM float64
}

// Table maps a model identifier to its rate. Unknown models cost zero.
type Table map[string]Rate

// DefaultTable returns the built-in rate table. Rates are standard-tier text
// token prices; adjust per deployment via WithRate.
func DefaultTable() Table {
	return Table{
		"gpt-4o":                {PromptPerM: 2.50, CompletionPerM: 10.00},
		"gpt-4o-mini":           {PromptPerM: 0.15, CompletionPerM: 0.60},
		"claude-sonnet-4":       {PromptPerM: 3.00, CompletionPerM: 15.00},
		"claude-haiku-3-5":      {PromptPerM: 0.80, CompletionPerM: 4.00},
		"gemini-2.5-flash":      {PromptPerM: 0.30, CompletionPerM: 2.50},
		"gemini-2.5-flash-lite": {PromptPerM: 0.10, CompletionPerM: 0.40},
	}
}

// WithRate returns a copy of the table with one rate added or replaced.
func (t Table) WithRate(model string, rate Rate) Table {
	next := make(Table, len(t)+1)
	for name, r := range t {
		next[name] = r
	}

	next[model] = rate

	return next
}

// Cost converts one call's token counts to USD using the model's rate.
// Unknown models resolve to a zero rate rather than an error so that cost
// accounting never blocks a run.
func (t Table) Cost(model string, promptTokens, completionTokens int) float64 {
	rate, ok := t[model]
	if !ok {
		return 0
	}

	promptCost := rate.PromptPerM * float64(promptTokens) / 1_000_000.0
	completionCost := rate.CompletionPerM * float64(completionTokens) / 1_000_000.0

	return promptCost + completionCost
}
