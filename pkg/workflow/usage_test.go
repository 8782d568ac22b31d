package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/pricing"
)

func TestAggregateSumsEntriesAcrossNodes(t *testing.T) {
	usage := map[string]models.UsageRecord{
		"model-first": {
			CallID:   "call-1",
			Model:    "gpt-4o",
			Sequence: 1,
			Raw:      map[string]any{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
		},
		"model-second": {
			CallID:   "call-2",
			Model:    "gpt-4o",
			Sequence: 2,
			Raw:      map[string]any{"prompt_tokens": 15, "completion_tokens": 25, "total_tokens": 40},
		},
	}

	aggregated := Aggregate(usage, pricing.Table{})

	assert.Equal(t, 70, aggregated.TokensUsed)
	assert.Equal(t, 25, aggregated.PromptTokens)
	assert.Equal(t, 45, aggregated.CompletionTokens)
}

func TestAggregateNormalizesProviderAliases(t *testing.T) {
	usage := map[string]models.UsageRecord{
		"openai": {
			CallID:   "call-1",
			Sequence: 1,
			Raw:      map[string]any{"prompt_tokens": 10, "completion_tokens": 5},
		},
		"anthropic": {
			CallID:   "call-2",
			Sequence: 2,
			Raw:      map[string]any{"input_tokens": 7, "output_tokens": 3},
		},
		"camel": {
			CallID:   "call-3",
			Sequence: 3,
			Raw:      map[string]any{"promptTokens": 2, "completionTokens": 1},
		},
	}

	aggregated := Aggregate(usage, pricing.Table{})

	assert.Equal(t, 19, aggregated.PromptTokens)
	assert.Equal(t, 9, aggregated.CompletionTokens)
	assert.Equal(t, 28, aggregated.TokensUsed)
}

func TestAggregateDeduplicatesByCallID(t *testing.T) {
	usage := map[string]models.UsageRecord{
		"first": {
			CallID:   "call-1",
			Sequence: 1,
			Raw:      map[string]any{"prompt_tokens": 10, "completion_tokens": 10},
		},
		"repeat": {
			CallID:   "call-1",
			Sequence: 2,
			Raw:      map[string]any{"prompt_tokens": 999, "completion_tokens": 999},
		},
	}

	aggregated := Aggregate(usage, pricing.Table{})

	// First-seen in merge order wins; the repeated call id is never counted.
	assert.Equal(t, 10, aggregated.PromptTokens)
	assert.Equal(t, 10, aggregated.CompletionTokens)
	assert.Equal(t, 20, aggregated.TokensUsed)
}

func TestAggregateTrustsExplicitTotal(t *testing.T) {
	usage := map[string]models.UsageRecord{
		"model": {
			CallID:   "call-1",
			Sequence: 1,
			// Providers may include accounting beyond prompt+completion in
			// their reported total.
			Raw: map[string]any{"prompt_tokens": 10, "completion_tokens": 10, "total_tokens": 25},
		},
	}

	aggregated := Aggregate(usage, pricing.Table{})

	assert.Equal(t, 25, aggregated.TokensUsed)
}

func TestAggregateHandlesJSONDecodedNumbers(t *testing.T) {
	usage := map[string]models.UsageRecord{
		"model": {
			CallID:   "call-1",
			Sequence: 1,
			Raw:      map[string]any{"prompt_tokens": float64(12), "completion_tokens": float64(8)},
		},
	}

	aggregated := Aggregate(usage, pricing.Table{})

	assert.Equal(t, 12, aggregated.PromptTokens)
	assert.Equal(t, 8, aggregated.CompletionTokens)
	assert.Equal(t, 20, aggregated.TokensUsed)
}

func TestAggregateAppliesPerModelRates(t *testing.T) {
	rates := pricing.Table{}.
		WithRate("gpt-4o", pricing.Rate{PromptPerM: 2.50, CompletionPerM: 10.00}).
		WithRate("gpt-4o-mini", pricing.Rate{PromptPerM: 0.15, CompletionPerM: 0.60})

	usage := map[string]models.UsageRecord{
		"big": {
			CallID:   "call-1",
			Model:    "gpt-4o",
			Sequence: 1,
			Raw:      map[string]any{"prompt_tokens": 1_000_000, "completion_tokens": 1_000_000},
		},
		"small": {
			CallID:   "call-2",
			Model:    "gpt-4o-mini",
			Sequence: 2,
			Raw:      map[string]any{"prompt_tokens": 1_000_000, "completion_tokens": 0},
		},
		"unknown": {
			CallID:   "call-3",
			Model:    "some-new-model",
			Sequence: 3,
			Raw:      map[string]any{"prompt_tokens": 1_000_000, "completion_tokens": 0},
		},
	}

	aggregated := Aggregate(usage, rates)

	assert.InDelta(t, 12.65, aggregated.Cost, 1e-9)
}

func TestAggregateZeroEntriesYieldZeroTotals(t *testing.T) {
	aggregated := Aggregate(nil, pricing.DefaultTable())

	assert.Zero(t, aggregated.TokensUsed)
	assert.Zero(t, aggregated.PromptTokens)
	assert.Zero(t, aggregated.CompletionTokens)
	assert.Zero(t, aggregated.Cost)
}

func TestAggregateIsDeterministic(t *testing.T) {
	usage := map[string]models.UsageRecord{
		"a": {CallID: "call-1", Sequence: 2, Raw: map[string]any{"prompt_tokens": 3}},
		"b": {CallID: "call-2", Sequence: 1, Raw: map[string]any{"prompt_tokens": 5}},
		"c": {CallID: "call-1", Sequence: 3, Raw: map[string]any{"prompt_tokens": 100}},
	}

	first := Aggregate(usage, pricing.DefaultTable())

	for range 10 {
		require.Equal(t, first, Aggregate(usage, pricing.DefaultTable()))
	}

	assert.Equal(t, 8, first.PromptTokens)
}
