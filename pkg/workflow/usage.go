package workflow

import (
	"sort"

	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/pricing"
)

// Alias sets for provider-reported usage fields. Providers are inconsistent
// about naming; the first alias found wins, in the order listed.
var (
	promptTokenAliases     = []string{"prompt_tokens", "promptTokens", "input_tokens"}
	completionTokenAliases = []string{"completion_tokens", "completionTokens", "output_tokens"}
	totalTokenAliases      = []string{"total_tokens", "totalTokens", "tokens_used"}
)

// Aggregate folds the run's usage metadata into execution-wide totals.
//
// Entries are deduplicated by call id: the first-seen record (in merge order)
// wins, repeated reports of the same call are never counted twice. Token
// counts are summed after alias normalization; an entry's explicit total is
// trusted when present, otherwise prompt+completion is used. Cost applies the
// per-model rate table per entry. Zero entries yield all-zero totals, which is
// a valid terminal state, not an error.
//
// Aggregate is a pure function of its inputs: re-aggregating the same
// metadata always yields identical totals.
func Aggregate(usage map[string]models.UsageRecord, rates pricing.Table) models.AggregatedUsage {
	var aggregated models.AggregatedUsage

	if len(usage) == 0 {
		return aggregated
	}

	records := make([]models.UsageRecord, 0, len(usage))
	for _, record := range usage {
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Sequence < records[j].Sequence
	})

	seen := make(map[string]bool, len(records))

	for _, record := range records {
		if record.CallID != "" {
			if seen[record.CallID] {
				continue
			}

			seen[record.CallID] = true
		}

		prompt := lookupTokens(record.Raw, promptTokenAliases)
		completion := lookupTokens(record.Raw, completionTokenAliases)

		total, hasTotal := lookupTokensOK(record.Raw, totalTokenAliases)
		if !hasTotal {
			total = prompt + completion
		}

		aggregated.PromptTokens += prompt
		aggregated.CompletionTokens += completion
		aggregated.TokensUsed += total
		aggregated.Cost += rates.Cost(record.Model, prompt, completion)
	}

	return aggregated
}

func lookupTokens(raw map[string]any, aliases []string) int {
	value, _ := lookupTokensOK(raw, aliases)

	return value
}

func lookupTokensOK(raw map[string]any, aliases []string) (int, bool) {
	for _, alias := range aliases {
		if value, ok := raw[alias]; ok {
			if count, ok := asInt(value); ok {
				return count, true
			}
		}
	}

	return 0, false
}

// asInt accepts the numeric shapes usage fields arrive in: native ints from
// in-process callers and float64 from JSON decoding.
func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	default:
		return 0, false
	}
}
