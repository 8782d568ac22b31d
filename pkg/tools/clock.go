package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/chatloom/chatloom/pkg/protocol"
)

// ClockTool reports the current time, optionally in a named IANA time zone.
type ClockTool struct {
	now func() time.Time
}

func NewClockTool() *ClockTool {
	return &ClockTool{now: time.Now}
}

func (t *ClockTool) Schema() protocol.ToolSchema {
	return protocol.ToolSchema{
		Name:        "clock",
		Description: "Returns the current date and time, optionally in a specific time zone",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"timezone": map[string]any{
					"type":        "string",
					"description": "IANA time zone name, e.g. America/Sao_Paulo. Defaults to UTC.",
				},
			},
		},
	}
}

func (t *ClockTool) Call(_ context.Context, arguments map[string]any) (string, error) {
	location := time.UTC

	if name, ok := arguments["timezone"].(string); ok && name != "" {
		loc, err := time.LoadLocation(name)
		if err != nil {
			return "", fmt.Errorf("unknown time zone %q", name)
		}

		location = loc
	}

	return t.now().In(location).Format(time.RFC3339), nil
}
