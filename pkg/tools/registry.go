// Package tools provides the built-in tool registry backing the tool
// dispatcher collaborator.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

// Tool is a single invokable capability: a schema the model sees and a
// handler that executes a validated call.
type Tool interface {
	Schema() protocol.ToolSchema
	Call(ctx context.Context, arguments map[string]any) (string, error)
}

// Registry holds the available tools and dispatches calls against them.
// Registration happens at startup; afterwards the registry is read-only and
// safe for concurrent dispatch.
type Registry struct {
	logger *slog.Logger
	tools  map[string]Tool
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger.With("module", "tool_registry"),
		tools:  make(map[string]Tool),
	}
}

// Register adds a tool under its schema name, replacing any previous one.
func (r *Registry) Register(tool Tool) {
	r.tools[tool.Schema().Name] = tool
}

// Schemas returns the schemas for the named tool set, preserving set order.
// Unknown names are skipped with a warning so a stale configuration degrades
// instead of failing the turn.
func (r *Registry) Schemas(toolSet []string) []protocol.ToolSchema {
	schemas := make([]protocol.ToolSchema, 0, len(toolSet))

	for _, name := range toolSet {
		tool, ok := r.tools[name]
		if !ok {
			r.logger.Warn("Tool set references unknown tool", "tool", name)

			continue
		}

		schemas = append(schemas, tool.Schema())
	}

	return schemas
}

// Dispatch resolves one tool call. A call naming a tool that is not
// registered is a protocol violation: the model invented a tool it was never
// offered. Malformed arguments and handler failures come back as failed
// results, not errors, so the model can see and recover from them.
func (r *Registry) Dispatch(ctx context.Context, call models.ToolCall) (*models.ToolResult, error) {
	tool, ok := r.tools[call.Name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown tool %q", protocol.ErrProtocolViolation, call.Name)
	}

	if err := validateArguments(tool.Schema(), call.Arguments); err != nil {
		r.logger.Warn("Tool call arguments rejected", "tool", call.Name, "error", err)

		return &models.ToolResult{
			CallID: call.ID,
			Name:   call.Name,
			Error:  fmt.Sprintf("invalid arguments: %s", err),
		}, nil
	}

	output, err := tool.Call(ctx, call.Arguments)
	if err != nil {
		return &models.ToolResult{
			CallID: call.ID,
			Name:   call.Name,
			Error:  err.Error(),
		}, nil
	}

	return &models.ToolResult{
		CallID: call.ID,
		Name:   call.Name,
		Output: output,
	}, nil
}

func validateArguments(schema protocol.ToolSchema, arguments map[string]any) error {
	if schema.Parameters == nil {
		return nil
	}

	if arguments == nil {
		arguments = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema.Parameters)
	dataLoader := gojsonschema.NewGoLoader(arguments)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}

		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}
