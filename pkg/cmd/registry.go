// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/chatloom/chatloom/pkg/nodes/memory"
	"github.com/chatloom/chatloom/pkg/nodes/model"
	"github.com/chatloom/chatloom/pkg/nodes/retrieval"
	"github.com/chatloom/chatloom/pkg/nodes/tool"
	"github.com/chatloom/chatloom/pkg/registry"
	"github.com/chatloom/chatloom/pkg/tools"
)

// NewRegistry creates a node registry with all native node kinds registered.
func NewRegistry(log *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(log)

	reg.Register(model.NewFactory())
	reg.Register(retrieval.NewFactory())
	reg.Register(tool.NewFactory())
	reg.Register(memory.NewFactory())

	return reg
}

// NewToolRegistry creates a tool registry with the built-in tools registered.
func NewToolRegistry(log *slog.Logger) *tools.Registry {
	reg := tools.NewRegistry(log)

	reg.Register(tools.NewClockTool())

	return reg
}
