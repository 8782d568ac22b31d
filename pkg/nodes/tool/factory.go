package tool

import (
	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/protocol"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(id string, deps protocol.Dependencies, config models.CapabilityConfig) (protocol.Node, error) {
	return NewNode(id, deps, config)
}

func (f *Factory) Kind() models.NodeKind {
	return models.NodeKindTool
}

func (f *Factory) Description() string {
	return "Dispatches pending tool calls and records their results"
}
