// Package file provides file-based persistence for execution records and
// conversation history. Intended for development and small single-node
// deployments.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/chatloom/chatloom/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
// Records are stored as one JSON document per entity under the root
// directory.
type Persistence struct {
	root          string
	executions    *ExecutionRepository
	conversations *ConversationRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// Accepts both a plain path and a file:// URL.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		executions:    NewExecutionRepository(cleanRoot),
		conversations: NewConversationRepository(cleanRoot),
	}
}

func (fp *Persistence) Executions() persistence.ExecutionRepository {
	return fp.executions
}

func (fp *Persistence) Conversations() persistence.ConversationRepository {
	return fp.conversations
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. Nothing to release for files.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
