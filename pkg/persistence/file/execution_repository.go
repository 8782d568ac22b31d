package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/persistence"
)

// ExecutionRepository stores one JSON document per execution record under
// <root>/executions.
type ExecutionRepository struct {
	dir string
	mu  sync.RWMutex
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{dir: filepath.Join(root, "executions")}
}

func (r *ExecutionRepository) SaveExecution(_ context.Context, result *models.ExecutionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return persistence.NewExecutionError("Save", result.ID, err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return persistence.NewExecutionError("Save", result.ID, err)
	}

	if err := os.WriteFile(r.path(result.ID), data, 0o600); err != nil {
		return persistence.NewExecutionError("Save", result.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) ExecutionByID(_ context.Context, id string) (*models.ExecutionResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.read(r.path(id), id)
}

func (r *ExecutionRepository) ExecutionsByConversation(_ context.Context, conversationID string) ([]*models.ExecutionResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, persistence.NewExecutionError("List", "", err)
	}

	var results []*models.ExecutionResult

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		result, err := r.read(filepath.Join(r.dir, entry.Name()), "")
		if err != nil {
			return nil, err
		}

		if result.ConversationID == conversationID {
			results = append(results, result)
		}
	}

	return results, nil
}

func (r *ExecutionRepository) PurgeExecutions(_ context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}

		return 0, persistence.NewExecutionError("Purge", "", err)
	}

	var purged int64

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(r.dir, entry.Name())

		result, err := r.read(path, "")
		if err != nil {
			return purged, err
		}

		if result.StartedAt.Before(olderThan) {
			if err := os.Remove(path); err != nil {
				return purged, persistence.NewExecutionError("Purge", result.ID, err)
			}

			purged++
		}
	}

	return purged, nil
}

func (r *ExecutionRepository) read(path, id string) (*models.ExecutionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	var result models.ExecutionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, fmt.Errorf("corrupt record: %w", err))
	}

	return &result, nil
}

func (r *ExecutionRepository) path(id string) string {
	return filepath.Join(r.dir, id+".json")
}
