package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/chatloom/chatloom/pkg/models"
	"github.com/chatloom/chatloom/pkg/persistence"
)

// ConversationRepository stores each conversation's history as one JSON
// document under <root>/conversations.
type ConversationRepository struct {
	dir string
	mu  sync.Mutex
}

func NewConversationRepository(root string) *ConversationRepository {
	return &ConversationRepository{dir: filepath.Join(root, "conversations")}
}

func (r *ConversationRepository) AppendMessages(_ context.Context, conversationID string, messages []models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	history, err := r.load(conversationID)
	if err != nil {
		return &persistence.ConversationError{Op: "Append", ConversationID: conversationID, Err: err}
	}

	history = append(history, messages...)

	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return &persistence.ConversationError{Op: "Append", ConversationID: conversationID, Err: err}
	}

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return &persistence.ConversationError{Op: "Append", ConversationID: conversationID, Err: err}
	}

	if err := os.WriteFile(r.path(conversationID), data, 0o600); err != nil {
		return &persistence.ConversationError{Op: "Append", ConversationID: conversationID, Err: err}
	}

	return nil
}

// History returns the stored messages, oldest first. A conversation with no
// stored history yields an empty slice, not an error.
func (r *ConversationRepository) History(_ context.Context, conversationID string) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	history, err := r.load(conversationID)
	if err != nil {
		return nil, &persistence.ConversationError{Op: "History", ConversationID: conversationID, Err: err}
	}

	return history, nil
}

func (r *ConversationRepository) ClearHistory(_ context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := os.Remove(r.path(conversationID))
	if err != nil && !os.IsNotExist(err) {
		return &persistence.ConversationError{Op: "Clear", ConversationID: conversationID, Err: err}
	}

	return nil
}

func (r *ConversationRepository) load(conversationID string) ([]models.Message, error) {
	data, err := os.ReadFile(r.path(conversationID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, err
	}

	var history []models.Message
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}

	return history, nil
}

func (r *ConversationRepository) path(conversationID string) string {
	return filepath.Join(r.dir, conversationID+".json")
}
