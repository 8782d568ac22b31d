package web

import (
	"time"

	"github.com/chatloom/chatloom/pkg/models"
)

// ExecuteRequest is the request body for starting an execution.
type ExecuteRequest struct {
	ConversationID string                  `json:"conversation_id" validate:"required"`
	UserID         string                  `json:"user_id"         validate:"required"`
	WorkspaceID    string                  `json:"workspace_id"`
	Message        string                  `json:"message"         validate:"required"`
	Capabilities   models.CapabilityConfig `json:"capabilities"`
	TimeoutSeconds int                     `json:"timeout_seconds" validate:"omitempty,min=1,max=600"`
}

func (r ExecuteRequest) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}
