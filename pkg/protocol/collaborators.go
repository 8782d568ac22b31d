package protocol

import (
	"context"
	"errors"

	"github.com/chatloom/chatloom/pkg/models"
)

// ErrTransient marks a provider failure that is worth a single in-node retry.
// Model client implementations wrap transient transport errors with it.
var ErrTransient = errors.New("transient provider error")

// ErrProtocolViolation marks a tool dispatch failure that indicates corrupted
// wiring rather than an ordinary tool error, for example a call to a tool
// outside the set the run was configured with. It is run-fatal.
var ErrProtocolViolation = errors.New("tool protocol violation")

// ToolSchema describes one tool offered to the model.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema for the arguments
}

// ModelRequest is one model-call capability invocation.
type ModelRequest struct {
	Model       string
	Messages    []models.Message
	ToolSchemas []ToolSchema
}

// ModelResponse is the model's answer plus its optional usage report. Usage is
// nil when the provider declines to report it; that is expected, not an error.
type ModelResponse struct {
	Message models.Message
	Usage   map[string]any
}

// ModelClient is the model-call capability. Implementations live outside the
// core and must be safe for concurrent invocation.
type ModelClient interface {
	Invoke(ctx context.Context, req ModelRequest) (*ModelResponse, error)
}

// StreamingModelClient is optionally implemented by model clients that stream
// partial text. onToken receives raw fragments; the returned response carries
// the complete message and the end-of-call usage report.
type StreamingModelClient interface {
	ModelClient
	InvokeStream(ctx context.Context, req ModelRequest, onToken func(token string)) (*ModelResponse, error)
}

// RetrievedChunk is one ranked result from a similarity search.
type RetrievedChunk struct {
	DocumentID string  `json:"document_id"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// Retriever is the vector-search capability. May return an empty slice;
// failures are non-fatal to a run.
type Retriever interface {
	Search(ctx context.Context, query string, documentIDs []string, k int) ([]RetrievedChunk, error)
}

// ToolDispatcher routes tool calls to their implementations.
type ToolDispatcher interface {
	// Schemas returns the schemas for the named tools, in the order given.
	// Unknown names are skipped.
	Schemas(toolSet []string) []ToolSchema

	// Dispatch runs one tool call. Ordinary tool failures are reported inside
	// the returned result; an error return wrapping ErrProtocolViolation
	// aborts the run.
	Dispatch(ctx context.Context, call models.ToolCall) (*models.ToolResult, error)
}

// MemoryStore folds finished turns into longer-term conversation memory.
// Failures are logged and swallowed by the memory node.
type MemoryStore interface {
	Fold(ctx context.Context, conversationID string, messages []models.Message) error
}
