// Package web provides the HTTP surface for running and inspecting
// executions.
package web

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/chatloom/chatloom/pkg/events"
	"github.com/chatloom/chatloom/pkg/execution"
	"github.com/chatloom/chatloom/pkg/persistence"
)

type APIHandlers struct {
	executor    *execution.Executor
	persistence persistence.Persistence
	validator   *validator.Validate
}

func NewAPIHandlers(
	executor *execution.Executor,
	persist persistence.Persistence,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		executor:    executor,
		persistence: persist,
		validator:   validate,
	}
}

// Execute runs one conversational turn in buffered mode and returns the
// terminal result as a single JSON document.
func (h *APIHandlers) Execute(c fiber.Ctx) error {
	req, err := h.parseExecuteRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.executor.Execute(c.Context(), h.executionRequest(*req))
	if err != nil {
		return handleExecutorError(c, err)
	}

	return c.JSON(result)
}

// ExecuteStream runs one turn and streams progress as server-sent events:
// one node.completed frame per executed node, node.token frames while the
// model streams, and a final execution.result frame with the terminal record.
func (h *APIHandlers) ExecuteStream(c fiber.Ctx) error {
	req, err := h.parseExecuteRequest(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	ctx := c.Context()

	return c.SendStreamWriter(func(w *bufio.Writer) {
		sink := func(event events.Event) {
			writeSSE(w, string(event.GetType()), event)
		}

		result, err := h.executor.ExecuteStream(ctx, h.executionRequest(*req), sink)
		if err != nil {
			writeSSE(w, "error", map[string]string{"error": err.Error()})

			return
		}

		writeSSE(w, "execution.result", result)
	})
}

// GetExecution returns a stored execution record by id.
func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	result, err := h.persistence.Executions().ExecutionByID(c.Context(), id)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return notFound(c, "Execution not found")
		}

		return internalError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) parseExecuteRequest(c fiber.Ctx) (*ExecuteRequest, error) {
	var req ExecuteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON body")
	}

	if err := h.validator.Struct(req); err != nil {
		return nil, err
	}

	return &req, nil
}

func (h *APIHandlers) executionRequest(req ExecuteRequest) execution.Request {
	return execution.Request{
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		WorkspaceID:    req.WorkspaceID,
		Message:        req.Message,
		Capabilities:   req.Capabilities,
		Timeout:        req.Timeout(),
	}
}

func writeSSE(w *bufio.Writer, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	_ = w.Flush()
}
