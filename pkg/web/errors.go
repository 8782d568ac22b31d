package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/chatloom/chatloom/pkg/execution"
	"github.com/chatloom/chatloom/pkg/persistence"
	"github.com/chatloom/chatloom/pkg/registry"
	"github.com/chatloom/chatloom/pkg/workflow"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleExecutorError maps pre-run executor errors to HTTP problems. Bad
// requests and bad capability configurations are the caller's fault; the
// rest is ours.
func handleExecutorError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, execution.ErrInvalidRequest):
		return badRequest(c, err.Error())

	case errors.Is(err, workflow.ErrInvalidCapabilityConfig):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("invalid_capability_config").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case errors.Is(err, registry.ErrUnsupportedNodeKind):
		problem := problems.NewStatusProblem(400).
			WithInstance(c.Path()).
			WithType("unsupported_node_kind").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadRequest).JSON(problem)

	case persistence.IsExecutionNotFound(err):
		return notFound(c, "execution not found")

	default:
		return internalError(c, err)
	}
}
