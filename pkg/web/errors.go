package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/vividlab/canvasflow/pkg/dispatcher"
	"github.com/vividlab/canvasflow/pkg/persistence"
	"github.com/vividlab/canvasflow/pkg/services"
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

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case persistence.IsWorkflowNotFound(err):
		return notFound(c, "workflow not found")

	default:
		return internalError(c, err)
	}
}

// handleGenerationError converts dispatcher failures into the simple
// `{error}` shape the canvas client consumes. Provider failures already
// transitioned the node to Error, so the payload carries the same message
// the node stores.
func handleGenerationError(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	switch {
	case errors.Is(err, dispatcher.ErrNodeNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, dispatcher.ErrEmptyPrompt):
		status = fiber.StatusBadRequest
	case errors.Is(err, dispatcher.ErrNodeBusy):
		status = fiber.StatusConflict
	}

	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
