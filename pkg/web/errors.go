package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/regenera-io/regenera/pkg/definition"
	"github.com/regenera-io/regenera/pkg/engine"
	"github.com/regenera-io/regenera/pkg/persistence"
	"github.com/regenera-io/regenera/pkg/spc"
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

// handleError maps domain errors onto RFC 7807 problem responses.
func handleError(c fiber.Ctx, err error) error {
	switch {
	case definition.IsParseError(err):
		return badRequest(c, err.Error())

	case errors.Is(err, definition.ErrProcessNotFound):
		return notFound(c, "process definition not found")

	case persistence.IsDefinitionNotFound(err):
		return notFound(c, "process definition not found")

	case persistence.IsArchiveNotFound(err):
		return notFound(c, "execution not found")

	case errors.Is(err, engine.ErrExecutionNotFound):
		return notFound(c, "execution not found")

	case errors.Is(err, engine.ErrExecutionFinished):
		return conflict(c, "execution already finished")

	case errors.Is(err, engine.ErrNotAwaitingInput):
		return conflict(c, "execution is not awaiting input")

	case errors.Is(err, spc.ErrMetricNotConfigured):
		return notFound(c, "metric has no configured control limits")

	case errors.Is(err, spc.ErrInsufficientHistory):
		return conflict(c, err.Error())

	default:
		return internalError(c, err)
	}
}
