// Package web provides the REST management surface: process definitions,
// execution control, evidence queries, and the entropy control plane.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/regenera-io/regenera/pkg/definition"
	"github.com/regenera-io/regenera/pkg/engine"
	"github.com/regenera-io/regenera/pkg/entropy"
	"github.com/regenera-io/regenera/pkg/eventbus"
	"github.com/regenera-io/regenera/pkg/events"
	"github.com/regenera-io/regenera/pkg/evidence"
	"github.com/regenera-io/regenera/pkg/models"
	"github.com/regenera-io/regenera/pkg/persistence"
	"github.com/regenera-io/regenera/pkg/spc"
)

// ViolationSource exposes the violations observed by the control loop.
type ViolationSource interface {
	Violations() []*models.ControlViolation
}

type Config struct {
	Logger      *slog.Logger
	Definitions *definition.Store
	Persistence persistence.Persistence
	Engine      *engine.Engine
	Recorder    *evidence.Recorder
	Checker     *evidence.Validator
	Entropy     *entropy.System
	Controller  *spc.Controller
	Violations  ViolationSource
	Publisher   eventbus.EventPublisher
}

type APIHandlers struct {
	config    Config
	logger    *slog.Logger
	validator *validator.Validate
}

func NewAPIHandlers(config Config) *APIHandlers {
	return &APIHandlers{
		config:    config,
		logger:    config.Logger.With("module", "web"),
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register mounts every route group on the given app.
func (h *APIHandlers) Register(app *fiber.App) {
	d := app.Group("/definitions")
	d.Get("/", h.ListDefinitions)
	d.Post("/", h.CreateDefinition)
	d.Get("/:name", h.GetDefinition)
	d.Delete("/:name", h.DeleteDefinition)

	e := app.Group("/executions")
	e.Get("/", h.ListExecutions)
	e.Post("/", h.StartExecution)
	e.Get("/:id", h.GetExecution)
	e.Post("/:id/abort", h.AbortExecution)
	e.Post("/:id/resume", h.ResumeExecution)
	e.Get("/:id/evidence", h.GetExecutionEvidence)
	e.Get("/:id/validation", h.ValidateExecution)

	app.Get("/entropy", h.GetEntropyReport)
	app.Get("/entropy/:metric/history", h.GetEntropyHistory)

	c := app.Group("/control")
	c.Get("/limits", h.GetControlLimits)
	c.Post("/limits/:metric/recalibrate", h.RecalibrateMetric)
	c.Get("/violations", h.ListViolations)

	app.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) ListDefinitions(c fiber.Ctx) error {
	documents, err := h.config.Persistence.Definitions(c.Context())
	if err != nil {
		return handleError(c, err)
	}

	definitions := make([]json.RawMessage, 0, len(documents))
	for _, name := range sortedKeys(documents) {
		definitions = append(definitions, json.RawMessage(documents[name]))
	}

	return c.JSON(fiber.Map{
		"definitions": definitions,
		"total_count": len(definitions),
	})
}

func (h *APIHandlers) CreateDefinition(c fiber.Ctx) error {
	document := c.Body()
	if len(document) == 0 {
		return badRequest(c, "Definition document is required")
	}

	spec, err := h.config.Definitions.Add(document)
	if err != nil {
		return handleError(c, err)
	}

	if err := h.config.Persistence.SaveDefinition(c.Context(), spec.Name, document); err != nil {
		// Keep the store consistent with what is durably saved.
		_ = h.config.Definitions.Remove(spec.Name)

		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"name":    spec.Name,
		"version": spec.Version,
		"nodes":   len(spec.Nodes),
		"edges":   len(spec.Edges),
	})
}

func (h *APIHandlers) GetDefinition(c fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return badRequest(c, "Definition name is required")
	}

	document, err := h.config.Persistence.DefinitionByName(c.Context(), name)
	if err != nil {
		return handleError(c, err)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	return c.Send(document)
}

func (h *APIHandlers) DeleteDefinition(c fiber.Ctx) error {
	name := c.Params("name")
	if name == "" {
		return badRequest(c, "Definition name is required")
	}

	if err := h.config.Persistence.DeleteDefinition(c.Context(), name); err != nil {
		return handleError(c, err)
	}

	if err := h.config.Definitions.Remove(name); err != nil {
		h.logger.Warn("Definition deleted from persistence but not loaded", "process", name)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) StartExecution(c fiber.Ctx) error {
	var req StartExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	executionID, err := h.config.Engine.Start(c.Context(), req.ProcessName, req.Variables)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"execution_id": executionID,
		"process_name": req.ProcessName,
	})
}

func (h *APIHandlers) ListExecutions(c fiber.Ctx) error {
	executions := h.config.Engine.List()

	return c.JSON(fiber.Map{
		"executions":  executions,
		"total_count": len(executions),
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.config.Engine.Status(id)
	if err == nil {
		return c.JSON(execution)
	}

	// Finished executions leave the engine once archived.
	archived, archiveErr := h.config.Persistence.ArchivedExecutionByID(c.Context(), id)
	if archiveErr != nil {
		return handleError(c, archiveErr)
	}

	return c.JSON(archived.Execution)
}

func (h *APIHandlers) AbortExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req AbortExecutionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.config.Engine.Abort(c.Context(), id, req.Reason); err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) ResumeExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req ResumeExecutionRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if err := h.config.Engine.Resume(c.Context(), id, req.Input); err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) GetExecutionEvidence(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	records, err := h.config.Recorder.RecordsFor(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	if len(records) == 0 {
		archived, archiveErr := h.config.Persistence.ArchivedExecutionByID(c.Context(), id)
		if archiveErr != nil {
			return handleError(c, archiveErr)
		}

		records = archived.Records
	}

	return c.JSON(fiber.Map{
		"execution_id": id,
		"records":      records,
		"total_count":  len(records),
	})
}

func (h *APIHandlers) ValidateExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.config.Engine.Status(id)
	if err != nil {
		archived, archiveErr := h.config.Persistence.ArchivedExecutionByID(c.Context(), id)
		if archiveErr != nil {
			return handleError(c, archiveErr)
		}

		execution = archived.Execution
	}

	spec, err := h.config.Definitions.Get(execution.ProcessName)
	if err != nil {
		return handleError(c, err)
	}

	result, err := h.config.Checker.Validate(c.Context(), id, taskSteps(spec))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetEntropyReport(c fiber.Ctx) error {
	return c.JSON(h.config.Entropy.Composite())
}

func (h *APIHandlers) GetEntropyHistory(c fiber.Ctx) error {
	metric := c.Params("metric")
	if metric == "" {
		return badRequest(c, "Metric name is required")
	}

	history := h.config.Entropy.History(metric)

	return c.JSON(fiber.Map{
		"metric":      metric,
		"history":     history,
		"total_count": len(history),
	})
}

func (h *APIHandlers) GetControlLimits(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"limits": h.config.Controller.Limits()})
}

func (h *APIHandlers) RecalibrateMetric(c fiber.Ctx) error {
	metric := c.Params("metric")
	if metric == "" {
		return badRequest(c, "Metric name is required")
	}

	limit, err := h.config.Controller.Recalibrate(c.Context(), metric, h.config.Entropy.History(metric))
	if err != nil {
		return handleError(c, err)
	}

	if h.config.Publisher != nil {
		event := events.ControlLimitsRecalibrated{
			BaseEvent: events.NewBaseEvent(events.ControlLimitsRecalibratedEvent, ""),
			Metric:    metric,
			Limits:    limit,
		}
		if err := h.config.Publisher.Publish(c.Context(), metric, event); err != nil {
			h.logger.Warn("Failed to publish recalibration event", "metric", metric, "error", err)
		}
	}

	return c.JSON(limit)
}

func (h *APIHandlers) ListViolations(c fiber.Ctx) error {
	violations := h.config.Violations.Violations()

	return c.JSON(fiber.Map{
		"violations":  violations,
		"total_count": len(violations),
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryErr := h.config.Persistence.HealthCheck(c.Context())
	loaded := h.config.Definitions.Names()

	status := "healthy"
	httpStatus := http.StatusOK

	repositoryCheck := "Repository is reachable"
	if repositoryErr != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
		repositoryCheck = repositoryErr.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository":  repositoryCheck,
			"definitions": len(loaded),
		},
		"timestamp": time.Now().UTC(),
	})
}

func taskSteps(spec *models.ProcessSpec) []string {
	steps := make([]string, 0, len(spec.Nodes))

	for _, node := range spec.Nodes {
		if node.Kind == models.NodeKindTask {
			steps = append(steps, node.TaskName)
		}
	}

	return steps
}

func sortedKeys(documents map[string][]byte) []string {
	names := make([]string, 0, len(documents))
	for name := range documents {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
