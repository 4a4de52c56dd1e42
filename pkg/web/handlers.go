// Package web provides the HTTP surface of the canvas backend: graph
// mutations, generation dispatch, workflow documents, and the content
// library.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/vividlab/canvasflow/pkg/catalog"
	"github.com/vividlab/canvasflow/pkg/dispatcher"
	"github.com/vividlab/canvasflow/pkg/library"
	"github.com/vividlab/canvasflow/pkg/models"
	"github.com/vividlab/canvasflow/pkg/persistence"
	"github.com/vividlab/canvasflow/pkg/services"
	"github.com/vividlab/canvasflow/pkg/session"
)

type APIHandlers struct {
	session         *session.Session
	dispatcher      *dispatcher.Dispatcher
	workflowService *services.Workflow
	library         *library.Library
	persistence     persistence.Persistence
	validator       *validator.Validate
}

func NewAPIHandlers(
	sess *session.Session,
	disp *dispatcher.Dispatcher,
	workflowService *services.Workflow,
	lib *library.Library,
	p persistence.Persistence,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		session:         sess,
		dispatcher:      disp,
		workflowService: workflowService,
		library:         lib,
		persistence:     p,
		validator:       validator,
	}
}

// Generate runs one generation call for a node. The request blocks until the
// provider finishes, including multi-minute poll loops for async providers;
// concurrent requests for different nodes proceed independently.
func (h *APIHandlers) Generate(c fiber.Ctx) error {
	var req models.GenerationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.dispatcher.Generate(c.Context(), req)
	if err != nil {
		return handleGenerationError(c, err)
	}

	return c.JSON(result)
}

// GenerationStatus reports whether a persisted result exists for a node id.
// Unknown ids are "pending", never an error, so a reconnecting client can
// poll it for every loading node it remembers.
func (h *APIHandlers) GenerationStatus(c fiber.Ctx) error {
	nodeID := c.Params("nodeId")
	if nodeID == "" {
		return badRequest(c, "Node ID is required")
	}

	status, err := h.library.Lookup(nodeID)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(status)
}

func (h *APIHandlers) GetModels(c fiber.Ctx) error {
	return c.JSON(catalog.Models())
}

func (h *APIHandlers) GetSession(c fiber.Ctx) error {
	return c.JSON(h.sessionResponse())
}

func (h *APIHandlers) NewCanvas(c fiber.Ctx) error {
	h.session.NewCanvas()

	return c.JSON(h.sessionResponse())
}

func (h *APIHandlers) OpenWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if _, err := h.session.Open(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(h.sessionResponse())
}

// SaveCanvas persists the live canvas. The first save assigns the workflow
// id; an empty cover URL leaves any previously stored cover intact.
func (h *APIHandlers) SaveCanvas(c fiber.Ctx) error {
	var req SaveWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	if req.Title != "" {
		h.session.SetTitle(req.Title)
	}

	if req.CoverURL != "" {
		h.session.SetCoverURL(req.CoverURL)
	}

	saved, err := h.session.Save(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(saved)
}

func (h *APIHandlers) CreateNode(c fiber.Ctx) error {
	var req CreateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	node := h.session.Graph().AddNode(req.Type, req.Position, req.ParentID)

	return c.Status(fiber.StatusCreated).JSON(node)
}

func (h *APIHandlers) UpdateNode(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Node ID is required")
	}

	var req UpdateNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	node := h.session.Graph().UpdateNode(id, models.NodeUpdate{
		Position:    req.Position,
		Prompt:      req.Prompt,
		Model:       req.Model,
		AspectRatio: req.AspectRatio,
		Resolution:  req.Resolution,
		Duration:    req.Duration,
	})
	if node == nil {
		return notFound(c, "node not found")
	}

	return c.JSON(node)
}

func (h *APIHandlers) DeleteNode(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Node ID is required")
	}

	if !h.session.DeleteNode(id) {
		return notFound(c, "node not found")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ConnectNodes(c fiber.Ctx) error {
	var req ConnectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if !h.session.Graph().Connect(req.ParentID, req.ChildID) {
		return notFound(c, "node not found")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) InsertNodeBefore(c fiber.Ctx) error {
	var req InsertBeforeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if !h.session.Graph().InsertBefore(req.NodeID, req.BeforeID) {
		return notFound(c, "node not found")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// GetWorkflows lists saved workflows, most recently updated first. Optional
// limit and offset query parameters page through the list.
func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	offset := fiber.Query(c, "offset", 0)
	limit := fiber.Query(c, "limit", 0)

	if offset < 0 || limit < 0 {
		return badRequest(c, "limit and offset must be non-negative")
	}

	workflows, err := h.workflowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	if offset > len(workflows) {
		offset = len(workflows)
	}

	workflows = workflows[offset:]

	if limit > 0 && limit < len(workflows) {
		workflows = workflows[:limit]
	}

	return c.JSON(workflows)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.workflowService.Get(c.Context(), id)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	if err := h.workflowService.Delete(c.Context(), id); err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ImportWorkflow accepts a full workflow document, validates it against the
// workflow schema, and persists it under a fresh id.
func (h *APIHandlers) ImportWorkflow(c fiber.Ctx) error {
	body := c.Body()

	if err := ValidateWorkflowDocument(body); err != nil {
		return badRequest(c, err.Error())
	}

	var workflow models.Workflow
	if err := c.Bind().JSON(&workflow); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	workflow.ID = ""

	imported, err := h.workflowService.Save(c.Context(), &workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(imported)
}

func (h *APIHandlers) GetLibraryAssets(c fiber.Ctx) error {
	kind := models.AssetKind(c.Params("kind"))
	if kind != models.AssetKindImages && kind != models.AssetKindVideos {
		return badRequest(c, "Library kind must be images or videos")
	}

	assets, err := h.library.Assets(kind)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(assets)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryErr := h.persistence.HealthCheck(c.Context())

	status := "healthy"
	message := "Canvasflow API is healthy"
	httpStatus := http.StatusOK

	if repositoryErr != nil {
		status = "unhealthy"
		message = "Canvasflow API is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) sessionResponse() SessionResponse {
	g := h.session.Graph()

	return SessionResponse{
		WorkflowID: h.session.WorkflowID(),
		Title:      h.session.Title(),
		Dirty:      h.session.Dirty(),
		Nodes:      g.Nodes(),
		Groups:     g.Groups(),
	}
}
