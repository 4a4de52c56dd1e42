package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vividlab/canvasflow/pkg/dispatcher"
	"github.com/vividlab/canvasflow/pkg/graph"
	"github.com/vividlab/canvasflow/pkg/library"
	"github.com/vividlab/canvasflow/pkg/models"
	"github.com/vividlab/canvasflow/pkg/persistence/file"
	"github.com/vividlab/canvasflow/pkg/providers"
	"github.com/vividlab/canvasflow/pkg/services"
	"github.com/vividlab/canvasflow/pkg/session"
)

type stubAdapter struct {
	data []byte
	err  error
}

func (s *stubAdapter) Generate(_ context.Context, _ providers.Request) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}

	return s.data, nil
}

type webFixture struct {
	app     *fiber.App
	graph   *graph.Graph
	library *library.Library
	service *services.Workflow
	adapter *stubAdapter
}

func setupTestApp(t *testing.T) *webFixture {
	t.Helper()

	lib, err := library.New(t.TempDir(), slog.Default())
	require.NoError(t, err)

	p := file.NewPersistence(t.TempDir())
	service := services.NewWorkflow(p, nil)

	g := graph.New()
	adapter := &stubAdapter{data: []byte("generated")}
	disp := dispatcher.New(g, lib, map[providers.Provider]providers.Adapter{
		providers.ProviderGemini: adapter,
	}, nil, nil, slog.Default())

	sess := session.New(g, service, nil, nil, slog.Default())

	handlers := NewAPIHandlers(sess, disp, service, lib, p, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	app.Post("/generate", handlers.Generate)
	app.Get("/generation-status/:nodeId", handlers.GenerationStatus)
	app.Get("/models", handlers.GetModels)

	s := app.Group("/session")
	s.Get("/", handlers.GetSession)
	s.Post("/new", handlers.NewCanvas)
	s.Post("/open/:id", handlers.OpenWorkflow)
	s.Post("/save", handlers.SaveCanvas)

	n := app.Group("/nodes")
	n.Post("/", handlers.CreateNode)
	n.Patch("/:id", handlers.UpdateNode)
	n.Delete("/:id", handlers.DeleteNode)
	n.Post("/connect", handlers.ConnectNodes)
	n.Post("/insert-before", handlers.InsertNodeBefore)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Get("/:id", handlers.GetWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/import", handlers.ImportWorkflow)

	app.Get("/library/:kind", handlers.GetLibraryAssets)
	app.Get("/health", handlers.HealthCheck)

	return &webFixture{app: app, graph: g, library: lib, service: service, adapter: adapter}
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()

	var body io.Reader

	if payload != nil {
		encoded, err := json.Marshal(payload)
		require.NoError(t, err)

		body = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")

	return req
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestGenerate_Endpoint(t *testing.T) {
	f := setupTestApp(t)
	node := f.graph.AddNode(models.NodeTypeImage, models.Position{}, "")

	resp, err := f.app.Test(jsonRequest(t, http.MethodPost, "/generate", models.GenerationRequest{
		NodeID: node.ID,
		Prompt: "a lighthouse",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.GenerationResponse
	decodeBody(t, resp, &result)
	assert.Equal(t, "/library/assets/images/"+node.ID+".png", result.ResultURL)
}

func TestGenerate_FailureReturnsErrorShape(t *testing.T) {
	f := setupTestApp(t)
	node := f.graph.AddNode(models.NodeTypeImage, models.Position{}, "")
	f.adapter.err = &providers.Error{
		Provider: providers.ProviderGemini,
		Kind:     providers.ErrorKindPermission,
		Message:  "API returned status 403",
	}

	resp, err := f.app.Test(jsonRequest(t, http.MethodPost, "/generate", models.GenerationRequest{
		NodeID: node.ID,
		Prompt: "a lighthouse",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, dispatcher.PermissionDeniedMessage, body["error"])
}

func TestGenerate_MissingNodeID(t *testing.T) {
	f := setupTestApp(t)

	resp, err := f.app.Test(jsonRequest(t, http.MethodPost, "/generate", map[string]string{
		"prompt": "no node",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerate_UnknownNode(t *testing.T) {
	f := setupTestApp(t)

	resp, err := f.app.Test(jsonRequest(t, http.MethodPost, "/generate", models.GenerationRequest{
		NodeID: "missing",
		Prompt: "anything",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGenerationStatus_PendingAndSuccess(t *testing.T) {
	f := setupTestApp(t)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/generation-status/unknown-node", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var pending models.GenerationStatus
	decodeBody(t, resp, &pending)
	assert.Equal(t, "pending", pending.Status)

	url, err := f.library.Persist([]byte("media"), models.AssetKindImages, "done-node", models.AssetMetadata{})
	require.NoError(t, err)

	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/generation-status/done-node", nil))
	require.NoError(t, err)

	var done models.GenerationStatus
	decodeBody(t, resp, &done)
	assert.Equal(t, "success", done.Status)
	assert.Equal(t, url, done.ResultURL)
}

func TestGetModels(t *testing.T) {
	f := setupTestApp(t)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/models", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var catalog []map[string]any
	decodeBody(t, resp, &catalog)
	assert.NotEmpty(t, catalog)
}

func TestNodeLifecycleEndpoints(t *testing.T) {
	f := setupTestApp(t)

	// Create.
	resp, err := f.app.Test(jsonRequest(t, http.MethodPost, "/nodes", CreateNodeRequest{
		Type:     models.NodeTypeImage,
		Position: models.Position{X: 5, Y: 7},
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Node
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.ID)

	// Update.
	prompt := "updated prompt"
	resp, err = f.app.Test(jsonRequest(t, http.MethodPatch, "/nodes/"+created.ID, UpdateNodeRequest{Prompt: &prompt}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated models.Node
	decodeBody(t, resp, &updated)
	assert.Equal(t, prompt, updated.Prompt)

	// Delete.
	resp, err = f.app.Test(httptest.NewRequest(http.MethodDelete, "/nodes/"+created.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, f.graph.Len())
}

func TestCreateNode_InvalidType(t *testing.T) {
	f := setupTestApp(t)

	resp, err := f.app.Test(jsonRequest(t, http.MethodPost, "/nodes", map[string]string{"type": "hologram"}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConnectAndInsertBefore(t *testing.T) {
	f := setupTestApp(t)

	text := f.graph.AddNode(models.NodeTypeText, models.Position{}, "")
	promptText := "a red bicycle"
	f.graph.UpdateNode(text.ID, models.NodeUpdate{Prompt: &promptText})
	image := f.graph.AddNode(models.NodeTypeImage, models.Position{}, "")

	resp, err := f.app.Test(jsonRequest(t, http.MethodPost, "/nodes/connect", ConnectRequest{
		ParentID: text.ID,
		ChildID:  image.ID,
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, promptText, f.graph.Node(image.ID).Prompt)

	editor := f.graph.AddNode(models.NodeTypeImageEditor, models.Position{}, "")

	resp, err = f.app.Test(jsonRequest(t, http.MethodPost, "/nodes/insert-before", InsertBeforeRequest{
		NodeID:   editor.ID,
		BeforeID: image.ID,
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, editor.ID, f.graph.Node(image.ID).ParentID)
	assert.Equal(t, text.ID, f.graph.Node(editor.ID).ParentID)
}

func TestSessionSaveAndOpen(t *testing.T) {
	f := setupTestApp(t)
	f.graph.AddNode(models.NodeTypeImage, models.Position{}, "")

	resp, err := f.app.Test(jsonRequest(t, http.MethodPost, "/session/save", SaveWorkflowRequest{Title: "My canvas"}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var saved models.Workflow
	decodeBody(t, resp, &saved)
	require.NotEmpty(t, saved.ID)
	assert.Equal(t, "My canvas", saved.Title)

	// New canvas clears the live state.
	resp, err = f.app.Test(httptest.NewRequest(http.MethodPost, "/session/new", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, f.graph.Len())

	// Open restores it.
	resp, err = f.app.Test(httptest.NewRequest(http.MethodPost, "/session/open/"+saved.ID, nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state SessionResponse
	decodeBody(t, resp, &state)
	assert.Equal(t, saved.ID, state.WorkflowID)
	assert.Equal(t, "My canvas", state.Title)
	assert.Len(t, state.Nodes, 1)
}

func TestSessionOpen_NotFound(t *testing.T) {
	f := setupTestApp(t)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodPost, "/session/open/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWorkflowsEndpoints(t *testing.T) {
	f := setupTestApp(t)

	stored, err := f.service.Save(context.Background(), &models.Workflow{Title: "Stored"})
	require.NoError(t, err)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/workflows", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var workflows []models.Workflow
	decodeBody(t, resp, &workflows)
	require.Len(t, workflows, 1)

	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/workflows/"+stored.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = f.app.Test(httptest.NewRequest(http.MethodDelete, "/workflows/"+stored.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/workflows/"+stored.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetWorkflows_Pagination(t *testing.T) {
	f := setupTestApp(t)
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		_, err := f.service.Save(ctx, &models.Workflow{Title: title})
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/workflows?limit=1&offset=1", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page []models.Workflow
	decodeBody(t, resp, &page)
	require.Len(t, page, 1)
	assert.Equal(t, "second", page[0].Title)

	// An offset past the end yields an empty page, not an error.
	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/workflows?offset=10", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	decodeBody(t, resp, &page)
	assert.Empty(t, page)

	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/workflows?limit=-1", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImportWorkflow(t *testing.T) {
	f := setupTestApp(t)

	document := map[string]any{
		"title": "Imported",
		"nodes": []map[string]any{
			{"id": "n1", "type": "image", "status": "success"},
		},
	}

	resp, err := f.app.Test(jsonRequest(t, http.MethodPost, "/workflows/import", document))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var imported models.Workflow
	decodeBody(t, resp, &imported)
	assert.NotEmpty(t, imported.ID)
	assert.Equal(t, "Imported", imported.Title)
}

func TestImportWorkflow_SchemaViolation(t *testing.T) {
	f := setupTestApp(t)

	tests := []struct {
		name     string
		document map[string]any
	}{
		{
			name:     "missing nodes",
			document: map[string]any{"title": "No nodes"},
		},
		{
			name: "bad node type",
			document: map[string]any{
				"title": "Bad type",
				"nodes": []map[string]any{{"id": "n1", "type": "hologram"}},
			},
		},
		{
			name: "empty title",
			document: map[string]any{
				"title": "",
				"nodes": []map[string]any{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := f.app.Test(jsonRequest(t, http.MethodPost, "/workflows/import", tt.document))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetLibraryAssets(t *testing.T) {
	f := setupTestApp(t)

	_, err := f.library.Persist([]byte("media"), models.AssetKindImages, "asset-1", models.AssetMetadata{Prompt: "a fox"})
	require.NoError(t, err)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/library/images", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var assets []models.AssetMetadata
	decodeBody(t, resp, &assets)
	require.Len(t, assets, 1)
	assert.Equal(t, "asset-1", assets[0].ID)

	resp, err = f.app.Test(httptest.NewRequest(http.MethodGet, "/library/documents", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	f := setupTestApp(t)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
