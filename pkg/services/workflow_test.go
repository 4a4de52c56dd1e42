package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vividlab/canvasflow/pkg/models"
	"github.com/vividlab/canvasflow/pkg/persistence"
	"github.com/vividlab/canvasflow/pkg/persistence/file"
)

func newTestService(t *testing.T) *Workflow {
	t.Helper()

	return NewWorkflow(file.NewPersistence(t.TempDir()), nil)
}

func TestSave_AssignsIDOnFirstSave(t *testing.T) {
	service := newTestService(t)

	saved, err := service.Save(context.Background(), &models.Workflow{Title: "Untitled Canvas"})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	// A later save reuses the identity.
	again, err := service.Save(context.Background(), saved)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, again.ID)
}

func TestSave_ValidatesInput(t *testing.T) {
	service := newTestService(t)

	_, err := service.Save(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = service.Save(context.Background(), &models.Workflow{})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.ErrorIs(t, err, ErrTitleRequired)
}

func TestGet_RoundTrip(t *testing.T) {
	service := newTestService(t)

	saved, err := service.Save(context.Background(), &models.Workflow{
		Title: "Round trip",
		Nodes: []*models.Node{{ID: "n1", Type: models.NodeTypeImage}},
	})
	require.NoError(t, err)

	got, err := service.Get(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Round trip", got.Title)
	require.Len(t, got.Nodes, 1)
}

func TestGet_NotFound(t *testing.T) {
	service := newTestService(t)

	_, err := service.Get(context.Background(), "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestList(t *testing.T) {
	service := newTestService(t)

	_, err := service.Save(context.Background(), &models.Workflow{Title: "One"})
	require.NoError(t, err)
	_, err = service.Save(context.Background(), &models.Workflow{Title: "Two"})
	require.NoError(t, err)

	workflows, err := service.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, workflows, 2)
}

func TestDelete(t *testing.T) {
	service := newTestService(t)

	saved, err := service.Save(context.Background(), &models.Workflow{Title: "Doomed"})
	require.NoError(t, err)

	require.NoError(t, service.Delete(context.Background(), saved.ID))

	_, err = service.Get(context.Background(), saved.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}
