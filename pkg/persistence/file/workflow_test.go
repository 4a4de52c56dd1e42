package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vividlab/canvasflow/pkg/models"
	"github.com/vividlab/canvasflow/pkg/persistence"
)

func newTestPersistence(t *testing.T) persistence.Persistence {
	t.Helper()

	return NewPersistence(t.TempDir())
}

func TestSaveAndGetWorkflow(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	workflow := &models.Workflow{
		ID:    "wf-1",
		Title: "Harbor scenes",
		Nodes: []*models.Node{
			{ID: "n1", Type: models.NodeTypeImage, Status: models.NodeStatusSuccess, ResultURL: "/library/assets/images/n1.png"},
		},
		Groups: []*models.NodeGroup{{ID: "g1", NodeIDs: []string{"n1"}}},
	}

	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	got, err := p.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)

	assert.Equal(t, "Harbor scenes", got.Title)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, models.NodeStatusSuccess, got.Nodes[0].Status)
	require.Len(t, got.Groups, 1)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestGetWorkflow_NotFound(t *testing.T) {
	p := newTestPersistence(t)

	_, err := p.WorkflowByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestSaveWorkflow_PreservesCoverURL(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	require.NoError(t, p.SaveWorkflow(ctx, &models.Workflow{
		ID:       "wf-1",
		Title:    "First save",
		CoverURL: "/library/assets/images/cover.png",
	}))

	// A later save without a cover keeps the stored one.
	require.NoError(t, p.SaveWorkflow(ctx, &models.Workflow{
		ID:    "wf-1",
		Title: "Second save",
	}))

	got, err := p.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "/library/assets/images/cover.png", got.CoverURL)
	assert.Equal(t, "Second save", got.Title)
}

func TestSaveWorkflow_ExplicitCoverReplaces(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	require.NoError(t, p.SaveWorkflow(ctx, &models.Workflow{
		ID:       "wf-1",
		Title:    "With cover",
		CoverURL: "/library/assets/images/old.png",
	}))

	require.NoError(t, p.SaveWorkflow(ctx, &models.Workflow{
		ID:       "wf-1",
		Title:    "With new cover",
		CoverURL: "/library/assets/images/new.png",
	}))

	got, err := p.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "/library/assets/images/new.png", got.CoverURL)
}

func TestSaveWorkflow_PreservesCreatedAt(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, p.SaveWorkflow(ctx, &models.Workflow{
		ID:        "wf-1",
		Title:     "Old",
		CreatedAt: created,
	}))

	got, err := p.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, created, got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(created))

	// An in-place update without a creation time keeps the stored one
	// instead of stamping a new one.
	require.NoError(t, p.SaveWorkflow(ctx, &models.Workflow{
		ID:    "wf-1",
		Title: "New",
	}))

	got, err = p.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, "New", got.Title)
}

func TestWorkflows_SortedByUpdatedAtDescending(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	require.NoError(t, p.SaveWorkflow(ctx, &models.Workflow{ID: "older", Title: "Older"}))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, p.SaveWorkflow(ctx, &models.Workflow{ID: "newer", Title: "Newer"}))

	workflows, err := p.Workflows(ctx)
	require.NoError(t, err)
	require.Len(t, workflows, 2)

	assert.Equal(t, "newer", workflows[0].ID)
	assert.Equal(t, "older", workflows[1].ID)
}

func TestWorkflows_EmptyStore(t *testing.T) {
	p := newTestPersistence(t)

	workflows, err := p.Workflows(context.Background())
	require.NoError(t, err)
	assert.Empty(t, workflows)
}

func TestDeleteWorkflow(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	require.NoError(t, p.SaveWorkflow(ctx, &models.Workflow{ID: "wf-1", Title: "Doomed"}))
	require.NoError(t, p.DeleteWorkflow(ctx, "wf-1"))

	_, err := p.WorkflowByID(ctx, "wf-1")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	err = p.DeleteWorkflow(ctx, "wf-1")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}
