package recovery

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vividlab/canvasflow/pkg/graph"
	"github.com/vividlab/canvasflow/pkg/models"
)

// fakeChecker serves per-id canned statuses and can fail wholesale.
type fakeChecker struct {
	statuses map[string]*models.GenerationStatus
	err      error
	lookups  []string
}

func (f *fakeChecker) Lookup(id string) (*models.GenerationStatus, error) {
	f.lookups = append(f.lookups, id)

	if f.err != nil {
		return nil, f.err
	}

	if status, ok := f.statuses[id]; ok {
		return status, nil
	}

	return &models.GenerationStatus{Status: "pending"}, nil
}

func loadingNode(t *testing.T, g *graph.Graph) *models.Node {
	t.Helper()

	node := g.AddNode(models.NodeTypeImage, models.Position{}, "")
	require.True(t, g.BeginLoading(node.ID))

	return node
}

func TestTick_RecoversCompletedNode(t *testing.T) {
	g := graph.New()
	node := loadingNode(t, g)

	checker := &fakeChecker{statuses: map[string]*models.GenerationStatus{
		node.ID: {Status: "success", ResultURL: "/library/assets/images/" + node.ID + ".png", Type: models.AssetKindImages},
	}}

	poller := NewPoller(g, checker, 0, slog.Default())
	poller.Tick()

	got := g.Node(node.ID)
	assert.Equal(t, models.NodeStatusSuccess, got.Status)
	assert.Equal(t, "/library/assets/images/"+node.ID+".png", got.ResultURL)
	assert.Empty(t, got.ErrorMessage)
}

func TestTick_PendingNodeStaysLoading(t *testing.T) {
	g := graph.New()
	node := loadingNode(t, g)

	poller := NewPoller(g, &fakeChecker{}, 0, slog.Default())
	poller.Tick()

	// No client-driven failure timeout: a job with no persisted result is
	// still pending, however long it has been.
	assert.Equal(t, models.NodeStatusLoading, g.Node(node.ID).Status)
}

func TestTick_LookupErrorSkipsTickWithoutCrashing(t *testing.T) {
	g := graph.New()
	node := loadingNode(t, g)

	checker := &fakeChecker{err: errors.New("status endpoint unreachable")}

	poller := NewPoller(g, checker, 0, slog.Default())
	poller.Tick()

	assert.Equal(t, models.NodeStatusLoading, g.Node(node.ID).Status)
}

func TestTick_OnlyLoadingNodesAreChecked(t *testing.T) {
	g := graph.New()
	loading := loadingNode(t, g)
	g.AddNode(models.NodeTypeImage, models.Position{}, "") // idle, never looked up

	checker := &fakeChecker{}

	poller := NewPoller(g, checker, 0, slog.Default())
	poller.Tick()

	assert.Equal(t, []string{loading.ID}, checker.lookups)
}

func TestTick_RecoveredNodeDropsOutOfNextTick(t *testing.T) {
	g := graph.New()
	node := loadingNode(t, g)

	checker := &fakeChecker{statuses: map[string]*models.GenerationStatus{
		node.ID: {Status: "success", ResultURL: "/library/assets/videos/" + node.ID + ".mp4", Type: models.AssetKindVideos},
	}}

	poller := NewPoller(g, checker, 0, slog.Default())
	poller.Tick()
	poller.Tick()

	assert.Len(t, checker.lookups, 1)
}
