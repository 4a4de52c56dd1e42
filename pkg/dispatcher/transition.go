package dispatcher

import (
	"github.com/vividlab/canvasflow/pkg/graph"
	"github.com/vividlab/canvasflow/pkg/models"
)

// ApplySuccess is the single authoritative success transition. Both the
// dispatcher's own write path and the recovery poll go through it, so the
// two sources of "is this node done" can never diverge. It is idempotent: a
// node already successful with the same result is left untouched.
func ApplySuccess(g *graph.Graph, nodeID, resultURL, aspectRatio string) bool {
	node := g.Node(nodeID)
	if node == nil {
		return false
	}

	if node.Status == models.NodeStatusSuccess && node.ResultURL == resultURL {
		return false
	}

	status := models.NodeStatusSuccess
	empty := ""

	update := models.NodeUpdate{
		Status:       &status,
		ResultURL:    &resultURL,
		ErrorMessage: &empty,
	}

	// The recorded aspect ratio locks the node's visual size; it is only
	// recomputed when the result itself changed.
	if node.ResultAspectRatio == "" || node.ResultURL != resultURL {
		if aspectRatio != "" {
			update.ResultAspectRatio = &aspectRatio
		}
	}

	return g.UpdateNode(nodeID, update) != nil
}

// ApplyFailure transitions a node to the error status with a user-facing
// message. The prompt, settings and edges are left intact for a retry.
func ApplyFailure(g *graph.Graph, nodeID, message string) bool {
	status := models.NodeStatusError

	return g.UpdateNode(nodeID, models.NodeUpdate{
		Status:       &status,
		ErrorMessage: &message,
	}) != nil
}

// ApplyLoading gates entry into the loading status. It returns false when
// the node is unknown or already loading, which is what prevents a second
// outstanding provider call per node.
func ApplyLoading(g *graph.Graph, nodeID string) bool {
	return g.BeginLoading(nodeID)
}
