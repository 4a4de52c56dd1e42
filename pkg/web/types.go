// Package web provides HTTP request and response types for the canvas API.
package web

import "github.com/vividlab/canvasflow/pkg/models"

// CreateNodeRequest represents the request body for adding a node to the
// canvas.
type CreateNodeRequest struct {
	Type     models.NodeType `json:"type"     validate:"required,oneof=text image video audio image-editor storyboard-manager"`
	Position models.Position `json:"position"`
	ParentID string          `json:"parentId,omitempty"`
}

// UpdateNodeRequest represents the request body for a partial node update.
// Status, result URL, and error message are owned by the dispatcher and
// cannot be set here.
type UpdateNodeRequest struct {
	Position    *models.Position `json:"position,omitempty"`
	Prompt      *string          `json:"prompt,omitempty"`
	Model       *string          `json:"model,omitempty"`
	AspectRatio *string          `json:"aspectRatio,omitempty"`
	Resolution  *string          `json:"resolution,omitempty"`
	Duration    *int             `json:"duration,omitempty"`
}

// ConnectRequest represents the request body for adding an edge between two
// canvas nodes.
type ConnectRequest struct {
	ParentID string `json:"parentId" validate:"required"`
	ChildID  string `json:"childId"  validate:"required"`
}

// InsertBeforeRequest represents the request body for splicing a node into
// an existing edge.
type InsertBeforeRequest struct {
	NodeID   string `json:"nodeId"   validate:"required"`
	BeforeID string `json:"beforeId" validate:"required"`
}

// SaveWorkflowRequest represents the request body for saving the live
// canvas as a workflow document.
type SaveWorkflowRequest struct {
	Title    string `json:"title,omitempty"`
	CoverURL string `json:"coverUrl,omitempty"`
}

// SessionResponse describes the live canvas state.
type SessionResponse struct {
	WorkflowID string              `json:"workflowId,omitempty"`
	Title      string              `json:"title"`
	Dirty      bool                `json:"dirty"`
	Nodes      []*models.Node      `json:"nodes"`
	Groups     []*models.NodeGroup `json:"groups"`
}
