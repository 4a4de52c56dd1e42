// Package models defines the core domain models for the canvas node graph.
package models

// NodeType represents the kind of generation unit a node is.
type NodeType string

const (
	NodeTypeText              NodeType = "text"
	NodeTypeImage             NodeType = "image"
	NodeTypeVideo             NodeType = "video"
	NodeTypeAudio             NodeType = "audio"
	NodeTypeImageEditor       NodeType = "image-editor"
	NodeTypeStoryboardManager NodeType = "storyboard-manager"
)

// NodeStatus defines the generation lifecycle state of a node.
type NodeStatus string

const (
	NodeStatusIdle    NodeStatus = "idle"
	NodeStatusLoading NodeStatus = "loading" // Exclusive: no second generation may start
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusError   NodeStatus = "error"
)

// Position is a node's location in canvas space. It never affects generation
// semantics.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SettingAuto is the sentinel for aspect-ratio/resolution settings that defer
// the choice to the resolution logic. It is a real value, never "unset".
const SettingAuto = "Auto"

// Node is a single generation unit in the canvas graph.
type Node struct {
	ID       string     `json:"id"       validate:"required"`
	Type     NodeType   `json:"type"     validate:"required"`
	Position Position   `json:"position"`
	Prompt   string     `json:"prompt"`
	Status   NodeStatus `json:"status"`

	// ResultURL is set only on success; either a data URI or a library path.
	ResultURL string `json:"resultUrl,omitempty"`
	// ResultAspectRatio is recorded on the first successful result and only
	// recomputed when ResultURL changes.
	ResultAspectRatio string `json:"resultAspectRatio,omitempty"`
	// LastFrame holds a still of the final video frame, video nodes only.
	LastFrame string `json:"lastFrame,omitempty"`

	ParentID  string   `json:"parentId,omitempty"`
	ParentIDs []string `json:"parentIds,omitempty"`

	ErrorMessage string `json:"errorMessage,omitempty"`

	Model       string `json:"model,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	Duration    int    `json:"duration,omitempty"`
}

// Parents returns the upstream edges in composition order. ParentIDs wins
// over the single ParentID when both are present.
func (n *Node) Parents() []string {
	if len(n.ParentIDs) > 0 {
		return n.ParentIDs
	}

	if n.ParentID != "" {
		return []string{n.ParentID}
	}

	return nil
}

// Ready reports whether the node may accept a generation request.
func (n *Node) Ready() bool {
	return n.Status != NodeStatusLoading
}

// NodeGroup is a visual grouping of node ids. Dangling references are pruned
// when member nodes are deleted.
type NodeGroup struct {
	ID      string   `json:"id"`
	Title   string   `json:"title,omitempty"`
	NodeIDs []string `json:"nodeIds"`
}

// NodeUpdate carries a partial node mutation. Nil fields are left untouched.
// Status transitions are reserved for the dispatcher.
type NodeUpdate struct {
	Position          *Position   `json:"position,omitempty"`
	Prompt            *string     `json:"prompt,omitempty"`
	Status            *NodeStatus `json:"status,omitempty"`
	ResultURL         *string     `json:"resultUrl,omitempty"`
	ResultAspectRatio *string     `json:"resultAspectRatio,omitempty"`
	LastFrame         *string     `json:"lastFrame,omitempty"`
	ParentID          *string     `json:"parentId,omitempty"`
	ParentIDs         *[]string   `json:"parentIds,omitempty"`
	ErrorMessage      *string     `json:"errorMessage,omitempty"`
	Model             *string     `json:"model,omitempty"`
	AspectRatio       *string     `json:"aspectRatio,omitempty"`
	Resolution        *string     `json:"resolution,omitempty"`
	Duration          *int        `json:"duration,omitempty"`
}
