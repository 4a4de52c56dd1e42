package models

import "time"

// Workflow is the durable unit of persistence: a full canvas graph plus its
// groups. The workflow exclusively owns its node and group arrays; nodes do
// not exist outside a workflow.
type Workflow struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"     validate:"required,min=1"`
	Nodes     []*Node      `json:"nodes"`
	Groups    []*NodeGroup `json:"groups"`
	CoverURL  string       `json:"coverUrl,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
