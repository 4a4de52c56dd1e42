// Package graph maintains the canvas node/edge state and answers what a
// node's effective upstream input is.
package graph

import (
	"sync"

	"github.com/google/uuid"

	"github.com/vividlab/canvasflow/pkg/models"
)

// Graph holds the nodes and groups of one canvas. All mutations are atomic
// with respect to each other; only provider calls suspend.
type Graph struct {
	mu     sync.RWMutex
	nodes  map[string]*models.Node
	order  []string // insertion order, for stable serialization
	groups map[string]*models.NodeGroup
}

func New() *Graph {
	return &Graph{
		nodes:  make(map[string]*models.Node),
		groups: make(map[string]*models.NodeGroup),
	}
}

// Load replaces the graph contents with a workflow's nodes and groups.
func Load(workflow *models.Workflow) *Graph {
	g := New()

	for _, n := range workflow.Nodes {
		copied := *n
		g.nodes[n.ID] = &copied
		g.order = append(g.order, n.ID)
	}

	for _, grp := range workflow.Groups {
		copied := *grp
		g.groups[grp.ID] = &copied
	}

	return g
}

// AddNode creates a node with status idle, empty prompt and default settings.
// parentID may be empty.
func (g *Graph) AddNode(nodeType models.NodeType, position models.Position, parentID string) *models.Node {
	g.mu.Lock()
	defer g.mu.Unlock()

	node := &models.Node{
		ID:          uuid.NewString(),
		Type:        nodeType,
		Position:    position,
		Status:      models.NodeStatusIdle,
		AspectRatio: models.SettingAuto,
		Resolution:  models.SettingAuto,
	}
	if parentID != "" {
		if _, ok := g.nodes[parentID]; ok {
			node.ParentID = parentID
			node.ParentIDs = []string{parentID}
		}
	}

	g.nodes[node.ID] = node
	g.order = append(g.order, node.ID)

	return node
}

// UpdateNode merges a partial update into a node. It returns the updated
// copy, or nil if the node does not exist. Callers other than the dispatcher
// must not move a node out of the loading status.
func (g *Graph) UpdateNode(id string, update models.NodeUpdate) *models.Node {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[id]
	if !ok {
		return nil
	}

	applyUpdate(node, update)

	copied := *node

	return &copied
}

func applyUpdate(node *models.Node, update models.NodeUpdate) {
	if update.Position != nil {
		node.Position = *update.Position
	}

	if update.Prompt != nil {
		node.Prompt = *update.Prompt
	}

	if update.Status != nil {
		node.Status = *update.Status
	}

	if update.ResultURL != nil {
		node.ResultURL = *update.ResultURL
	}

	if update.ResultAspectRatio != nil {
		node.ResultAspectRatio = *update.ResultAspectRatio
	}

	if update.LastFrame != nil {
		node.LastFrame = *update.LastFrame
	}

	if update.ParentID != nil {
		node.ParentID = *update.ParentID
	}

	if update.ParentIDs != nil {
		node.ParentIDs = *update.ParentIDs
	}

	if update.ErrorMessage != nil {
		node.ErrorMessage = *update.ErrorMessage
	}

	if update.Model != nil {
		node.Model = *update.Model
	}

	if update.AspectRatio != nil {
		node.AspectRatio = *update.AspectRatio
	}

	if update.Resolution != nil {
		node.Resolution = *update.Resolution
	}

	if update.Duration != nil {
		node.Duration = *update.Duration
	}
}

// DeleteNode removes a node. Children that pointed at it become parent-less,
// never cascade-deleted, and group membership is pruned in the same pass.
func (g *Graph) DeleteNode(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; !ok {
		return false
	}

	delete(g.nodes, id)

	for i, nodeID := range g.order {
		if nodeID == id {
			g.order = append(g.order[:i], g.order[i+1:]...)

			break
		}
	}

	for _, node := range g.nodes {
		if node.ParentID == id {
			node.ParentID = ""
		}

		if len(node.ParentIDs) > 0 {
			kept := node.ParentIDs[:0]

			for _, pid := range node.ParentIDs {
				if pid != id {
					kept = append(kept, pid)
				}
			}

			if len(kept) == 0 {
				node.ParentIDs = nil
			} else {
				node.ParentIDs = kept
			}
		}
	}

	for _, group := range g.groups {
		kept := group.NodeIDs[:0]

		for _, nodeID := range group.NodeIDs {
			if nodeID != id {
				kept = append(kept, nodeID)
			}
		}

		group.NodeIDs = kept
	}

	return true
}

// BeginLoading atomically moves a node into the loading status when it is
// ready, clearing any previous error. Returning false means the node is
// unknown or already has an outstanding job; the check and the transition
// happen under one lock so a rapid double request cannot both pass the gate.
func (g *Graph) BeginLoading(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	node, ok := g.nodes[id]
	if !ok || node.Status == models.NodeStatusLoading {
		return false
	}

	node.Status = models.NodeStatusLoading
	node.ErrorMessage = ""

	return true
}

// Node returns a copy of the node, or nil when absent.
func (g *Graph) Node(id string) *models.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[id]
	if !ok {
		return nil
	}

	copied := *node

	return &copied
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []*models.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make([]*models.Node, 0, len(g.order))

	for _, id := range g.order {
		if node, ok := g.nodes[id]; ok {
			copied := *node
			nodes = append(nodes, &copied)
		}
	}

	return nodes
}

// LoadingNodes returns the ids of all nodes currently in the loading status.
// The recovery poll derives its working set from this.
func (g *Graph) LoadingNodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ids []string

	for _, id := range g.order {
		if node, ok := g.nodes[id]; ok && node.Status == models.NodeStatusLoading {
			ids = append(ids, id)
		}
	}

	return ids
}

// Groups returns copies of all node groups.
func (g *Graph) Groups() []*models.NodeGroup {
	g.mu.RLock()
	defer g.mu.RUnlock()

	groups := make([]*models.NodeGroup, 0, len(g.groups))

	for _, group := range g.groups {
		copied := *group
		copied.NodeIDs = append([]string(nil), group.NodeIDs...)
		groups = append(groups, &copied)
	}

	return groups
}

// AddGroup creates a group over the given node ids.
func (g *Graph) AddGroup(title string, nodeIDs []string) *models.NodeGroup {
	g.mu.Lock()
	defer g.mu.Unlock()

	group := &models.NodeGroup{
		ID:      uuid.NewString(),
		Title:   title,
		NodeIDs: append([]string(nil), nodeIDs...),
	}
	g.groups[group.ID] = group

	copied := *group

	return &copied
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.nodes)
}

// Replace swaps in a workflow's nodes and groups, the "open workflow"
// operation.
func (g *Graph) Replace(workflow *models.Workflow) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[string]*models.Node, len(workflow.Nodes))
	g.groups = make(map[string]*models.NodeGroup, len(workflow.Groups))
	g.order = g.order[:0]

	for _, n := range workflow.Nodes {
		copied := *n
		g.nodes[n.ID] = &copied
		g.order = append(g.order, n.ID)
	}

	for _, grp := range workflow.Groups {
		copied := *grp
		copied.NodeIDs = append([]string(nil), grp.NodeIDs...)
		g.groups[grp.ID] = &copied
	}
}

// Reset drops all nodes and groups, the "new canvas" operation.
func (g *Graph) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[string]*models.Node)
	g.groups = make(map[string]*models.NodeGroup)
	g.order = nil
}
