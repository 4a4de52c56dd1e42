package graph

import "github.com/vividlab/canvasflow/pkg/models"

// ResolveUpstreamImages resolves the effective image inputs for a node. For
// each parent edge it walks upward through the chain until it finds a node
// with a result, so a text node interposed between two image nodes is
// transparently skipped. Returns up to maxImages references in parent order.
// It never fails; an unresolvable chain simply contributes nothing.
func (g *Graph) ResolveUpstreamImages(nodeID string, maxImages int) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[nodeID]
	if !ok {
		return nil
	}

	var images []string

	for _, parentID := range node.Parents() {
		if maxImages > 0 && len(images) >= maxImages {
			break
		}

		if ref := g.nearestResult(parentID); ref != "" {
			images = append(images, ref)
		}
	}

	return images
}

// nearestResult walks up a single-parent chain from id and returns the first
// result it finds. Callers hold at least a read lock. The visited set guards
// against malformed persisted graphs; by construction the graph is acyclic.
func (g *Graph) nearestResult(id string) string {
	visited := make(map[string]bool)

	for id != "" && !visited[id] {
		visited[id] = true

		node, ok := g.nodes[id]
		if !ok {
			return ""
		}

		if node.ResultURL != "" {
			return node.ResultURL
		}

		parents := node.Parents()
		if len(parents) == 0 {
			return ""
		}

		id = parents[0]
	}

	return ""
}

// ResolveVideoInput resolves the input image for a video node. A video chain
// continues from its tail: when the direct parent is itself a video node with
// an extracted last frame, that frame wins over the parent's result URL.
func (g *Graph) ResolveVideoInput(nodeID string) string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, ok := g.nodes[nodeID]
	if !ok {
		return ""
	}

	parents := node.Parents()
	if len(parents) == 0 {
		return ""
	}

	parent, ok := g.nodes[parents[0]]
	if !ok {
		return ""
	}

	if parent.Type == models.NodeTypeVideo && parent.LastFrame != "" {
		return parent.LastFrame
	}

	if parent.ResultURL != "" {
		return parent.ResultURL
	}

	return g.nearestResult(parents[0])
}

// Connect creates an edge from parent to child. When the parent is a text
// node with a non-empty prompt, the child's prompt is seeded with it: a
// one-time copy, not a live binding.
func (g *Graph) Connect(parentID, childID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	parent, ok := g.nodes[parentID]
	if !ok {
		return false
	}

	child, ok := g.nodes[childID]
	if !ok || parentID == childID {
		return false
	}

	for _, existing := range child.ParentIDs {
		if existing == parentID {
			return true
		}
	}

	child.ParentIDs = append(child.ParentIDs, parentID)
	if child.ParentID == "" {
		child.ParentID = parentID
	}

	if parent.Type == models.NodeTypeText && parent.Prompt != "" {
		child.Prompt = parent.Prompt
	}

	return true
}

// InsertBefore splices newID into the chain ahead of beforeID: the new node
// inherits the target's first parent edge and the target is repointed at the
// new node. On a multi-parent target only the first edge in ParentIDs order
// is re-targeted; remaining composition inputs are preserved.
func (g *Graph) InsertBefore(newID, beforeID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	inserted, ok := g.nodes[newID]
	if !ok {
		return false
	}

	target, ok := g.nodes[beforeID]
	if !ok || newID == beforeID {
		return false
	}

	parents := target.Parents()
	if len(parents) > 0 {
		inserted.ParentID = parents[0]
		inserted.ParentIDs = []string{parents[0]}
	} else {
		inserted.ParentID = ""
		inserted.ParentIDs = nil
	}

	target.ParentID = newID

	if len(target.ParentIDs) > 0 {
		target.ParentIDs[0] = newID
	} else {
		target.ParentIDs = []string{newID}
	}

	return true
}
