package graph

import (
	"catalog-service/internal/catalogerr"
	"catalog-service/internal/models"
)

// BundleGraph is a snapshot of the "has component" edges between products.
type BundleGraph struct {
	components map[int64][]int64
	usedIn     map[int64][]int64
}

// NewBundleGraph indexes edges in both directions.
func NewBundleGraph(edges []models.ProductComponent) *BundleGraph {
	g := &BundleGraph{
		components: make(map[int64][]int64),
		usedIn:     make(map[int64][]int64),
	}
	for _, e := range edges {
		g.components[e.ParentID] = append(g.components[e.ParentID], e.ComponentID)
		g.usedIn[e.ComponentID] = append(g.usedIn[e.ComponentID], e.ParentID)
	}
	return g
}

// IsBundle reports whether id owns at least one component edge.
func (g *BundleGraph) IsBundle(id int64) bool {
	return len(g.components[id]) > 0
}

// ValidateEdge checks that adding parent -> component keeps the graph
// acyclic and every composition chain within maxDepth edges.
//
// The walk is a depth-first search from component with parent pre-marked
// as visited; meeting any id already on the current path is a cycle.
// Shared sub-components reached through different paths are fine.
func (g *BundleGraph) ValidateEdge(parentID, componentID int64, maxDepth int) error {
	data := map[string]any{
		"parent_id":    parentID,
		"component_id": componentID,
	}

	if parentID == componentID {
		return catalogerr.New(catalogerr.CodeSelfReference, data)
	}

	w := &walk{
		next:   g.components,
		onPath: map[int64]bool{parentID: true},
		memo:   make(map[int64]int),
	}
	below, ok := w.longest(componentID)
	if !ok {
		return catalogerr.Newf(catalogerr.CodeCircularReference, data, "Circular component reference detected")
	}

	up := &walk{
		next:   g.usedIn,
		onPath: make(map[int64]bool),
		memo:   make(map[int64]int),
	}
	above, _ := up.longest(parentID)

	// the direct edge counts as depth 1
	depth := above + 1 + below
	if depth > maxDepth {
		data["max_depth"] = maxDepth
		data["depth"] = depth
		return catalogerr.Newf(catalogerr.CodeMaxDepthExceeded, data, "Max bundle depth (%d) exceeded.", maxDepth)
	}

	return nil
}

type walk struct {
	next   map[int64][]int64
	onPath map[int64]bool
	memo   map[int64]int
}

// longest returns the number of edges on the longest chain starting at id,
// or false if a node on the current path is reached again.
func (w *walk) longest(id int64) (int, bool) {
	if w.onPath[id] {
		return 0, false
	}
	if h, ok := w.memo[id]; ok {
		return h, true
	}

	w.onPath[id] = true
	h := 0
	for _, n := range w.next[id] {
		sub, ok := w.longest(n)
		if !ok {
			return 0, false
		}
		h = max(h, sub+1)
	}
	delete(w.onPath, id)

	w.memo[id] = h
	return h, true
}
