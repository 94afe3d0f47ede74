// Package graph implements the two mutable graphs of the catalog over
// in-memory snapshots: the collection forest (parent links) and the bundle
// composition graph (parent/component edges). Callers load the relevant rows
// once and validate or traverse here, instead of querying per step.
package graph

import (
	"sort"
	"strings"

	"catalog-service/internal/catalogerr"
	"catalog-service/internal/models"
)

// PathSeparator joins collection names in FullPath.
const PathSeparator = " > "

// Forest is a snapshot of the collection hierarchy.
type Forest struct {
	byID     map[int64]models.Collection
	children map[int64][]int64
}

// NewForest indexes cols by id and by parent.
func NewForest(cols []models.Collection) *Forest {
	f := &Forest{
		byID:     make(map[int64]models.Collection, len(cols)),
		children: make(map[int64][]int64),
	}
	for _, c := range cols {
		f.byID[c.ID] = c
	}

	sorted := make([]models.Collection, len(cols))
	copy(sorted, cols)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SortOrder != sorted[j].SortOrder {
			return sorted[i].SortOrder < sorted[j].SortOrder
		}
		return sorted[i].Name < sorted[j].Name
	})
	for _, c := range sorted {
		if c.ParentID != nil {
			f.children[*c.ParentID] = append(f.children[*c.ParentID], c.ID)
		}
	}

	return f
}

// Get returns the collection with the given id.
func (f *Forest) Get(id int64) (models.Collection, bool) {
	c, ok := f.byID[id]
	return c, ok
}

// ValidateParent checks that giving collection id the parent parentID keeps
// the forest acyclic and no deeper than maxDepth levels. Depth counts every
// collection on the longest root-to-leaf chain through id after the change,
// so a subtree being moved carries its own height with it. id may be 0 for
// a collection that does not exist yet.
func (f *Forest) ValidateParent(id int64, parentID *int64, maxDepth int) error {
	if parentID == nil {
		return nil
	}

	data := map[string]any{
		"collection": f.slug(id),
		"parent":     f.slug(*parentID),
	}

	if *parentID == id {
		return catalogerr.Newf(catalogerr.CodeCircularReference, data, "Collection cannot be its own parent.")
	}

	visited := map[int64]bool{id: true}
	depth := 1
	current := parentID
	for current != nil {
		if visited[*current] {
			return catalogerr.Newf(catalogerr.CodeCircularReference, data, "Circular reference detected.")
		}
		visited[*current] = true
		depth++

		c, ok := f.byID[*current]
		if !ok {
			break
		}
		current = c.ParentID
	}

	depth += f.height(id, map[int64]bool{})
	if depth > maxDepth {
		data["max_depth"] = maxDepth
		data["depth"] = depth
		return catalogerr.Newf(catalogerr.CodeMaxDepthExceeded, data, "Max collection depth (%d) exceeded.", maxDepth)
	}

	return nil
}

// Ancestors returns the ancestors of id ordered from the root down to the
// immediate parent, walking at most maxDepth parent links.
func (f *Forest) Ancestors(id int64, maxDepth int) []models.Collection {
	c, ok := f.byID[id]
	if !ok {
		return nil
	}

	var chain []models.Collection
	visited := map[int64]bool{id: true}
	current := c.ParentID
	for current != nil && len(chain) < maxDepth {
		if visited[*current] {
			break
		}
		visited[*current] = true

		parent, ok := f.byID[*current]
		if !ok {
			break
		}
		chain = append(chain, parent)
		current = parent.ParentID
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Descendants returns every collection reachable from id through child
// links, at most maxDepth levels down. id itself is never included.
func (f *Forest) Descendants(id int64, maxDepth int) []models.Collection {
	var out []models.Collection
	visited := map[int64]bool{id: true}
	frontier := []int64{id}

	for level := 0; level < maxDepth && len(frontier) > 0; level++ {
		var next []int64
		for _, node := range frontier {
			for _, child := range f.children[node] {
				if visited[child] {
					continue
				}
				visited[child] = true
				out = append(out, f.byID[child])
				next = append(next, child)
			}
		}
		frontier = next
	}

	return out
}

// FullPath renders "Root > Child > id".
func (f *Forest) FullPath(id int64) string {
	c, ok := f.byID[id]
	if !ok {
		return ""
	}

	ancestors := f.Ancestors(id, len(f.byID))
	names := make([]string, 0, len(ancestors)+1)
	for _, a := range ancestors {
		names = append(names, a.Name)
	}
	names = append(names, c.Name)

	return strings.Join(names, PathSeparator)
}

// Depth is the number of ancestors of id (0 for a root).
func (f *Forest) Depth(id int64) int {
	return len(f.Ancestors(id, len(f.byID)))
}

// height is the number of levels below id.
func (f *Forest) height(id int64, visited map[int64]bool) int {
	if visited[id] {
		return 0
	}
	visited[id] = true

	h := 0
	for _, child := range f.children[id] {
		h = max(h, 1+f.height(child, visited))
	}
	return h
}

func (f *Forest) slug(id int64) string {
	if c, ok := f.byID[id]; ok {
		return c.Slug
	}
	return ""
}
