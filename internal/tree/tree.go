// Package tree implements the pure transforms that keep a folder forest
// consistent with confirmed folder service mutations.
//
// None of the functions mutate their input. Results share unchanged subtrees
// with the input but never its modified slices, so a caller may keep an old
// forest around while a new one is produced from it.
package tree

import "github.com/starford/arbor/internal/models"

// RootID is the id of the sentinel folder that can never be deleted.
const RootID = "root"

// IsRoot reports whether id names the root sentinel.
func IsRoot(id string) bool {
	return id == RootID
}

// Build turns a flat record list into a forest.
//
// Children keep the input order. A record whose parent is missing from the
// input is promoted to a root at its input position. Records repeating an
// id already seen are ignored, and records that only reach a root through a
// parent cycle are dropped.
func Build(records []models.Record) []models.Node {
	first := make(map[string]int, len(records))
	for i, r := range records {
		if _, seen := first[r.ID]; !seen {
			first[r.ID] = i
		}
	}

	children := make(map[string][]int)
	roots := make([]int, 0)
	for i, r := range records {
		if first[r.ID] != i {
			continue
		}
		if r.ParentID != nil {
			if _, ok := first[*r.ParentID]; ok {
				children[*r.ParentID] = append(children[*r.ParentID], i)
				continue
			}
		}
		roots = append(roots, i)
	}

	// Every attached record has exactly one parent, so walking down from
	// the roots can never revisit a node.
	var materialize func(i int) models.Node
	materialize = func(i int) models.Node {
		r := records[i]
		kids := children[r.ID]
		n := models.Node{ID: r.ID, Name: r.Name, Children: make([]models.Node, 0, len(kids))}
		for _, c := range kids {
			n.Children = append(n.Children, materialize(c))
		}
		return n
	}

	forest := make([]models.Node, 0, len(roots))
	for _, i := range roots {
		forest = append(forest, materialize(i))
	}
	return forest
}

// InsertUnder returns a forest in which n is the last child of the node
// whose id is *parentID. A nil parentID appends n as a new root. When no
// node matches, forest is returned unchanged.
func InsertUnder(forest []models.Node, parentID *string, n models.Node) []models.Node {
	if parentID == nil {
		return appendCopy(forest, n)
	}
	out, ok := insert(forest, *parentID, n)
	if !ok {
		return forest
	}
	return out
}

func insert(forest []models.Node, parentID string, n models.Node) ([]models.Node, bool) {
	for i, node := range forest {
		if node.ID == parentID {
			node.Children = appendCopy(node.Children, n)
			return replaceAt(forest, i, node), true
		}
		if kids, ok := insert(node.Children, parentID, n); ok {
			node.Children = kids
			return replaceAt(forest, i, node), true
		}
	}
	return nil, false
}

// RemoveSubtree returns a forest without the node whose id is targetID and
// without any of its descendants. Unknown ids leave forest unchanged.
func RemoveSubtree(forest []models.Node, targetID string) []models.Node {
	out, ok := remove(forest, targetID)
	if !ok {
		return forest
	}
	return out
}

func remove(forest []models.Node, targetID string) ([]models.Node, bool) {
	for i, node := range forest {
		if node.ID == targetID {
			out := make([]models.Node, 0, len(forest)-1)
			out = append(out, forest[:i]...)
			return append(out, forest[i+1:]...), true
		}
		if kids, ok := remove(node.Children, targetID); ok {
			node.Children = kids
			return replaceAt(forest, i, node), true
		}
	}
	return nil, false
}

// Find returns the node with the given id, searching depth-first.
func Find(forest []models.Node, id string) (models.Node, bool) {
	var found models.Node
	var ok bool
	Walk(forest, func(n models.Node, _ int) bool {
		if n.ID == id {
			found, ok = n, true
			return false
		}
		return true
	})
	return found, ok
}

// Children returns the children of parentID, or the top-level nodes when
// parentID is nil. ok is false when parentID names no node.
func Children(forest []models.Node, parentID *string) ([]models.Node, bool) {
	if parentID == nil {
		return forest, true
	}
	parent, ok := Find(forest, *parentID)
	if !ok {
		return nil, false
	}
	return parent.Children, true
}

// Added returns the last child of parentID in after when before has no node
// with its id. It identifies the folder a confirmed create appended.
func Added(before, after []models.Node, parentID *string) (models.Node, bool) {
	siblings, ok := Children(after, parentID)
	if !ok || len(siblings) == 0 {
		return models.Node{}, false
	}
	last := siblings[len(siblings)-1]
	if _, existed := Find(before, last.ID); existed {
		return models.Node{}, false
	}
	return last, true
}

// Flatten returns every id in depth-first pre-order.
func Flatten(forest []models.Node) []string {
	ids := make([]string, 0)
	Walk(forest, func(n models.Node, _ int) bool {
		ids = append(ids, n.ID)
		return true
	})
	return ids
}

// Walk visits nodes depth-first in pre-order, passing each node's depth
// (roots are 0). Returning false from fn stops the walk.
func Walk(forest []models.Node, fn func(n models.Node, depth int) bool) {
	walk(forest, 0, fn)
}

func walk(forest []models.Node, depth int, fn func(models.Node, int) bool) bool {
	for _, n := range forest {
		if !fn(n, depth) {
			return false
		}
		if !walk(n.Children, depth+1, fn) {
			return false
		}
	}
	return true
}

func appendCopy(s []models.Node, n models.Node) []models.Node {
	out := make([]models.Node, len(s), len(s)+1)
	copy(out, s)
	return append(out, n)
}

func replaceAt(s []models.Node, i int, n models.Node) []models.Node {
	out := make([]models.Node, len(s))
	copy(out, s)
	out[i] = n
	return out
}
