// Package view renders a folder forest and tracks which folders are
// expanded. View writes the plain text form used by the tree command and the
// MCP server; Browser is the interactive terminal model built on it. Neither
// holds tree-consistency logic; all mutations go through the store.
package view

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/store"
	"github.com/starford/arbor/internal/tree"
)

// Title is printed above the tree.
const Title = "Folder Structure Viewer"

// View holds per-folder expand/collapse state. Folders start collapsed.
type View struct {
	mu       sync.Mutex
	expanded map[string]bool
	showIDs  bool
}

// Option configures a View.
type Option func(*View)

// WithIDs prints each folder's id after its name.
func WithIDs() Option {
	return func(v *View) {
		v.showIDs = true
	}
}

// New creates a View with every folder collapsed.
func New(opts ...Option) *View {
	v := &View{expanded: make(map[string]bool)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Toggle flips the expanded state of id and returns the new state.
func (v *View) Toggle(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.expanded[id] {
		delete(v.expanded, id)
		return false
	}
	v.expanded[id] = true
	return true
}

// Expand marks id as expanded.
func (v *View) Expand(id string) {
	v.mu.Lock()
	v.expanded[id] = true
	v.mu.Unlock()
}

// ExpandAll marks every folder of forest as expanded.
func (v *View) ExpandAll(forest []models.Node) {
	v.mu.Lock()
	defer v.mu.Unlock()
	tree.Walk(forest, func(n models.Node, _ int) bool {
		v.expanded[n.ID] = true
		return true
	})
}

// Collapse marks id as collapsed.
func (v *View) Collapse(id string) {
	v.mu.Lock()
	delete(v.expanded, id)
	v.mu.Unlock()
}

// IsExpanded reports whether id is expanded.
func (v *View) IsExpanded(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.expanded[id]
}

// Prune forgets the state of folders that are no longer in forest.
func (v *View) Prune(forest []models.Node) {
	present := make(map[string]struct{})
	tree.Walk(forest, func(n models.Node, _ int) bool {
		present[n.ID] = struct{}{}
		return true
	})
	v.mu.Lock()
	defer v.mu.Unlock()
	for id := range v.expanded {
		if _, ok := present[id]; !ok {
			delete(v.expanded, id)
		}
	}
}

// CanDelete reports whether a folder is offered the delete affordance.
func CanDelete(id string) bool {
	return !tree.IsRoot(id)
}

// Render writes the title, the loading indicator, the error banner and the tree.
func (v *View) Render(w io.Writer, snap store.Snapshot) error {
	ew := &errWriter{w: w}
	ew.printf("%s\n", Title)
	if snap.Status == store.StatusLoading {
		ew.printf("Loading...\n")
	}
	if snap.LastError != "" {
		ew.printf("! %s\n", snap.LastError)
	}
	v.RenderForest(ew, snap.Forest)
	return ew.err
}

// RenderForest writes only the tree part.
func (v *View) RenderForest(w io.Writer, forest []models.Node) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, n := range forest {
		v.renderNode(w, n, 0)
	}
}

func (v *View) renderNode(w io.Writer, n models.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	open := v.expanded[n.ID]
	fmt.Fprintln(w, indent+v.label(n, open))

	if !open {
		return
	}
	if len(n.Children) == 0 {
		fmt.Fprintln(w, indent+EmptyLine)
		return
	}
	for _, c := range n.Children {
		v.renderNode(w, c, depth+1)
	}
}

// EmptyLine is printed, indented, below an expanded folder without children.
const EmptyLine = "  - No folders"

// label is the one-line form of a folder: arrow, name, optional id and the
// add/delete affordances.
func (v *View) label(n models.Node, open bool) string {
	arrow := "▶"
	if open {
		arrow = "▼"
	}
	var b strings.Builder
	b.WriteString(arrow + " " + n.Name)
	if v.showIDs {
		b.WriteString(" (" + n.ID + ")")
	}
	b.WriteString("  [+ New]")
	if CanDelete(n.ID) {
		b.WriteString(" [X]")
	}
	return b.String()
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

func (e *errWriter) printf(format string, args ...any) {
	fmt.Fprintf(e, format, args...)
}
