package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/starford/arbor/internal/models"
	"github.com/starford/arbor/internal/store"
	"github.com/starford/arbor/internal/tree"
)

// Messages shown in the status line.
const (
	MsgNameRequired  = "Folder name is required."
	MsgRootProtected = "The root folder cannot be deleted."
	MsgCancelled     = "Cancelled."
)

type mode int

const (
	browsing mode = iota
	adding
	confirming
)

type storeOp int

const (
	opLoad storeOp = iota
	opCreate
	opDelete
)

// opDoneMsg reports that a store operation has been applied.
type opDoneMsg struct {
	op       storeOp
	parentID string
}

// row is a visible folder line.
type row struct {
	node  models.Node
	depth int
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	openStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	emptyStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	loadingStyle = lipgloss.NewStyle().Faint(true).Italic(true)
	dialogBorder = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

const (
	chromeLines   = 8 // title, banners, status and help around the tree
	scrollMinimum = 3
)

// Browser is the interactive tree: it turns key presses into expand/collapse
// state and store operations, and re-renders from the store's snapshot.
type Browser struct {
	store *store.Store
	view  *View
	keys  KeyMap
	help  help.Model

	cursor       int
	scrollOffset int
	height       int

	mode     mode
	input    textinput.Model
	confirm  Confirm
	parentID string
	targetID string
	status   string
}

// NewBrowser creates a browser over s using v for expand state and labels.
func NewBrowser(s *store.Store, v *View) Browser {
	ti := textinput.New()
	ti.Placeholder = "Folder name"
	ti.CharLimit = 255
	ti.Prompt = "Folder name: "

	return Browser{
		store:   s,
		view:    v,
		keys:    keys,
		help:    help.New(),
		input:   ti,
		confirm: NewConfirm(),
	}
}

// Init loads the folders once.
func (b Browser) Init() tea.Cmd {
	return awaitOp(b.store.Load(), opDoneMsg{op: opLoad})
}

// awaitOp turns a store completion channel into a message.
func awaitOp(done <-chan struct{}, msg opDoneMsg) tea.Cmd {
	return func() tea.Msg {
		<-done
		return msg
	}
}

// Update implements tea.Model.
func (b Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.height = msg.Height
		b.help.Width = msg.Width
		b.adjustScroll()
		return b, nil

	case opDoneMsg:
		forest := b.store.Snapshot().Forest
		switch msg.op {
		case opCreate:
			b.view.Expand(msg.parentID)
		case opLoad, opDelete:
			b.view.Prune(forest)
		}
		b.clampCursor()
		return b, nil

	case ConfirmedMsg:
		b.mode = browsing
		id := b.targetID
		b.targetID = ""
		return b, awaitOp(b.store.DeleteFolder(id), opDoneMsg{op: opDelete})

	case CancelledMsg:
		b.mode = browsing
		b.targetID = ""
		b.status = MsgCancelled
		return b, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return b, tea.Quit
		}
		switch b.mode {
		case adding:
			return b.updateAdding(msg)
		case confirming:
			var cmd tea.Cmd
			b.confirm, cmd = b.confirm.Update(msg)
			return b, cmd
		}
		return b.updateBrowsing(msg)
	}

	if b.mode == adding {
		var cmd tea.Cmd
		b.input, cmd = b.input.Update(msg)
		return b, cmd
	}
	return b, nil
}

func (b Browser) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := b.rows()
	b.status = ""

	switch {
	case key.Matches(msg, b.keys.Quit):
		return b, tea.Quit
	case key.Matches(msg, b.keys.Up):
		if b.cursor > 0 {
			b.cursor--
			b.adjustScroll()
		}
	case key.Matches(msg, b.keys.Down):
		if b.cursor < len(rows)-1 {
			b.cursor++
			b.adjustScroll()
		}
	case key.Matches(msg, b.keys.Toggle):
		if r, ok := b.selected(rows); ok {
			b.view.Toggle(r.node.ID)
		}
	case key.Matches(msg, b.keys.Expand):
		if r, ok := b.selected(rows); ok {
			b.view.Expand(r.node.ID)
		}
	case key.Matches(msg, b.keys.Collapse):
		if r, ok := b.selected(rows); ok {
			b.view.Collapse(r.node.ID)
		}
	case key.Matches(msg, b.keys.ExpandAll):
		b.view.ExpandAll(b.store.Snapshot().Forest)
	case key.Matches(msg, b.keys.Reload):
		return b, awaitOp(b.store.Load(), opDoneMsg{op: opLoad})
	case key.Matches(msg, b.keys.Add):
		r, ok := b.selected(rows)
		if !ok {
			return b, nil
		}
		b.mode = adding
		b.parentID = r.node.ID
		b.input.Reset()
		return b, b.input.Focus()
	case key.Matches(msg, b.keys.Delete):
		r, ok := b.selected(rows)
		if !ok {
			return b, nil
		}
		if !CanDelete(r.node.ID) {
			b.status = MsgRootProtected
			return b, nil
		}
		b.mode = confirming
		b.targetID = r.node.ID
		b.confirm.Activate(fmt.Sprintf("Delete %q?", r.node.Name))
	}
	return b, nil
}

func (b Browser) updateAdding(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		b.mode = browsing
		b.input.Blur()
		b.status = MsgCancelled
		return b, nil
	case tea.KeyEnter:
		name := strings.TrimSpace(b.input.Value())
		if name == "" {
			b.status = MsgNameRequired
			return b, nil
		}
		b.mode = browsing
		b.input.Blur()
		b.status = ""
		parentID := b.parentID
		return b, awaitOp(b.store.CreateFolder(name, &parentID), opDoneMsg{op: opCreate, parentID: parentID})
	}
	var cmd tea.Cmd
	b.input, cmd = b.input.Update(msg)
	return b, cmd
}

// View implements tea.Model.
func (b Browser) View() string {
	snap := b.store.Snapshot()
	var out strings.Builder

	out.WriteString(titleStyle.Render(Title) + "\n")
	if snap.Status == store.StatusLoading {
		out.WriteString(loadingStyle.Render("Loading...") + "\n")
	}
	if snap.LastError != "" {
		out.WriteString(errorStyle.Render("! "+snap.LastError) + "\n")
	}
	out.WriteString("\n")

	rows := b.rowsOf(snap.Forest)
	if len(rows) == 0 && snap.Status != store.StatusLoading {
		out.WriteString(emptyStyle.Render("No folders") + "\n")
	}
	start, end := b.window(len(rows))
	for i := start; i < end; i++ {
		out.WriteString(b.renderRow(rows[i], i == b.cursor))
	}

	if b.status != "" {
		out.WriteString("\n" + statusStyle.Render(b.status) + "\n")
	}

	switch b.mode {
	case adding:
		title := fmt.Sprintf("Add folder in %q", b.nameOf(snap.Forest, b.parentID))
		out.WriteString("\n" + dialogBorder.Render(title+"\n"+b.input.View()) + "\n")
	case confirming:
		if v := b.confirm.View(); v != "" {
			out.WriteString("\n" + v + "\n")
		}
	}

	out.WriteString("\n" + b.help.View(b.keys))
	return out.String()
}

func (b Browser) renderRow(r row, selected bool) string {
	gutter := "  "
	if selected {
		gutter = cursorStyle.Render("> ")
	}
	indent := strings.Repeat("  ", r.depth)
	open := b.view.IsExpanded(r.node.ID)

	label := b.view.label(r.node, open)
	if open {
		label = openStyle.Render(label)
	}
	line := gutter + indent + label + "\n"
	if open && len(r.node.Children) == 0 {
		line += "  " + indent + emptyStyle.Render(EmptyLine) + "\n"
	}
	return line
}

func (b Browser) rows() []row {
	return b.rowsOf(b.store.Snapshot().Forest)
}

// rowsOf lists the folders visible under the current expand state.
func (b Browser) rowsOf(forest []models.Node) []row {
	var out []row
	var walk func(nodes []models.Node, depth int)
	walk = func(nodes []models.Node, depth int) {
		for _, n := range nodes {
			out = append(out, row{node: n, depth: depth})
			if b.view.IsExpanded(n.ID) {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(forest, 0)
	return out
}

func (b Browser) selected(rows []row) (row, bool) {
	if b.cursor < 0 || b.cursor >= len(rows) {
		return row{}, false
	}
	return rows[b.cursor], true
}

func (b Browser) nameOf(forest []models.Node, id string) string {
	if n, ok := tree.Find(forest, id); ok {
		return n.Name
	}
	return id
}

func (b *Browser) clampCursor() {
	n := len(b.rows())
	if b.cursor >= n {
		b.cursor = n - 1
	}
	if b.cursor < 0 {
		b.cursor = 0
	}
	b.adjustScroll()
}

func (b Browser) viewportHeight() int {
	if b.height == 0 {
		return 0
	}
	h := b.height - chromeLines
	if h < scrollMinimum {
		h = scrollMinimum
	}
	return h
}

func (b *Browser) adjustScroll() {
	h := b.viewportHeight()
	if h == 0 {
		b.scrollOffset = 0
		return
	}
	if b.cursor < b.scrollOffset {
		b.scrollOffset = b.cursor
	} else if b.cursor >= b.scrollOffset+h {
		b.scrollOffset = b.cursor - h + 1
	}
	if b.scrollOffset < 0 {
		b.scrollOffset = 0
	}
}

// window returns the slice of rows that fits the terminal.
func (b Browser) window(n int) (int, int) {
	h := b.viewportHeight()
	if h == 0 {
		return 0, n
	}
	start := b.scrollOffset
	if start > n {
		start = n
	}
	end := start + h
	if end > n {
		end = n
	}
	return start, end
}
