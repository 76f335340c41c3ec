package explorer

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/pgbrowse/internal/query"
	"github.com/joacominatel/pgbrowse/internal/tui/theme"
)

// NodeKind identifies the type of a tree node.
type NodeKind int

const (
	NodeServer NodeKind = iota
	NodeDatabase
	NodeTable
)

// TreeNode is a single node in the database tree.
type TreeNode struct {
	Kind     NodeKind
	Name     string
	Database string // owning database, for tables
	Children []*TreeNode
	Expanded bool
	Loaded   bool // whether children have been fetched
}

// flatItem is a visible item in the flattened tree view.
type flatItem struct {
	node  *TreeNode
	depth int
}

// OpenTableMsg asks the app to load every row of a table.
type OpenTableMsg struct {
	Database string
	Table    string
}

// requestTablesMsg is sent when a database is expanded for the first time.
type requestTablesMsg struct {
	Database string
}

// IsRequestTablesMsg reports whether msg asks for a database's tables.
func IsRequestTablesMsg(msg tea.Msg) (database string, ok bool) {
	if m, ok := msg.(requestTablesMsg); ok {
		return m.Database, true
	}
	return "", false
}

// Model is the explorer (database tree) component.
type Model struct {
	root    *TreeNode
	items   []flatItem
	cursor  int
	width   int
	height  int
	focused bool
	loading bool
}

// New creates a new explorer model.
func New() Model {
	return Model{}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
}

// Focused returns whether the explorer has focus.
func (m Model) Focused() bool {
	return m.focused
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(l bool) {
	m.loading = l
}

// Names returns the first-column values of t that carry kind.
func Names(t *query.TypedTable, kind query.Kind) []string {
	if t == nil {
		return nil
	}
	var names []string
	for _, row := range t.Rows {
		if len(row) > 0 && row[0].Kind == kind {
			names = append(names, row[0].Value)
		}
	}
	return names
}

// SetDatabases replaces the tree with one server node holding databases.
func (m *Model) SetDatabases(server string, databases []string) {
	root := &TreeNode{
		Kind:     NodeServer,
		Name:     server,
		Expanded: true,
		Loaded:   true,
	}
	for _, db := range databases {
		root.Children = append(root.Children, &TreeNode{
			Kind: NodeDatabase,
			Name: db,
		})
	}

	m.root = root
	m.cursor = 0
	m.loading = false
	m.flatten()
}

// SetTables fills in the tables of a database.
func (m *Model) SetTables(database string, tables []string) {
	db := m.findDatabase(database)
	if db == nil {
		return
	}
	db.Children = nil
	for _, t := range tables {
		db.Children = append(db.Children, &TreeNode{
			Kind:     NodeTable,
			Name:     t,
			Database: database,
			Loaded:   true,
		})
	}
	db.Loaded = true
	m.flatten()
}

// TablesFailed collapses a database whose tables could not be loaded so the
// next expand retries.
func (m *Model) TablesFailed(database string) {
	if db := m.findDatabase(database); db != nil {
		db.Expanded = false
		db.Loaded = false
		m.flatten()
	}
}

// TableNames returns every loaded table name, for editor completion.
func (m Model) TableNames() []string {
	if m.root == nil {
		return nil
	}
	var names []string
	for _, db := range m.root.Children {
		for _, t := range db.Children {
			names = append(names, t.Name)
		}
	}
	return names
}

// SelectedDatabase returns the database under the cursor, or "" on the
// server node.
func (m Model) SelectedDatabase() string {
	node := m.selected()
	if node == nil {
		return ""
	}
	switch node.Kind {
	case NodeDatabase:
		return node.Name
	case NodeTable:
		return node.Database
	}
	return ""
}

func (m Model) selected() *TreeNode {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return nil
	}
	return m.items[m.cursor].node
}

func (m *Model) findDatabase(name string) *TreeNode {
	if m.root == nil {
		return nil
	}
	for _, db := range m.root.Children {
		if db.Name == name {
			return db
		}
	}
	return nil
}

// flatten rebuilds the flat item list from the tree.
func (m *Model) flatten() {
	m.items = nil
	if m.root != nil {
		m.flattenNode(m.root, 0)
	}
	if m.cursor >= len(m.items) {
		m.cursor = max(0, len(m.items)-1)
	}
}

func (m *Model) flattenNode(node *TreeNode, depth int) {
	m.items = append(m.items, flatItem{node: node, depth: depth})
	if node.Expanded {
		for _, child := range node.Children {
			m.flattenNode(child, depth+1)
		}
	}
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the explorer.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "enter", "right", "l":
			return m, m.activate()
		case "left", "h":
			m.collapse()
		}
	}

	return m, nil
}

func (m *Model) activate() tea.Cmd {
	node := m.selected()
	if node == nil {
		return nil
	}

	if node.Kind == NodeTable {
		db, table := node.Database, node.Name
		return func() tea.Msg {
			return OpenTableMsg{Database: db, Table: table}
		}
	}

	node.Expanded = !node.Expanded
	m.flatten()

	if node.Kind == NodeDatabase && node.Expanded && !node.Loaded {
		db := node.Name
		return func() tea.Msg {
			return requestTablesMsg{Database: db}
		}
	}
	return nil
}

// collapse folds the node under the cursor, or its parent for a table.
func (m *Model) collapse() {
	node := m.selected()
	if node == nil {
		return
	}
	if node.Kind == NodeTable {
		parent := m.findDatabase(node.Database)
		if parent == nil {
			return
		}
		parent.Expanded = false
		m.flatten()
		for i, it := range m.items {
			if it.node == parent {
				m.cursor = i
			}
		}
		return
	}
	if node.Expanded {
		node.Expanded = false
		m.flatten()
	}
}

// View renders the explorer.
func (m Model) View() string {
	title := theme.StyleTitle.Render("Databases")

	if m.loading {
		return title + "\n" + theme.StyleMuted.Render("  Loading...")
	}
	if m.root == nil {
		return title + "\n" + theme.StyleMuted.Render("  No connection")
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")

	visibleHeight := max(1, m.height-2)

	// Scroll to keep the cursor visible.
	scrollOffset := 0
	if m.cursor >= visibleHeight {
		scrollOffset = m.cursor - visibleHeight + 1
	}

	end := min(len(m.items), scrollOffset+visibleHeight)
	for i := scrollOffset; i < end; i++ {
		b.WriteString(m.renderNode(m.items[i], i == m.cursor))
		if i < end-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m Model) renderNode(item flatItem, selected bool) string {
	node := item.node
	indent := strings.Repeat("  ", item.depth)

	icon := "  "
	if node.Kind != NodeTable {
		icon = "▶ "
		if node.Expanded {
			icon = "▼ "
		}
	}

	line := indent + icon + node.Name
	if m.width > 4 && lipgloss.Width(line) > m.width-2 {
		runes := []rune(line)
		line = string(runes[:max(0, min(len(runes), m.width-4))]) + ".."
	}

	switch {
	case selected:
		return theme.StyleSelected.Render(line)
	case node.Kind == NodeDatabase:
		return theme.CellStyle(query.KindDatabaseName).Render(line)
	case node.Kind == NodeTable:
		return theme.CellStyle(query.KindTableName).Render(line)
	}
	return line
}
