package results

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/pgbrowse/internal/database"
	"github.com/joacominatel/pgbrowse/internal/query"
	"github.com/joacominatel/pgbrowse/internal/router"
	"github.com/joacominatel/pgbrowse/internal/tui/theme"
)

const maxColumnWidth = 40

// Model is the results pane. It shows the last envelope the router sent.
type Model struct {
	env       *router.Envelope
	width     int
	height    int
	focused   bool
	loading   bool
	colWidths []int

	cursorY int
	cursorX int
	offsetY int

	statusMessage string
}

// New creates a new results model.
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

// SetLoading sets the loading state.
func (m *Model) SetLoading(l bool) {
	m.loading = l
}

// SetEnvelope displays env. Failed envelopes show only the generic message.
func (m *Model) SetEnvelope(env router.Envelope) {
	m.env = &env
	m.loading = false
	m.cursorY, m.cursorX, m.offsetY = 0, 0, 0
	m.statusMessage = ""
	m.calculateColumnWidths()
}

// Envelope returns the envelope on display, if any.
func (m Model) Envelope() (router.Envelope, bool) {
	if m.env == nil {
		return router.Envelope{}, false
	}
	return *m.env, true
}

// TakeStatus returns and clears the pending status-bar message.
func (m *Model) TakeStatus() string {
	s := m.statusMessage
	m.statusMessage = ""
	return s
}

func (m Model) table() *query.TypedTable {
	if m.env == nil || !m.env.OK() {
		return nil
	}
	return m.env.Table
}

func (m *Model) calculateColumnWidths() {
	t := m.table()
	if t == nil || len(t.Columns) == 0 {
		m.colWidths = nil
		return
	}

	m.colWidths = make([]int, len(t.Columns))
	for i, col := range t.Columns {
		m.colWidths[i] = lipgloss.Width(col)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(m.colWidths) {
				m.colWidths[i] = max(m.colWidths[i], lipgloss.Width(cell.Value))
			}
		}
	}
	for i := range m.colWidths {
		m.colWidths[i] = min(max(m.colWidths[i], 1), maxColumnWidth)
	}
}

func (m Model) visibleRows() int {
	return max(1, m.height-5)
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the results pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	t := m.table()
	if t == nil {
		return m, nil
	}

	rows := len(t.Rows)
	switch key.String() {
	case "up", "k":
		m.moveRow(-1, rows)
	case "down", "j":
		m.moveRow(1, rows)
	case "pgup":
		m.moveRow(-m.visibleRows(), rows)
	case "pgdown":
		m.moveRow(m.visibleRows(), rows)
	case "left", "h":
		m.cursorX = max(0, m.cursorX-1)
	case "right", "l":
		m.cursorX = min(len(t.Columns)-1, m.cursorX+1)
	case "y":
		m.doCopyCell()
	case "Y":
		m.doCopyRowJSON()
	case "c":
		m.doCopyRowCSV()
	case "f":
		return m, m.doFilterByValue()
	case "e":
		return m, m.exportCSVCmd()
	case "E":
		return m, m.exportJSONCmd()
	}
	return m, nil
}

func (m *Model) moveRow(delta, rows int) {
	if rows == 0 {
		return
	}
	m.cursorY = min(max(m.cursorY+delta, 0), rows-1)
	if m.cursorY < m.offsetY {
		m.offsetY = m.cursorY
	}
	if m.cursorY >= m.offsetY+m.visibleRows() {
		m.offsetY = m.cursorY - m.visibleRows() + 1
	}
}

// View renders the results pane.
func (m Model) View() string {
	title := theme.StyleTitle.Render("Results")

	if m.loading {
		return title + "\n" + theme.StyleMuted.Render("  Running...")
	}
	if m.env == nil {
		return title + "\n" + theme.StyleMuted.Render("  Pick a table or run a query")
	}

	target := m.env.Database
	if target == "" {
		target = "default database"
	}
	where := theme.StyleMuted.Render(fmt.Sprintf("%s │ %s", target, oneLine(m.env.SQL)))

	if !m.env.OK() {
		return title + "  " + where + "\n" + theme.StyleError.Render("  "+database.UserMessage)
	}

	t := m.env.Table
	header := title + "  " + theme.StyleMuted.Render(fmt.Sprintf("%d row(s)", t.RowCount())) + "  " + where
	if len(t.Columns) == 0 {
		return header + "\n" + theme.StyleSuccess.Render("  Statement executed")
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(m.renderHeader(t.Columns))
	b.WriteString("\n")
	b.WriteString(m.renderSeparator())

	end := min(len(t.Rows), m.offsetY+m.visibleRows())
	for i := m.offsetY; i < end; i++ {
		b.WriteString("\n")
		b.WriteString(m.renderRow(t.Rows[i], i))
	}
	return b.String()
}

func (m Model) renderHeader(cols []string) string {
	style := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorPrimary)
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = style.Render(fit(col, m.colWidth(i)))
	}
	return "  " + strings.Join(parts, " │ ")
}

func (m Model) renderRow(row []query.Cell, y int) string {
	parts := make([]string, len(m.colWidths))
	for i := range parts {
		var cell query.Cell
		if i < len(row) {
			cell = row[i]
		}
		style := theme.CellStyle(cell.Kind)
		if m.focused && y == m.cursorY && i == m.cursorX {
			style = theme.StyleSelected
		}
		parts[i] = style.Render(fit(cell.Value, m.colWidth(i)))
	}

	gutter := "  "
	if y == m.cursorY {
		gutter = "> "
	}
	return gutter + strings.Join(parts, " │ ")
}

func (m Model) renderSeparator() string {
	parts := make([]string, len(m.colWidths))
	for i, w := range m.colWidths {
		parts[i] = strings.Repeat("─", w)
	}
	return "  " + lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Join(parts, "─┼─"))
}

func (m Model) colWidth(i int) int {
	if i < len(m.colWidths) {
		return m.colWidths[i]
	}
	return 10
}

// fit truncates or pads s to exactly w display cells.
func fit(s string, w int) string {
	if lipgloss.Width(s) > w {
		runes := []rune(s)
		for len(runes) > 0 && lipgloss.Width(string(runes)) >= w {
			runes = runes[:len(runes)-1]
		}
		s = string(runes) + "…"
	}
	if pad := w - lipgloss.Width(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
