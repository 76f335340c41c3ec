package editor

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/pgbrowse/internal/tui/theme"
)

// ExecuteQueryMsg is sent when the user runs the editor content against
// Database ("" means the base connection's default).
type ExecuteQueryMsg struct {
	Database string
	SQL      string
}

var sqlKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "and": true, "or": true,
	"insert": true, "into": true, "update": true, "delete": true,
	"create": true, "drop": true, "alter": true, "table": true,
	"join": true, "inner": true, "left": true, "right": true, "on": true,
	"not": true, "in": true, "is": true, "null": true, "like": true,
	"order": true, "by": true, "group": true, "having": true,
	"limit": true, "offset": true, "as": true, "distinct": true,
	"count": true, "between": true, "exists": true, "case": true,
	"when": true, "then": true, "else": true, "end": true, "values": true,
	"set": true, "union": true, "all": true, "asc": true, "desc": true,
	"true": true, "false": true, "ilike": true, "returning": true,
}

// Model is the SQL editor component.
type Model struct {
	textarea textarea.Model
	width    int
	height   int
	focused  bool
	database string

	history []string
	histPos int // len(history) when not browsing

	tableNames  []string
	completions []string
	compIndex   int
}

// New creates a new editor model.
func New() Model {
	ta := textarea.New()
	ta.Placeholder = "Enter SQL..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.Prompt = "│ "
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle()
	ta.BlurredStyle.Base = lipgloss.NewStyle()
	ta.FocusedStyle.Placeholder = theme.StyleMuted
	ta.BlurredStyle.Placeholder = theme.StyleMuted
	ta.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(theme.ColorPrimary)
	ta.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(theme.ColorBorder)

	return Model{textarea: ta}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.textarea.SetWidth(max(1, w-2))
	m.textarea.SetHeight(max(1, h-2))
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
	if f {
		m.textarea.Focus()
	} else {
		m.textarea.Blur()
	}
}

// SetDatabase sets the database the editor's SQL targets.
func (m *Model) SetDatabase(db string) {
	m.database = db
}

// Database returns the target database.
func (m Model) Database() string {
	return m.database
}

// Value returns the current editor content.
func (m Model) Value() string {
	return m.textarea.Value()
}

// SetValue replaces the editor content.
func (m *Model) SetValue(sql string) {
	m.textarea.SetValue(sql)
	m.completions = nil
}

// SetTableNames sets the table names offered by Tab completion.
func (m *Model) SetTableNames(names []string) {
	m.tableNames = names
}

// History returns previously executed statements, oldest first.
func (m Model) History() []string {
	return m.history
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles messages for the editor.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		key := msg.String()
		if key != "tab" {
			m.completions = nil
		}

		switch key {
		case "ctrl+e", "f5":
			return m, m.execute()
		case "ctrl+k":
			m.textarea.Reset()
			return m, nil
		case "ctrl+l":
			m.textarea.SetValue(uppercaseKeywords(m.textarea.Value()))
			return m, nil
		case "ctrl+p":
			m.browseHistory(-1)
			return m, nil
		case "ctrl+n":
			m.browseHistory(1)
			return m, nil
		case "tab":
			if m.complete() {
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *Model) execute() tea.Cmd {
	sql := strings.TrimSpace(m.textarea.Value())
	if sql == "" {
		return nil
	}
	if n := len(m.history); n == 0 || m.history[n-1] != sql {
		m.history = append(m.history, sql)
	}
	m.histPos = len(m.history)

	db := m.database
	return func() tea.Msg {
		return ExecuteQueryMsg{Database: db, SQL: sql}
	}
}

func (m *Model) browseHistory(delta int) {
	if len(m.history) == 0 {
		return
	}
	m.histPos = min(max(m.histPos+delta, 0), len(m.history))
	if m.histPos == len(m.history) {
		m.textarea.Reset()
		return
	}
	m.textarea.SetValue(m.history[m.histPos])
}

// complete replaces the trailing word with the next matching table name.
// Repeated Tabs cycle through the matches.
func (m *Model) complete() bool {
	val := m.textarea.Value()

	if len(m.completions) > 0 {
		m.compIndex = (m.compIndex + 1) % len(m.completions)
	} else {
		partial := lastWord(val)
		if partial == "" {
			return false
		}
		lower := strings.ToLower(partial)
		var matches []string
		for _, name := range m.tableNames {
			if strings.HasPrefix(strings.ToLower(name), lower) {
				matches = append(matches, name)
			}
		}
		if len(matches) == 0 {
			return false
		}
		m.completions = matches
		m.compIndex = 0
	}

	prefix := strings.TrimSuffix(val, lastWord(val))
	m.textarea.SetValue(prefix + m.completions[m.compIndex])
	return true
}

// uppercaseKeywords uppercases SQL keywords outside quoted literals.
func uppercaseKeywords(sql string) string {
	var out, word strings.Builder
	flush := func() {
		w := word.String()
		if sqlKeywords[strings.ToLower(w)] {
			w = strings.ToUpper(w)
		}
		out.WriteString(w)
		word.Reset()
	}

	var quote rune
	for _, ch := range sql {
		switch {
		case quote != 0:
			out.WriteRune(ch)
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			flush()
			quote = ch
			out.WriteRune(ch)
		case unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_':
			word.WriteRune(ch)
		default:
			flush()
			out.WriteRune(ch)
		}
	}
	flush()
	return out.String()
}

func lastWord(s string) string {
	i := len(s)
	for i > 0 && isIdentByte(s[i-1]) {
		i--
	}
	return s[i:]
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '_' || c == '.'
}

// View renders the editor.
func (m Model) View() string {
	target := m.database
	if target == "" {
		target = "default database"
	}
	title := theme.StyleTitle.Render("Query") + theme.StyleMuted.Render("on "+target)

	var hint string
	if len(m.completions) > 1 {
		names := make([]string, len(m.completions))
		for i, c := range m.completions {
			if i == m.compIndex {
				names[i] = theme.StyleSelected.Render(c)
			} else {
				names[i] = theme.StyleMuted.Render(c)
			}
		}
		hint = "\n " + theme.StyleMuted.Render("Tab: ") + strings.Join(names, " │ ")
	}

	return title + "\n" + m.textarea.View() + hint
}
