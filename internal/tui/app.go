package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/pgbrowse/internal/app"
	"github.com/joacominatel/pgbrowse/internal/config"
	"github.com/joacominatel/pgbrowse/internal/database"
	"github.com/joacominatel/pgbrowse/internal/logging"
	"github.com/joacominatel/pgbrowse/internal/query"
	"github.com/joacominatel/pgbrowse/internal/router"
	"github.com/joacominatel/pgbrowse/internal/tui/editor"
	"github.com/joacominatel/pgbrowse/internal/tui/explorer"
	"github.com/joacominatel/pgbrowse/internal/tui/results"
	"github.com/joacominatel/pgbrowse/internal/tui/statusbar"
	"github.com/joacominatel/pgbrowse/internal/tui/theme"
)

const (
	connectTimeout = 15 * time.Second
	queryTimeout   = 30 * time.Second
	tickInterval   = 250 * time.Millisecond
)

// Pane identifies a focusable area.
type Pane int

const (
	PaneExplorer Pane = iota
	PaneEditor
	PaneResults
)

func (p Pane) String() string {
	switch p {
	case PaneExplorer:
		return "explorer"
	case PaneEditor:
		return "editor"
	case PaneResults:
		return "results"
	default:
		return "unknown"
	}
}

// AppMode tracks the current UI state.
type AppMode int

const (
	ModeSelectConnection AppMode = iota // saved profiles list
	ModeConnect                         // manual descriptor input
	ModeMain                            // browser
)

// RouterState reports the router's position in its request cycle.
type RouterState interface {
	State() router.State
}

type (
	connectedMsg struct {
		base  database.Descriptor
		label string
		save  bool
		env   router.Envelope
		err   error
	}
	tablesLoadedMsg struct {
		database string
		env      router.Envelope
		err      error
	}
	resultMsg struct {
		env router.Envelope
		err error
	}
	connectionSavedMsg struct {
		err error
	}
	tickMsg time.Time
)

// Model is the top-level bubbletea model orchestrating all components.
type Model struct {
	service *app.Service
	states  RouterState
	cfg     *config.Config
	logger  *slog.Logger

	explorer   explorer.Model
	editor     editor.Model
	results    results.Model
	statusbar  statusbar.Model
	connInput  textinput.Model
	activePane Pane
	mode       AppMode
	width      int
	height     int
	notice     string
	showHelp   bool

	base        database.Descriptor
	initialBase database.Descriptor
	connCursor  int
}

// NewModel creates the top-level model. A non-empty base connects right away.
func NewModel(service *app.Service, states RouterState, cfg *config.Config, base database.Descriptor, logger *slog.Logger) Model {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if logger == nil {
		logger = logging.Discard()
	}

	ti := textinput.New()
	ti.Placeholder = "host=localhost user=postgres password=secret"
	ti.SetValue(service.SuggestQuery().Base.String())
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 70

	mode := ModeConnect
	if base == "" && len(cfg.Connections) > 0 {
		mode = ModeSelectConnection
	}

	return Model{
		service:     service,
		states:      states,
		cfg:         cfg,
		logger:      logger,
		explorer:    explorer.New(),
		editor:      editor.New(),
		results:     results.New(),
		statusbar:   statusbar.New(),
		connInput:   ti,
		activePane:  PaneExplorer,
		mode:        mode,
		initialBase: base,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, tick()}
	if m.initialBase != "" {
		cmds = append(cmds, m.connectCmd(m.initialBase, labelFor(m.initialBase), false))
	}
	return tea.Batch(cmds...)
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if db, ok := explorer.IsRequestTablesMsg(msg); ok {
		m.statusbar.SetMessage("Loading tables of " + db + "...")
		return m, m.tablesCmd(db)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tickMsg:
		m.refreshRouterStatus()
		return m, tick()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if msg.String() == "?" && m.mode == ModeMain && m.activePane != PaneEditor {
			m.showHelp = !m.showHelp
			return m, nil
		}
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}

		switch m.mode {
		case ModeSelectConnection:
			return m.updateSelectConnection(msg)
		case ModeConnect:
			return m.updateConnect(msg)
		case ModeMain:
			return m.updateMain(msg)
		}

	case connectedMsg:
		return m.handleConnected(msg)

	case connectionSavedMsg:
		if msg.err != nil {
			m.logger.Warn("saving connection failed", slog.Any("error", msg.err))
			m.statusbar.SetMessage("Warning: could not save connection")
		}
		return m, nil

	case tablesLoadedMsg:
		m.refreshRouterStatus()
		if msg.err != nil || !msg.env.OK() {
			m.explorer.TablesFailed(msg.database)
			m.statusbar.SetMessage(database.UserMessage)
			return m, nil
		}
		m.explorer.SetTables(msg.database, explorer.Names(msg.env.Table, query.KindTableName))
		m.editor.SetTableNames(m.explorer.TableNames())
		m.statusbar.SetMessage("")
		return m, nil

	case resultMsg:
		m.refreshRouterStatus()
		if msg.err != nil {
			m.results.SetLoading(false)
			m.statusbar.SetMessage(app.UserMessage(msg.err))
			return m, nil
		}
		m.results.SetEnvelope(msg.env)
		m.statusbar.SetMessage("")
		return m, nil

	case explorer.OpenTableMsg:
		q := query.ListTableContents{Database: msg.Database, Table: msg.Table}
		m.editor.SetDatabase(msg.Database)
		m.editor.SetValue(query.SQLText(q))
		cmd := m.runCmd(q)
		return m, cmd

	case editor.ExecuteQueryMsg:
		cmd := m.runCmd(query.CustomSQL{Database: msg.Database, SQL: msg.SQL})
		return m, cmd

	case results.SetEditorQueryMsg:
		m.editor.SetDatabase(msg.Database)
		m.editor.SetValue(msg.SQL)
		m.setFocus(PaneEditor)
		return m, nil

	case results.StatusNotifyMsg:
		m.statusbar.SetMessage(msg.Message)
		return m, nil
	}

	if m.mode == ModeMain {
		return m.updateComponents(msg)
	}
	return m, nil
}

func (m Model) handleConnected(msg connectedMsg) (tea.Model, tea.Cmd) {
	m.refreshRouterStatus()
	if msg.err != nil || !msg.env.OK() {
		m.notice = app.UserMessage(msg.err)
		if msg.err == nil {
			m.notice = database.UserMessage
		}
		m.statusbar.SetMessage("")
		if m.mode == ModeMain {
			m.mode = ModeConnect
		}
		return m, nil
	}

	m.base = msg.base
	m.mode = ModeMain
	m.notice = ""
	m.explorer.SetDatabases(msg.label, explorer.Names(msg.env.Table, query.KindDatabaseName))
	m.results.SetEnvelope(msg.env)
	m.statusbar.SetConnected(true, msg.label)
	m.statusbar.SetMessage("")
	m.setFocus(PaneExplorer)
	m.layout()

	if msg.save {
		return m, saveConnectionCmd(msg.base)
	}
	return m, nil
}

func (m Model) updateSelectConnection(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	connCount := len(m.cfg.Connections)

	switch msg.String() {
	case "up", "k":
		if m.connCursor > 0 {
			m.connCursor--
		}
	case "down", "j":
		if m.connCursor < connCount { // the last item is "New connection"
			m.connCursor++
		}
	case "enter":
		if m.connCursor < connCount {
			conn := m.cfg.Connections[m.connCursor]
			base, err := conn.Descriptor(config.Keyring{})
			if err != nil {
				m.logger.Error("building descriptor failed",
					slog.String("connection", conn.Name), slog.Any("error", err))
				m.notice = app.UserMessage(err)
				return m, nil
			}
			m.statusbar.SetMessage("Connecting to " + conn.Name + "...")
			return m, m.connectCmd(base, conn.DisplayString(), false)
		}
		m.mode = ModeConnect
		m.connInput.Focus()
	case "n":
		m.mode = ModeConnect
		m.connInput.Focus()
	case "q":
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) updateConnect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		input := strings.TrimSpace(m.connInput.Value())
		if input == "" {
			return m, nil
		}
		if _, _, err := config.ParseDescriptor(input); err != nil {
			m.notice = "Expected key=value pairs, e.g. host=localhost user=postgres"
			return m, nil
		}
		m.notice = ""
		m.statusbar.SetMessage("Connecting...")
		base := database.Descriptor(input)
		return m, m.connectCmd(base, labelFor(base), true)
	case "esc":
		if len(m.cfg.Connections) > 0 {
			m.mode = ModeSelectConnection
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.connInput, cmd = m.connInput.Update(msg)
	return m, cmd
}

func (m Model) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		if m.activePane != PaneEditor {
			return m, tea.Quit
		}
	case "tab":
		if m.activePane != PaneEditor {
			m.cyclePane(1)
			return m, nil
		}
	case "shift+tab":
		m.cyclePane(-1)
		return m, nil
	case "esc":
		if m.activePane == PaneEditor {
			m.cyclePane(1)
			return m, nil
		}
	}

	return m.updateComponents(msg)
}

func (m Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.activePane {
	case PaneExplorer:
		m.explorer, cmd = m.explorer.Update(msg)
		if db := m.explorer.SelectedDatabase(); db != "" {
			m.editor.SetDatabase(db)
		}
	case PaneEditor:
		m.editor, cmd = m.editor.Update(msg)
	case PaneResults:
		m.results, cmd = m.results.Update(msg)
		if s := m.results.TakeStatus(); s != "" {
			m.statusbar.SetMessage(s)
		}
	}

	return m, cmd
}

func (m *Model) cyclePane(step int) {
	next := (int(m.activePane) + step + 3) % 3
	m.setFocus(Pane(next))
}

func (m *Model) setFocus(pane Pane) {
	m.activePane = pane
	m.explorer.SetFocused(pane == PaneExplorer)
	m.editor.SetFocused(pane == PaneEditor)
	m.results.SetFocused(pane == PaneResults)
	m.statusbar.SetActivePane(pane.String())
}

func (m *Model) refreshRouterStatus() {
	state := "unknown"
	if m.states != nil {
		state = m.states.State().String()
	}
	m.statusbar.SetRouter(state, m.service.Served())
}

func (m Model) explorerWidth() int {
	return min(max(m.width/4, 22), 35)
}

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}

	availHeight := m.height - 1
	rightWidth := m.width - m.explorerWidth() - 1
	editorHeight := max(availHeight*40/100, 5)

	m.explorer.SetSize(m.explorerWidth(), availHeight)
	m.editor.SetSize(rightWidth, editorHeight)
	m.results.SetSize(rightWidth, availHeight-editorHeight-1)
	m.statusbar.SetWidth(m.width)
}

// Async commands

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) connectCmd(base database.Descriptor, label string, save bool) tea.Cmd {
	service := m.service
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		env, err := service.RunQuery(ctx, app.Suggestion{Base: base, Query: query.ListDatabases{}})
		return connectedMsg{base: base, label: label, save: save, env: env, err: err}
	}
}

func (m Model) tablesCmd(db string) tea.Cmd {
	service, base := m.service, m.base
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		env, err := service.RunQuery(ctx, app.Suggestion{Base: base, Query: query.ListTables{Database: db}})
		return tablesLoadedMsg{database: db, env: env, err: err}
	}
}

func (m *Model) runCmd(q query.Query) tea.Cmd {
	m.results.SetLoading(true)
	m.statusbar.SetMessage("Running " + query.Name(q) + "...")

	service, base := m.service, m.base
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		env, err := service.RunQuery(ctx, app.Suggestion{Base: base, Query: q})
		return resultMsg{env: env, err: err}
	}
}

func saveConnectionCmd(base database.Descriptor) tea.Cmd {
	return func() tea.Msg {
		conn, password, err := config.ParseDescriptor(base.String())
		if err != nil {
			return connectionSavedMsg{err: err}
		}
		dir, err := config.Dir()
		if err != nil {
			return connectionSavedMsg{err: err}
		}
		return connectionSavedMsg{err: config.SaveConnection(dir, conn, password, config.Keyring{})}
	}
}

// labelFor names a connection for display, never including the password.
func labelFor(base database.Descriptor) string {
	conn, _, err := config.ParseDescriptor(base.String())
	if err != nil {
		return "server"
	}
	return conn.DisplayString()
}

// View renders the entire application.
func (m Model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}

	switch m.mode {
	case ModeSelectConnection:
		return m.viewSelectConnection()
	case ModeConnect:
		return m.viewConnect()
	default:
		return m.viewMain()
	}
}

func (m Model) banner() []string {
	title := lipgloss.NewStyle().Foreground(theme.ColorPrimary).Bold(true).Padding(1, 0).Render("pgbrowse")
	return []string{"", title, theme.StyleMuted.Render("Browse PostgreSQL from the terminal."), ""}
}

func (m Model) noticeLine() string {
	if m.notice == "" {
		return ""
	}
	return theme.StyleError.Render("  " + m.notice)
}

func (m Model) viewSelectConnection() string {
	parts := m.banner()
	parts = append(parts, theme.StyleTitle.Render("Saved Connections"))

	for i, conn := range m.cfg.Connections {
		label := fmt.Sprintf("%s (%s)", conn.Name, conn.DisplayString())
		if i == m.connCursor {
			parts = append(parts, theme.StyleSelected.Render("> "+label))
		} else {
			parts = append(parts, "  "+label)
		}
	}

	newLabel := "  [New Connection]"
	if m.connCursor == len(m.cfg.Connections) {
		newLabel = theme.StyleSelected.Render("> [New Connection]")
	}
	parts = append(parts, "", newLabel)

	if n := m.noticeLine(); n != "" {
		parts = append(parts, "", n)
	}
	parts = append(parts, "", theme.StyleMuted.Render("  ↑/↓: Navigate  Enter: Connect  n: New  q: Quit"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) viewConnect() string {
	parts := m.banner()
	parts = append(parts,
		lipgloss.NewStyle().Foreground(theme.ColorPrimary).Render("Connection (key=value pairs, no dbname needed):"),
		"  "+m.connInput.View(),
	)
	if n := m.noticeLine(); n != "" {
		parts = append(parts, "", n)
	}

	back := ""
	if len(m.cfg.Connections) > 0 {
		back = "Esc: Back │ "
	}
	parts = append(parts, "", theme.StyleMuted.Render("  "+back+"Enter: Connect │ Ctrl+C: Quit"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (m Model) viewMain() string {
	border := func(p Pane) lipgloss.Style {
		if m.activePane == p {
			return theme.StyleActiveBorder
		}
		return theme.StyleBorder
	}

	explorerWidth := m.explorerWidth()
	rightWidth := m.width - explorerWidth - 1
	availHeight := m.height - 3
	editorHeight := max(availHeight*40/100, 5)
	resultsHeight := availHeight - editorHeight - 2

	explorerView := border(PaneExplorer).Width(explorerWidth - 2).Height(availHeight).Render(m.explorer.View())
	editorView := border(PaneEditor).Width(rightWidth - 2).Height(editorHeight).Render(m.editor.View())
	resultsView := border(PaneResults).Width(rightWidth - 2).Height(resultsHeight).Render(m.results.View())

	mainArea := lipgloss.JoinHorizontal(lipgloss.Top,
		explorerView,
		lipgloss.JoinVertical(lipgloss.Left, editorView, resultsView),
	)
	return lipgloss.JoinVertical(lipgloss.Left, mainArea, m.statusbar.View())
}

func (m Model) viewHelp() string {
	section := lipgloss.NewStyle().Foreground(theme.ColorHighlight).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	line := func(keys, desc string) string {
		return keyStyle.Render(fmt.Sprintf("  %-14s", keys)) + theme.StyleMuted.Render(desc)
	}

	help := lipgloss.JoinVertical(lipgloss.Left,
		theme.StyleTitle.Render("pgbrowse - Keyboard Shortcuts"),
		"",
		section.Render("Global"),
		line("q / Ctrl+C", "Quit"),
		line("Tab", "Next pane"),
		line("Shift+Tab", "Previous pane"),
		line("?", "Toggle this help"),
		"",
		section.Render("Databases"),
		line("↑/k  ↓/j", "Move"),
		line("Enter/→/l", "Expand database, open table"),
		line("←/h", "Collapse"),
		"",
		section.Render("Query"),
		line("Ctrl+E / F5", "Run on the selected database"),
		line("Ctrl+P/Ctrl+N", "Previous/next statement"),
		line("Ctrl+K", "Clear"),
		line("Ctrl+L", "Uppercase keywords"),
		line("Tab", "Complete table name"),
		line("Esc", "Leave editor"),
		"",
		section.Render("Results"),
		line("↑↓←→ / hjkl", "Move cursor"),
		line("PgUp/PgDn", "Page"),
		line("y / Y / c", "Copy cell / row JSON / row CSV"),
		line("f", "Draft a filter on the cell's value"),
		line("e / E", "Export CSV / JSON"),
		"",
		theme.StyleMuted.Render("Press any key to close"),
	)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, help)
}
