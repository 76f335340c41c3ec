package statusbar

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/pgbrowse/internal/tui/theme"
)

// Model is the status bar component.
type Model struct {
	width      int
	connected  bool
	connName   string
	activePane string
	state      string
	served     int
	message    string
}

// New creates a new status bar model.
func New() Model {
	return Model{
		activePane: "explorer",
		state:      "idle",
	}
}

// SetWidth updates the component width.
func (m *Model) SetWidth(w int) {
	m.width = w
}

// SetConnected updates the connection indicator.
func (m *Model) SetConnected(connected bool, name string) {
	m.connected = connected
	m.connName = name
}

// SetActivePane updates the displayed active pane name.
func (m *Model) SetActivePane(pane string) {
	m.activePane = pane
}

// SetRouter updates the router state and the number of requests served.
func (m *Model) SetRouter(state string, served int) {
	m.state = state
	m.served = served
}

// SetMessage sets a temporary status message.
func (m *Model) SetMessage(msg string) {
	m.message = msg
}

// View renders the status bar.
func (m Model) View() string {
	var conn string
	if m.connected {
		conn = lipgloss.NewStyle().Foreground(theme.ColorSuccess).Render("●") + " " + m.connName
	} else {
		conn = lipgloss.NewStyle().Foreground(theme.ColorError).Render("●") + " disconnected"
	}

	left := fmt.Sprintf("%s │ %s │ %d served", conn, m.state, m.served)

	right := m.message
	if right == "" {
		right = "Ctrl+E: Run │ Tab: Switch pane │ ?: Help │ q: Quit"
	}

	padding := max(1, m.width-lipgloss.Width(left)-lipgloss.Width(right)-4)
	return theme.StyleStatusBar.Width(m.width).Render(left + strings.Repeat(" ", padding) + right)
}
