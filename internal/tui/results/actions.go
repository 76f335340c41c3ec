package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joacominatel/pgbrowse/internal/database/postgres"
	"github.com/joacominatel/pgbrowse/internal/query"
)

var writeClipboard = clipboard.WriteAll

// ExportDir is where exports are written. Empty means the working directory.
var ExportDir = ""

func (m Model) currentRow() []query.Cell {
	t := m.table()
	if t == nil || m.cursorY < 0 || m.cursorY >= len(t.Rows) {
		return nil
	}
	return t.Rows[m.cursorY]
}

func (m Model) currentCell() (column string, cell query.Cell, ok bool) {
	t := m.table()
	row := m.currentRow()
	if row == nil || m.cursorX < 0 || m.cursorX >= len(row) || m.cursorX >= len(t.Columns) {
		return "", query.Cell{}, false
	}
	return t.Columns[m.cursorX], row[m.cursorX], true
}

// --- Copy ---

func (m *Model) copy(text, what string) {
	if err := writeClipboard(text); err != nil {
		m.statusMessage = "Copy failed: " + err.Error()
		return
	}
	m.statusMessage = "Copied " + what
}

func (m *Model) doCopyCell() {
	_, cell, ok := m.currentCell()
	if !ok {
		m.statusMessage = "Nothing to copy"
		return
	}
	m.copy(cell.Value, truncateStatus(cell.Value, 40))
}

func (m *Model) doCopyRowJSON() {
	row := m.currentRow()
	if row == nil {
		m.statusMessage = "No row to copy"
		return
	}
	m.copy(rowToJSON(m.table().Columns, row), "row as JSON")
}

func (m *Model) doCopyRowCSV() {
	row := m.currentRow()
	if row == nil {
		m.statusMessage = "No row to copy"
		return
	}
	var b strings.Builder
	t := &query.TypedTable{Columns: m.table().Columns, Rows: [][]query.Cell{row}}
	if err := writeCSV(&b, t); err != nil {
		m.statusMessage = "Copy failed: " + err.Error()
		return
	}
	m.copy(b.String(), "row as CSV")
}

// --- Filter ---

// doFilterByValue drafts a query for rows sharing the selected cell's value.
// The draft goes to the editor, it is never run directly.
func (m *Model) doFilterByValue() tea.Cmd {
	col, cell, ok := m.currentCell()
	table := extractTableName(m.env.SQL)
	switch {
	case !ok || table == "":
		m.statusMessage = "Cannot filter: no table cell selected"
		return nil
	case cell.Value == postgres.Unknown:
		m.statusMessage = "Cannot filter on a value that could not be displayed"
		return nil
	}

	escaped := strings.ReplaceAll(cell.Value, "'", "''")
	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s = '%s';", table, col, escaped)
	db := m.env.Database
	return func() tea.Msg {
		return SetEditorQueryMsg{Database: db, SQL: sql}
	}
}

// --- Export ---

func (m Model) exportCSVCmd() tea.Cmd {
	return m.exportCmd("csv", writeCSV)
}

func (m Model) exportJSONCmd() tea.Cmd {
	return m.exportCmd("json", writeJSON)
}

func (m Model) exportCmd(ext string, write func(io.Writer, *query.TypedTable) error) tea.Cmd {
	t := m.table()
	if t == nil {
		return nil
	}
	return func() tea.Msg {
		name := fmt.Sprintf("pgbrowse_export_%s.%s", time.Now().Format("20060102_150405"), ext)
		path := filepath.Join(ExportDir, name)

		f, err := os.Create(path)
		if err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		if err := write(f, t); err != nil {
			f.Close()
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		if err := f.Close(); err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error()}
		}
		return StatusNotifyMsg{Message: fmt.Sprintf("Exported %d rows to %s", t.RowCount(), path)}
	}
}

func writeCSV(w io.Writer, t *query.TypedTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	for _, row := range t.Strings() {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, t *query.TypedTable) error {
	var b strings.Builder
	b.WriteString("[")
	for i, row := range t.Rows {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n  ")
		b.WriteString(rowToJSON(t.Columns, row))
	}
	b.WriteString("\n]\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// --- Helpers ---

// extractTableName returns the identifier after FROM, INTO or UPDATE.
func extractTableName(sql string) string {
	tokens := strings.Fields(sql)
	for i, tok := range tokens {
		switch strings.ToUpper(tok) {
		case "FROM", "INTO", "UPDATE":
			if i+1 < len(tokens) {
				if name := strings.TrimRight(tokens[i+1], ";,()"); name != "" {
					return name
				}
			}
		}
	}
	return ""
}

// rowToJSON keeps column order, which map marshaling would not.
func rowToJSON(columns []string, row []query.Cell) string {
	var b strings.Builder
	b.WriteString("{")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		key, _ := json.Marshal(col)
		b.Write(key)
		b.WriteString(": ")
		if i < len(row) {
			val, _ := json.Marshal(row[i].Value)
			b.Write(val)
		} else {
			b.WriteString("null")
		}
	}
	b.WriteString("}")
	return b.String()
}

func truncateStatus(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
