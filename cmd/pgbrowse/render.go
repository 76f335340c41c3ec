package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joacominatel/pgbrowse/internal/database"
	"github.com/joacominatel/pgbrowse/internal/query"
	"github.com/joacominatel/pgbrowse/internal/router"
)

// render prints an envelope in the given format. Failures print the generic
// message only.
func render(w io.Writer, env router.Envelope, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}

	if !env.OK() {
		_, err := fmt.Fprintln(w, database.UserMessage)
		return err
	}
	return renderTable(w, env.Table, format)
}

func renderTable(w io.Writer, t *query.TypedTable, format string) error {
	if t == nil || len(t.Columns) == 0 {
		_, err := fmt.Fprintln(w, "(no columns)")
		return err
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)

	header := make(table.Row, len(t.Columns))
	for i, col := range t.Columns {
		header[i] = col
	}
	tw.AppendHeader(header)

	for _, cells := range t.Rows {
		row := make(table.Row, len(cells))
		for i, c := range cells {
			row[i] = c.Value
		}
		tw.AppendRow(row)
	}

	switch format {
	case "csv":
		tw.RenderCSV()
		return nil
	case "md", "markdown":
		tw.RenderMarkdown()
		return nil
	case "table", "":
		tw.Render()
		_, err := fmt.Fprintf(w, "(%d rows)\n", t.RowCount())
		return err
	default:
		return fmt.Errorf("unknown format %q (want table, json, csv or md)", format)
	}
}
