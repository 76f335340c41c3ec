package query

import "github.com/joacominatel/pgbrowse/internal/database"

// kindFor returns the label every cell produced by q receives.
func kindFor(q Query) Kind {
	q, _ = Normalize(q)
	switch q.(type) {
	case ListDatabases:
		return KindDatabaseName
	case ListTables:
		return KindTableName
	default:
		return KindText
	}
}

// Classify labels every cell of raw according to the query that produced it.
// Values, row order and columns are left untouched.
func Classify(raw *database.RawTable, q Query) TypedTable {
	kind := kindFor(q)
	if raw == nil {
		return TypedTable{Columns: []string{}, Rows: [][]Cell{}}
	}

	columns := make([]string, len(raw.Columns))
	copy(columns, raw.Columns)

	rows := make([][]Cell, len(raw.Rows))
	for i, row := range raw.Rows {
		cells := make([]Cell, len(row))
		for j, v := range row {
			cells[j] = Cell{Kind: kind, Value: v}
		}
		rows[i] = cells
	}

	return TypedTable{Columns: columns, Rows: rows}
}
