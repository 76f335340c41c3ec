package query

import (
	"encoding/json"
	"fmt"
)

// Kind labels what a cell's text denotes.
type Kind int

const (
	KindText Kind = iota
	KindDatabaseName
	KindTableName
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "Text"
	case KindDatabaseName:
		return "DatabaseName"
	case KindTableName:
		return "TableName"
	default:
		return "unknown"
	}
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "Text":
		return KindText, nil
	case "DatabaseName":
		return KindDatabaseName, nil
	case "TableName":
		return KindTableName, nil
	default:
		return 0, fmt.Errorf("unknown cell kind %q", s)
	}
}

// Cell is one labelled value. The value is always text.
type Cell struct {
	Kind  Kind
	Value string
}

// Text returns a plain text cell.
func Text(v string) Cell { return Cell{Kind: KindText, Value: v} }

// DatabaseName returns a cell naming a database.
func DatabaseName(v string) Cell { return Cell{Kind: KindDatabaseName, Value: v} }

// TableName returns a cell naming a table.
func TableName(v string) Cell { return Cell{Kind: KindTableName, Value: v} }

// MarshalJSON encodes the cell as {"<Kind>": "<value>"}.
func (c Cell) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{c.Kind.String(): c.Value})
}

// UnmarshalJSON decodes the {"<Kind>": "<value>"} form.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("cell: want exactly one kind, got %d", len(m))
	}
	for k, v := range m {
		kind, err := parseKind(k)
		if err != nil {
			return err
		}
		*c = Cell{Kind: kind, Value: v}
	}
	return nil
}

// TypedTable is a labelled result: column names plus rows of cells.
type TypedTable struct {
	Columns []string `json:"columns"`
	Rows    [][]Cell `json:"rows"`
}

// RowCount returns the number of rows.
func (t *TypedTable) RowCount() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Strings returns the cell values without their labels.
func (t *TypedTable) Strings() [][]string {
	if t == nil {
		return nil
	}
	out := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = make([]string, len(row))
		for j, c := range row {
			out[i][j] = c.Value
		}
	}
	return out
}
