package database

// Descriptor is a driver-native key/value connection string such as
// "host=localhost user=alice". It is treated as an opaque token: the router
// only ever appends to it, never parses it.
type Descriptor string

// WithDatabase returns a new descriptor targeting the named database.
// An empty name leaves the descriptor unchanged, and so does an empty base.
func (d Descriptor) WithDatabase(name string) Descriptor {
	if name == "" || d == "" {
		return d
	}
	return d + Descriptor(" dbname="+name)
}

// String returns the raw connection string.
func (d Descriptor) String() string {
	return string(d)
}

// RawTable holds a query result as decoded text, before any labelling.
type RawTable struct {
	Columns []string
	Rows    [][]string
}

// RowCount returns the number of result rows.
func (t *RawTable) RowCount() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}
