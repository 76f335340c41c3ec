// Package query defines the closed set of requests the router can run, the
// SQL each one maps to, and the labelling of their results.
package query

import (
	"errors"
	"fmt"

	"github.com/joacominatel/pgbrowse/internal/database"
)

// Query is one of ListDatabases, ListTables, ListTableContents or CustomSQL.
// The set is closed: only this package can add variants.
type Query interface {
	isQuery()
}

// ListDatabases lists every database in the cluster.
type ListDatabases struct{}

// ListTables lists the tables of the public schema.
type ListTables struct {
	Database string `json:"database,omitempty"`
}

// ListTableContents selects every row of Table.
type ListTableContents struct {
	Database string `json:"database,omitempty"`
	Table    string `json:"table"`
}

// CustomSQL runs caller-supplied SQL verbatim.
type CustomSQL struct {
	Database string `json:"database,omitempty"`
	SQL      string `json:"sql"`
}

func (ListDatabases) isQuery()     {}
func (ListTables) isQuery()        {}
func (ListTableContents) isQuery() {}
func (CustomSQL) isQuery()         {}

// ErrUnknownVariant is returned by Normalize for a nil query, a nil pointer
// variant or a type outside the closed set.
var ErrUnknownVariant = errors.New("query: unknown variant")

// Normalize returns q as one of the four value variants. Pointer variants are
// dereferenced.
func Normalize(q Query) (Query, error) {
	switch v := q.(type) {
	case ListDatabases, ListTables, ListTableContents, CustomSQL:
		return v, nil
	case *ListDatabases:
		if v != nil {
			return *v, nil
		}
	case *ListTables:
		if v != nil {
			return *v, nil
		}
	case *ListTableContents:
		if v != nil {
			return *v, nil
		}
	case *CustomSQL:
		if v != nil {
			return *v, nil
		}
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownVariant, q)
}

// TargetDatabase returns the database q runs against, or "" for none or for
// a query Normalize rejects.
func TargetDatabase(q Query) string {
	q, _ = Normalize(q)
	switch q := q.(type) {
	case ListDatabases:
		return ""
	case ListTables:
		return q.Database
	case ListTableContents:
		return q.Database
	case CustomSQL:
		return q.Database
	default:
		return ""
	}
}

// SQLText returns the statement q executes, or "" for a query Normalize
// rejects.
func SQLText(q Query) string {
	q, _ = Normalize(q)
	switch q := q.(type) {
	case ListDatabases:
		return sqlListDatabases
	case ListTables:
		return sqlListTables
	case ListTableContents:
		return fmt.Sprintf(sqlTableContentsFormat, q.Table)
	case CustomSQL:
		return q.SQL
	default:
		return ""
	}
}

// Descriptor merges the target database of q into base.
func Descriptor(base database.Descriptor, q Query) database.Descriptor {
	return base.WithDatabase(TargetDatabase(q))
}

// Name returns a short label for q, used in logs.
func Name(q Query) string {
	if n, err := Normalize(q); err == nil {
		q = n
	}
	switch q.(type) {
	case ListDatabases:
		return "ListDatabases"
	case ListTables:
		return "ListTables"
	case ListTableContents:
		return "ListTableContents"
	case CustomSQL:
		return "CustomSQL"
	default:
		return fmt.Sprintf("%T", q)
	}
}
