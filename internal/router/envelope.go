package router

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/joacominatel/pgbrowse/internal/database"
	"github.com/joacominatel/pgbrowse/internal/query"
)

// Request is one unit of work for the router.
type Request struct {
	ID    uuid.UUID
	Base  database.Descriptor
	Query query.Query
}

// Envelope is the single answer to a Request. Database and SQL are always
// set; exactly one of Table and Err is non-nil.
type Envelope struct {
	RequestID uuid.UUID
	Database  string
	SQL       string
	Table     *query.TypedTable
	Err       error
}

// OK reports whether the request succeeded.
func (e Envelope) OK() bool {
	return e.Err == nil
}

type envelopeJSON struct {
	RequestID string            `json:"request_id"`
	Database  *string           `json:"database"`
	SQL       string            `json:"sql_query"`
	Table     *query.TypedTable `json:"table,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// MarshalJSON encodes the envelope for front ends. Failures carry only the
// generic user message.
func (e Envelope) MarshalJSON() ([]byte, error) {
	out := envelopeJSON{
		RequestID: e.RequestID.String(),
		SQL:       e.SQL,
		Table:     e.Table,
	}
	if e.Database != "" {
		db := e.Database
		out.Database = &db
	}
	if e.Err != nil {
		out.Table = nil
		out.Error = database.UserMessage
	}
	return json.Marshal(out)
}
