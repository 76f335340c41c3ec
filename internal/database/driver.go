package database

import "context"

// Dialer opens a single, unpooled connection to the database.
type Dialer interface {
	Dial(ctx context.Context, desc Descriptor) (Conn, error)
}

// Conn is one open wire connection.
//
// Serve runs the connection's background I/O loop and must be running while
// Query is in progress. It returns once ctx is cancelled, after closing the
// connection, or earlier if the connection dies on its own.
type Conn interface {
	// Serve owns the connection until ctx is cancelled.
	Serve(ctx context.Context) error

	// Query runs a single statement and returns the decoded rows.
	Query(ctx context.Context, sql string) (*RawTable, error)
}
