package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joacominatel/pgbrowse/internal/database"
)

// closeTimeout bounds the graceful Terminate sent when a connection is stopped.
const closeTimeout = 5 * time.Second

var errConnectionLost = errors.New("connection closed before serve loop was stopped")

// Dialer implements database.Dialer for PostgreSQL. Every Dial opens a
// single dedicated connection; nothing is pooled.
type Dialer struct {
	logger *slog.Logger
}

// NewDialer creates a PostgreSQL dialer.
// If logger is nil, a discard logger is used.
func NewDialer(logger *slog.Logger) *Dialer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dialer{logger: logger}
}

// Dial opens one connection described by desc.
func (d *Dialer) Dial(ctx context.Context, desc database.Descriptor) (database.Conn, error) {
	cfg, err := pgx.ParseConfig(desc.String())
	if err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}
	// One statement per connection, so caching prepared statements buys nothing.
	cfg.DefaultQueryExecMode = pgx.QueryExecModeExec

	d.logger.Debug("connecting to postgres",
		slog.String("host", cfg.Host),
		slog.String("user", cfg.User),
		slog.String("database", cfg.Database))

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	return &Conn{
		conn:    conn,
		decoder: NewDecoder(conn.TypeMap(), d.logger),
		logger:  d.logger,
	}, nil
}

// Conn is a single pgx connection.
type Conn struct {
	conn    *pgx.Conn
	decoder *Decoder
	logger  *slog.Logger
}

// Serve holds the connection open until ctx is cancelled, then closes it.
// It returns early if the connection is torn down underneath it.
func (c *Conn) Serve(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-c.conn.PgConn().CleanupDone():
		return errConnectionLost
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := c.conn.Close(closeCtx); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	c.logger.Debug("connection closed")
	return nil
}

// Query runs sql and decodes every row to text.
func (c *Conn) Query(ctx context.Context, sql string) (*database.RawTable, error) {
	rows, err := c.conn.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	var resultRows [][]string
	for rows.Next() {
		resultRows = append(resultRows, c.decoder.DecodeRow(Row{
			Fields: fields,
			Values: rows.RawValues(),
		}))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return &database.RawTable{
		Columns: columns,
		Rows:    resultRows,
	}, nil
}
