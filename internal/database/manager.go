package database

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Manager runs one statement per call on a freshly dialed connection.
type Manager struct {
	dialer Dialer
	logger *slog.Logger
}

// NewManager creates a connection manager.
// If logger is nil, a discard logger is used.
func NewManager(dialer Dialer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{dialer: dialer, logger: logger}
}

// Execute dials, runs sql while the connection's serve loop is running, and
// stops the serve loop once the query has settled. It does not return until
// the serve goroutine has exited.
func (m *Manager) Execute(ctx context.Context, desc Descriptor, sql string) (*RawTable, error) {
	conn, err := m.dialer.Dial(ctx, desc)
	if err != nil {
		return nil, newConnectionError("dial", err)
	}

	serveCtx, stop := context.WithCancel(ctx)
	var g errgroup.Group
	g.Go(func() error {
		return conn.Serve(serveCtx)
	})

	table, queryErr := conn.Query(ctx, sql)

	// Only raise the stop signal after the query has returned.
	stop()
	if serveErr := g.Wait(); serveErr != nil {
		m.logger.Debug("serve loop exited with error", slog.Any("error", serveErr))
	}

	if queryErr != nil {
		return nil, newConnectionError("query", queryErr)
	}
	if table == nil {
		table = &RawTable{}
	}
	if table.Columns == nil {
		table.Columns = []string{}
	}

	m.logger.Debug("query executed",
		slog.Int("rows", len(table.Rows)),
		slog.Int("columns", len(table.Columns)))
	return table, nil
}
