// Package router owns the single in-flight database connection. Front ends
// hand it requests over a channel and get exactly one Envelope back per
// request, in arrival order.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/joacominatel/pgbrowse/internal/database"
	"github.com/joacominatel/pgbrowse/internal/logging"
	"github.com/joacominatel/pgbrowse/internal/query"
)

// Executor runs one statement on a fresh connection.
// *database.Manager is the production implementation.
type Executor interface {
	Execute(ctx context.Context, desc database.Descriptor, sql string) (*database.RawTable, error)
}

// State is the router's position in its request cycle.
type State int32

const (
	StateIdle State = iota
	StateExecuting
	StateResponding
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExecuting:
		return "executing"
	case StateResponding:
		return "responding"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Router is the long-lived request loop. Create it with New, start Run in
// its own goroutine and talk to it through Client.
type Router struct {
	exec   Executor
	logger *slog.Logger

	requests  chan Request
	responses chan Envelope

	abandoned   chan struct{}
	abandonOnce sync.Once
	done        chan struct{}

	state   atomic.Int32
	started atomic.Bool
	client  *Client
}

// New creates a router with capacity-1 request and response channels.
func New(exec Executor, opts ...Option) *Router {
	r := &Router{
		exec:      exec,
		logger:    logging.Discard(),
		requests:  make(chan Request, 1),
		responses: make(chan Envelope, 1),
		abandoned: make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.client = newClient(r)
	return r
}

// Client returns the caller-side handle. All callers share it.
func (r *Router) Client() *Client {
	return r.client
}

// State returns the current state.
func (r *Router) State() State {
	return State(r.state.Load())
}

// Done is closed once Run has returned.
func (r *Router) Done() <-chan struct{} {
	return r.done
}

func (r *Router) setState(s State) {
	r.state.Store(int32(s))
}

func (r *Router) abandon() {
	r.abandonOnce.Do(func() { close(r.abandoned) })
}

func (r *Router) isAbandoned() bool {
	select {
	case <-r.abandoned:
		return true
	default:
		return false
	}
}

// Run processes requests one at a time until the request channel is closed
// (returns nil), the caller abandons the response side (ErrAbandoned) or ctx
// is done.
func (r *Router) Run(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer func() {
		r.setState(StateStopped)
		close(r.responses)
		close(r.done)
	}()

	r.logger.Debug("router started")
	for {
		r.setState(StateIdle)

		var req Request
		select {
		case <-r.abandoned:
			r.logger.Info("router stopping: caller abandoned responses")
			return ErrAbandoned
		case <-ctx.Done():
			return ctx.Err()
		case next, ok := <-r.requests:
			if !ok {
				r.logger.Info("router stopping: request channel closed")
				return nil
			}
			req = next
		}

		// Nobody can receive the answer, so don't open a connection for it.
		if r.isAbandoned() {
			r.logger.Info("router stopping: caller abandoned responses",
				slog.String("request_id", req.ID.String()))
			return ErrAbandoned
		}

		env := r.execute(ctx, req)

		r.setState(StateResponding)
		if err := r.respond(ctx, env); err != nil {
			r.logger.Info("router stopping", slog.Any("reason", err))
			return err
		}
	}
}

func (r *Router) execute(ctx context.Context, req Request) Envelope {
	r.setState(StateExecuting)

	if req.Query == nil {
		return Envelope{RequestID: req.ID, Err: ErrNoQuery}
	}
	q, err := query.Normalize(req.Query)
	if err != nil {
		r.logger.Warn("rejecting request", slog.String("request_id", req.ID.String()), slog.Any("error", err))
		return Envelope{RequestID: req.ID, Err: err}
	}
	req.Query = q

	env := Envelope{
		RequestID: req.ID,
		Database:  query.TargetDatabase(req.Query),
		SQL:       query.SQLText(req.Query),
	}
	desc := query.Descriptor(req.Base, req.Query)

	log := r.logger.With(
		slog.String("request_id", req.ID.String()),
		slog.String("query", query.Name(req.Query)))
	log.Debug("executing request",
		slog.String("descriptor", logging.Mask(desc.String())),
		slog.String("sql", env.SQL))

	raw, err := r.exec.Execute(ctx, desc, env.SQL)
	if err != nil {
		log.Error("request failed", slog.String("detail", fmt.Sprintf("%+v", err)))
		env.Err = err
		return env
	}

	table := query.Classify(raw, req.Query)
	env.Table = &table
	log.Debug("request succeeded", slog.Int("rows", table.RowCount()))
	return env
}

func (r *Router) respond(ctx context.Context, env Envelope) error {
	if r.isAbandoned() {
		return ErrAbandoned
	}
	select {
	case r.responses <- env:
		return nil
	case <-r.abandoned:
		return ErrAbandoned
	case <-ctx.Done():
		return ctx.Err()
	}
}
