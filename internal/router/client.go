package router

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/joacominatel/pgbrowse/internal/database"
	"github.com/joacominatel/pgbrowse/internal/query"
)

// Client is the guarded caller side of a Router: the sending end of the
// request channel and the receiving end of the response channel. It is safe
// for concurrent use; round trips are serialized.
type Client struct {
	mu sync.Mutex // held for a whole request/response round trip

	sendMu sync.Mutex // guards requests and closed
	closed bool

	requests  chan<- Request
	responses <-chan Envelope
	stopped   <-chan struct{}
	abandon   func()
	logger    *slog.Logger
}

func newClient(r *Router) *Client {
	return &Client{
		requests:  r.requests,
		responses: r.responses,
		stopped:   r.done,
		abandon:   r.abandon,
		logger:    r.logger,
	}
}

// Do sends q against base and waits for its envelope. A *ChannelError means
// the router is gone; a failed query is reported inside the envelope.
func (c *Client) Do(ctx context.Context, base database.Descriptor, q query.Query) (Envelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := Request{ID: uuid.New(), Base: base, Query: q}
	if err := c.send(ctx, req); err != nil {
		return Envelope{}, err
	}

	for {
		select {
		case env, ok := <-c.responses:
			if !ok {
				return Envelope{}, &ChannelError{Op: "receive"}
			}
			// Left over from a caller that gave up waiting.
			if env.RequestID != req.ID {
				c.logger.Debug("discarding stale envelope",
					slog.String("request_id", env.RequestID.String()))
				continue
			}
			return env, nil
		case <-ctx.Done():
			return Envelope{}, ctx.Err()
		}
	}
}

func (c *Client) send(ctx context.Context, req Request) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return &ChannelError{Op: "send"}
	}
	select {
	case c.requests <- req:
		return nil
	case <-c.stopped:
		return &ChannelError{Op: "send"}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the request channel. The router finishes the request in
// flight, if any, and stops.
func (c *Client) Close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.requests)
	}
}

// Abandon tells the router nobody will read responses any more. The router
// stops instead of executing requests it cannot answer.
func (c *Client) Abandon() {
	c.abandon()
}
