package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"sync"

	"github.com/joacominatel/pgbrowse/internal/config"
	"github.com/joacominatel/pgbrowse/internal/database"
	"github.com/joacominatel/pgbrowse/internal/logging"
	"github.com/joacominatel/pgbrowse/internal/query"
	"github.com/joacominatel/pgbrowse/internal/router"
)

// Suggestion is a ready-to-run request: a base descriptor plus a query.
type Suggestion struct {
	Base  database.Descriptor
	Query query.Query
}

type suggestionJSON struct {
	Base  string          `json:"base"`
	Query json.RawMessage `json:"query"`
}

// MarshalJSON encodes the suggestion with its query in the wire form.
func (s Suggestion) MarshalJSON() ([]byte, error) {
	q, err := query.Marshal(s.Query)
	if err != nil {
		return nil, err
	}
	return json.Marshal(suggestionJSON{Base: s.Base.String(), Query: q})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (s *Suggestion) UnmarshalJSON(data []byte) error {
	var raw suggestionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	q, err := query.Unmarshal(raw.Query)
	if err != nil {
		return err
	}
	*s = Suggestion{Base: database.Descriptor(raw.Base), Query: q}
	return nil
}

// Service coordinates front-end requests and the router.
type Service struct {
	client *router.Client
	base   database.Descriptor
	logger *slog.Logger

	mu     sync.Mutex
	served int
}

// NewService creates a service sending requests through client. base is the
// descriptor used when a caller does not bring its own.
func NewService(client *router.Client, base database.Descriptor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{client: client, base: base, logger: logger}
}

// Base returns the service's default base descriptor.
func (s *Service) Base() database.Descriptor {
	return s.base
}

// SuggestQuery returns the request a fresh front end starts with: list the
// databases reachable through the default base.
func (s *Service) SuggestQuery() Suggestion {
	return Suggestion{Base: s.base, Query: query.ListDatabases{}}
}

// RunQuery performs one round trip. A failed query is reported inside the
// envelope; the returned error is set only when the router is gone or ctx
// ends first.
func (s *Service) RunQuery(ctx context.Context, sug Suggestion) (router.Envelope, error) {
	env, err := s.client.Do(ctx, sug.Base, sug.Query)
	if err != nil {
		var chErr *router.ChannelError
		if errors.As(err, &chErr) {
			s.logger.Error("router unavailable", slog.Any("error", err))
			return router.Envelope{}, &ErrUnavailable{Cause: err}
		}
		return router.Envelope{}, err
	}

	s.mu.Lock()
	s.served++
	s.mu.Unlock()

	if !env.OK() {
		s.logger.Warn("query failed",
			slog.String("request_id", env.RequestID.String()),
			slog.String("sql", env.SQL),
			slog.String("detail", fmt.Sprintf("%+v", env.Err)))
	}
	return env, nil
}

// Run is RunQuery against the default base.
func (s *Service) Run(ctx context.Context, q query.Query) (router.Envelope, error) {
	return s.RunQuery(ctx, Suggestion{Base: s.base, Query: q})
}

// Served returns how many round trips completed, failed queries included.
// Requests that never reached the router are not counted.
func (s *Service) Served() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.served
}

// LocalBase returns "host=localhost user=<current OS user>".
func LocalBase() (database.Descriptor, error) {
	name := os.Getenv("USER")
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	if name == "" {
		return "", errors.New("cannot determine the current OS user")
	}
	return database.Descriptor("host=localhost user=" + name), nil
}

// DefaultBase picks the base descriptor: the configured default profile if
// there is one, the local OS user otherwise.
func DefaultBase(cfg *config.Config, secrets config.Secrets) (database.Descriptor, error) {
	if cfg != nil {
		if conn := config.DefaultConnection(cfg); conn != nil {
			desc, err := conn.Descriptor(secrets)
			if err != nil {
				return "", &ErrConfig{Cause: err}
			}
			return desc, nil
		}
	}
	desc, err := LocalBase()
	if err != nil {
		return "", &ErrConfig{Cause: err}
	}
	return desc, nil
}
