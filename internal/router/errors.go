package router

import (
	"errors"
	"fmt"
)

// ErrAbandoned is returned by Run when the caller gave up the response side,
// so no further answers could be delivered.
var ErrAbandoned = errors.New("router: response receiver abandoned")

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("router: already running")

// ErrNoQuery is the failure marker of an envelope whose request carried no query.
var ErrNoQuery = errors.New("router: request has no query")

// ChannelError reports that the router's request or response endpoint is
// gone. It is not retried.
type ChannelError struct {
	Op string
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("router channel closed: %s", e.Op)
}
