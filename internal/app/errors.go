package app

import (
	"fmt"

	"github.com/joacominatel/pgbrowse/internal/database"
)

// ErrUnavailable reports that the router can no longer take requests.
type ErrUnavailable struct {
	Cause error
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("router unavailable: %v", e.Cause)
}

func (e *ErrUnavailable) Unwrap() error {
	return e.Cause
}

// ErrConfig represents a configuration error.
type ErrConfig struct {
	Cause error
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("config error: %v", e.Cause)
}

func (e *ErrConfig) Unwrap() error {
	return e.Cause
}

// UserMessage is the text shown to end users for any failure. Details go to
// the log only.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return database.UserMessage
}
