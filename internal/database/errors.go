package database

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"
)

// UserMessage is the only failure text shown to end users.
const UserMessage = "An error occurred, please try again"

// ConnectionError reports that opening the connection or running the
// statement failed. Dial, protocol and SQL failures all share this kind.
//
// Error returns the generic user message; format with %+v to get the
// operation, source location and cause.
type ConnectionError struct {
	Op       string
	Location string
	Cause    error
}

func newConnectionError(op string, cause error) *ConnectionError {
	loc := "unknown"
	if _, file, line, ok := runtime.Caller(1); ok {
		loc = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	return &ConnectionError{Op: op, Location: loc, Cause: cause}
}

func (e *ConnectionError) Error() string {
	return UserMessage
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// Detail returns the developer-facing description.
func (e *ConnectionError) Detail() string {
	return fmt.Sprintf("connection error: %s at %s: %v", e.Op, e.Location, e.Cause)
}

// Format implements fmt.Formatter so that %+v prints Detail.
func (e *ConnectionError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = io.WriteString(s, e.Detail())
			return
		}
		fallthrough
	case 's':
		_, _ = io.WriteString(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}
