package gospot

import (
	"errors"
	"fmt"

	"github.com/gospot-dev/gospot/internal/spirc"
	"github.com/gospot-dev/gospot/internal/zeroconf"
)

// Kind classifies a boundary error.
type Kind int

const (
	// KindInit covers failures constructing or configuring a handle.
	KindInit Kind = iota
	// KindDiscovery covers failures of the zeroconf pairing session.
	KindDiscovery
	// KindCommand covers failures of controller commands and queries.
	KindCommand
	// KindTask covers failures of the running connect task.
	KindTask
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "init"
	case KindDiscovery:
		return "discovery"
	case KindCommand:
		return "command"
	case KindTask:
		return "task"
	default:
		return "unknown"
	}
}

// Error carries a kind and a user-visible message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// WrapError creates an Error with an underlying cause.
func WrapError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Sentinel errors surfaced through the boundary. Compare with errors.Is.
var (
	// ErrNotReady is returned by commands issued before the connect
	// engine has established its session.
	ErrNotReady = spirc.ErrNotReady
	// ErrClosed is returned when a handle is used after its Close.
	ErrClosed = errors.New("handle is closed")
	// ErrDiscoveryEnded is returned by Discovery.Next forever once the
	// pairing session has been closed.
	ErrDiscoveryEnded = zeroconf.ErrEnded
	// ErrTaskConsumed is returned by a second SpircTask.Run.
	ErrTaskConsumed = spirc.ErrTaskConsumed
)
