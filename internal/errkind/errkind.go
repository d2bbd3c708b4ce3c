package errkind

import (
	"errors"
	"fmt"
)

// Kind is the failure classification surfaced to the UI in result fields.
type Kind string

const (
	ResolutionFailed    Kind = "resolution-failed"
	SocketUnavailable   Kind = "socket-unavailable"
	Timeout             Kind = "timeout"
	TransportError      Kind = "transport-error"
	InvalidDomain       Kind = "invalid-domain"
	InvalidServer       Kind = "invalid-server"
	InvalidInput        Kind = "invalid-input"
	UnsupportedPlatform Kind = "unsupported-platform"
	UpdateCheckFailed   Kind = "update-check-failed"
	InvalidResponse     Kind = "invalid-response"
)

// Error tags an underlying error with a Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil && e.Op == "":
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an *Error for kind k.
func New(k Kind, op string, err error) error {
	return &Error{Kind: k, Op: op, Err: err}
}

// Of returns the Kind carried by err, or "" if err is nil or untagged.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries kind k.
func Is(err error, k Kind) bool {
	return err != nil && Of(err) == k
}

// Message returns the text a UI should show for err: the cause's message when
// one is wrapped, otherwise the kind itself.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Err != nil {
			return e.Err.Error()
		}
		return string(e.Kind)
	}
	return err.Error()
}
