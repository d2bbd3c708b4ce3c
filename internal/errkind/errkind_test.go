package errkind

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"kind only", &Error{Kind: Timeout}, "timeout"},
		{"with op", &Error{Kind: Timeout, Op: "ping"}, "ping: timeout"},
		{"with cause", &Error{Kind: TransportError, Err: io.EOF}, "transport-error: EOF"},
		{"full", &Error{Kind: TransportError, Op: "download", Err: io.EOF}, "download: transport-error: EOF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOfThroughWrapping(t *testing.T) {
	base := New(ResolutionFailed, "resolve", errors.New("no such host"))
	wrapped := fmt.Errorf("ping example.invalid: %w", base)

	if got := Of(wrapped); got != ResolutionFailed {
		t.Errorf("Of(wrapped) = %q, want %q", got, ResolutionFailed)
	}
	if !Is(wrapped, ResolutionFailed) {
		t.Error("Is(wrapped, ResolutionFailed) = false, want true")
	}
	if Is(wrapped, Timeout) {
		t.Error("Is(wrapped, Timeout) = true, want false")
	}
}

func TestOfUntagged(t *testing.T) {
	if got := Of(errors.New("plain")); got != "" {
		t.Errorf("Of(untagged) = %q, want empty", got)
	}
	if got := Of(nil); got != "" {
		t.Errorf("Of(nil) = %q, want empty", got)
	}
}

func TestUnwrap(t *testing.T) {
	err := New(TransportError, "upload", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("errors.Is should see the wrapped cause")
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"kind only", New(Timeout, "ping", nil), "timeout"},
		{"cause", New(ResolutionFailed, "resolve", errors.New("Unable to resolve host")), "Unable to resolve host"},
		{"untagged", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.err); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}
