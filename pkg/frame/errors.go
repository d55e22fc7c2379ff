package frame

import (
	"errors"
	"fmt"
)

// Error kinds shared by the relay and the client. Match them with errors.Is.
var (
	// ErrInvalidInput means the request was rejected before a stream started.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamFailure means the token source failed or never completed.
	ErrUpstreamFailure = errors.New("upstream failure")

	// ErrMalformedFrame marks a block the decoder could not use. It is never
	// fatal to a stream.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrTransportFailure means the connection dropped before a clean end.
	ErrTransportFailure = errors.New("transport failure")
)

// Error attaches one of the error kinds to its underlying cause.
type Error struct {
	Kind error
	Err  error
}

// Wrap returns err tagged with kind. A nil err yields a bare kind error.
func Wrap(kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the error kind carried by err, or nil if it has none.
func KindOf(err error) error {
	for _, kind := range []error{ErrInvalidInput, ErrUpstreamFailure, ErrMalformedFrame, ErrTransportFailure} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
