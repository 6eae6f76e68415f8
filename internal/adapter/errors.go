package adapter

import (
	"errors"
	"fmt"
)

// Kind classifies adapter failures.
type Kind int

const (
	// KindTransport means the backend call itself failed.
	KindTransport Kind = iota + 1
	// KindResponseShape means the backend answered without the expected text.
	KindResponseShape
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindResponseShape:
		return "response shape"
	default:
		return "unknown"
	}
}

// Error is returned by every adapter when a reply could not be produced.
type Error struct {
	Backend string
	Kind    Kind
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s failure: %v", e.Backend, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func transportError(backend string, err error) error {
	return &Error{Backend: backend, Kind: KindTransport, Err: err}
}

func shapeError(backend, format string, args ...any) error {
	return &Error{Backend: backend, Kind: KindResponseShape, Err: fmt.Errorf(format, args...)}
}

func errorKind(err error) Kind {
	var adapterErr *Error
	if errors.As(err, &adapterErr) {
		return adapterErr.Kind
	}
	return 0
}

func IsTransport(err error) bool {
	var adapterErr *Error
	return errors.As(err, &adapterErr) && adapterErr.Kind == KindTransport
}

func IsResponseShape(err error) bool {
	var adapterErr *Error
	return errors.As(err, &adapterErr) && adapterErr.Kind == KindResponseShape
}
