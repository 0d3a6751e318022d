package core

import (
	"errors"
	"fmt"
)

// Kind classifies a relay failure so adapters can map it onto their own
// status codes.
type Kind string

const (
	KindNotConnected      Kind = "NotConnected"
	KindAlreadyInProgress Kind = "AlreadyInProgress"
	KindTimeout           Kind = "Timeout"
	KindTransport         Kind = "TransportError"
	KindValidation        Kind = "ValidationError"
	KindStreamNotActive   Kind = "StreamNotActive"
	KindNoFrameAvailable  Kind = "NoFrameAvailable"
)

// Error is a classified relay error. Op names the operation that failed and
// Err, when set, is the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrNotConnected      = &Error{Kind: KindNotConnected}
	ErrAlreadyInProgress = &Error{Kind: KindAlreadyInProgress}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrTransport         = &Error{Kind: KindTransport}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrStreamNotActive   = &Error{Kind: KindStreamNotActive}
	ErrNoFrameAvailable  = &Error{Kind: KindNoFrameAvailable}
)

// NewError builds a classified error for op.
func NewError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error for op with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	s := string(e.Kind)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
