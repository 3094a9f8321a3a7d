package modelloader

import (
	"errors"
	"fmt"

	"github.com/samcharles93/modelgate/internal/device"
)

// Error kinds. Every error returned by this package wraps exactly one of
// them; test with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnavailable     = errors.New("unavailable")
	ErrInternal        = errors.New("internal error")
	ErrUnsupported     = errors.New("unsupported kind")
)

// Error describes a failed operation.
type Error struct {
	Kind error
	Op   string
	Msg  string
	// Status is the device runtime return code when the failure came from
	// the runtime, and 0 otherwise.
	Status int32
}

func (e *Error) Error() string {
	return "modelloader: " + e.Op + ": " + e.Msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// statusError reports a runtime call that did not return success.
func statusError(op, what string, st device.Status) *Error {
	return &Error{
		Kind:   ErrInternal,
		Op:     op,
		Msg:    fmt.Sprintf("%s failed, runtime status %d (%s)", what, int32(st), st),
		Status: int32(st),
	}
}
