package rpc

import (
	"fmt"

	"github.com/pkg/errors"
)

// InvocationError reports an operation that is unknown, denied or failed.
type InvocationError struct {
	Model  string
	Method string
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invocation of %s.%s failed: %s", e.Model, e.Method, e.Err)
}

func (e *InvocationError) Cause() error { return e.Err }

// DecodingError reports malformed args or kwargs of a call.
type DecodingError struct {
	Field string
	Err   error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("failed to decode %s: %s", e.Field, e.Err)
}

func (e *DecodingError) Cause() error { return e.Err }

func IsInvocationError(err error) bool {
	_, ok := err.(*InvocationError)
	return ok
}

func IsDecodingError(err error) bool {
	_, ok := err.(*DecodingError)
	return ok
}

// ErrUnknownOperation is the cause of an InvocationError for unregistered operations.
var ErrUnknownOperation = errors.New("unknown operation")
