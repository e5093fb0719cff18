package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// NoReplySuffix marks a method whose result must not be sent back.
const NoReplySuffix = "/noreply"

// Request is an rpc envelope as received from a device.
type Request struct {
	Model  string
	Method string
	Args   string
	Kwargs string
	UserID int32
}

// ReplyFunc receives one normalized result element.
type ReplyFunc func(model string, data []byte) error

// Authorizer decides whether a user may invoke an operation.
type Authorizer interface {
	Authorize(ctx context.Context, userID int32, model, method string) error
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, userID int32, model, method string) error

func (f AuthorizerFunc) Authorize(ctx context.Context, userID int32, model, method string) error {
	return f(ctx, userID, model, method)
}

// Dispatcher executes allow-listed operations and normalizes their results.
type Dispatcher struct {
	registry   *Registry
	authorizer Authorizer
	timeout    time.Duration
}

// NewDispatcher returns a dispatcher over registry. A nil authorizer allows
// every registered operation; a zero timeout leaves invocations unbounded.
func NewDispatcher(registry *Registry, authorizer Authorizer, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		authorizer: authorizer,
		timeout:    timeout,
	}
}

// SplitMethod strips the no-reply marker from method.
func SplitMethod(method string) (string, bool) {
	if strings.HasSuffix(method, NoReplySuffix) {
		return strings.TrimSuffix(method, NoReplySuffix), true
	}
	return method, false
}

// Invoke runs the operation named by req and passes every result element to
// reply. It returns a *DecodingError or *InvocationError for failures of the
// call itself; errors of reply are returned unchanged.
func (d *Dispatcher) Invoke(ctx context.Context, req Request, reply ReplyFunc) error {
	method, noReply := SplitMethod(req.Method)

	call := &Call{
		Model:  req.Model,
		Method: method,
		UserID: req.UserID,
	}
	if err := decodeJSON("args", req.Args, "[]", &call.Args); err != nil {
		return err
	}
	if err := decodeJSON("kwargs", req.Kwargs, "{}", &call.Kwargs); err != nil {
		return err
	}

	h, ok := d.registry.Lookup(call.Model, call.Method)
	if !ok {
		return &InvocationError{Model: call.Model, Method: call.Method, Err: ErrUnknownOperation}
	}
	if d.authorizer != nil {
		if err := d.authorizer.Authorize(ctx, call.UserID, call.Model, call.Method); err != nil {
			return &InvocationError{Model: call.Model, Method: call.Method, Err: err}
		}
	}

	result, err := d.run(ctx, h, call)
	if err != nil {
		return &InvocationError{Model: call.Model, Method: call.Method, Err: err}
	}

	if noReply {
		return nil
	}

	items, err := Normalize(result)
	if err != nil {
		return &InvocationError{Model: call.Model, Method: call.Method, Err: err}
	}

	log.WithFields(log.Fields{
		"model":   call.Model,
		"method":  call.Method,
		"results": len(items),
	}).Debug("Invocation finished")

	for _, item := range items {
		if err := reply(call.Model, item); err != nil {
			return err
		}
	}

	return nil
}

func (d *Dispatcher) run(ctx context.Context, h HandlerFunc, call *Call) (interface{}, error) {
	if d.timeout <= 0 {
		return safeCall(ctx, h, call)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := safeCall(ctx, h, call)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "operation did not finish in time")
	}
}

func safeCall(ctx context.Context, h HandlerFunc, call *Call) (result interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("operation panicked: %v", p)
		}
	}()
	return h(ctx, call)
}

func decodeJSON(field, raw, empty string, v interface{}) error {
	if strings.TrimSpace(raw) == "" {
		raw = empty
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return &DecodingError{Field: field, Err: err}
	}
	return nil
}
