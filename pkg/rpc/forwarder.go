package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	nats "github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// ForwardRequest is the body sent to the backend service of an operation.
type ForwardRequest struct {
	UserID int32                      `json:"uid"`
	Args   []json.RawMessage          `json:"args"`
	Kwargs map[string]json.RawMessage `json:"kwargs"`
}

// ForwardReply is the answer of the backend service.
type ForwardReply struct {
	Status      string          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorReason string          `json:"error_reason,omitempty"`
}

// Reply statuses
const (
	ForwardStatusOK    = "OK"
	ForwardStatusError = "ERROR"
)

// Forwarder executes operations on backend services through NATS
// request/reply on <prefix>.rpc.<model>.<method>.
type Forwarder struct {
	nc     *nats.Conn
	prefix string
}

func NewForwarder(nc *nats.Conn, prefix string) *Forwarder {
	return &Forwarder{
		nc:     nc,
		prefix: prefix,
	}
}

// Subject returns the request subject of model and method.
func (f *Forwarder) Subject(model, method string) string {
	return fmt.Sprintf("%s.rpc.%s.%s", f.prefix, model, method)
}

// Handler returns a handler forwarding calls of model and method.
func (f *Forwarder) Handler(model, method string) HandlerFunc {
	subject := f.Subject(model, method)

	return func(ctx context.Context, call *Call) (interface{}, error) {
		data, err := json.Marshal(&ForwardRequest{
			UserID: call.UserID,
			Args:   call.Args,
			Kwargs: call.Kwargs,
		})
		if err != nil {
			return nil, err
		}

		msg, err := f.nc.RequestWithContext(ctx, subject, data)
		if err != nil {
			return nil, errors.Wrapf(err, "request to %s failed", subject)
		}

		reply := ForwardReply{}
		if err := json.Unmarshal(msg.Data, &reply); err != nil {
			return nil, errors.Wrap(err, "malformed reply")
		}
		if reply.Status != ForwardStatusOK {
			return nil, errors.Errorf("backend refused %s.%s: %s", model, method, reply.ErrorReason)
		}

		return reply.Result, nil
	}
}

// RegisterAll registers a forwarding handler for every model:method in operations.
func (f *Forwarder) RegisterAll(r *Registry, operations []string) error {
	for _, op := range operations {
		model, method, err := ParseOperation(op)
		if err != nil {
			return err
		}
		r.Register(model, method, f.Handler(model, method))
	}
	return nil
}
