package natsio

import (
	"context"
	"encoding/json"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/pushbridge/pkg/bridge"
	"github.com/nsyszr/pushbridge/pkg/client"
	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/pkg/errors"
)

// DefaultTimeout bounds a request when the context carries no deadline.
const DefaultTimeout = 5 * time.Second

// SendError is returned when the bridge refused a send request.
type SendError struct {
	Reason string
}

func (e *SendError) Error() string {
	return "send refused: " + e.Reason
}

type natsClient struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
}

// New returns a client sending requests on the send subject below prefix.
func New(nc *nats.Conn, prefix string) client.Interface {
	return &natsClient{
		nc:      nc,
		subject: bridge.SendSubject(prefix),
		timeout: DefaultTimeout,
	}
}

func (c *natsClient) SendToUser(ctx context.Context, userID int32, resource string, payload json.RawMessage) (int64, error) {
	return c.request(ctx, &bridge.SendRequest{
		UserID: userID,
		Kind:   model.KindObject,
		Model:  resource,
		Data:   payload,
	})
}

func (c *natsClient) Notify(ctx context.Context, userID int32, payload json.RawMessage) (int64, error) {
	return c.request(ctx, &bridge.SendRequest{
		UserID: userID,
		Kind:   model.KindNotification,
		Data:   payload,
	})
}

func (c *natsClient) request(ctx context.Context, req *bridge.SendRequest) (int64, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return 0, err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg, err := c.nc.RequestWithContext(ctx, c.subject, data)
	if err != nil {
		return 0, errors.Wrap(err, "send request failed")
	}

	reply := bridge.SendReply{}
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return 0, errors.Wrap(err, "malformed send reply")
	}
	if reply.Status != "OK" {
		return 0, &SendError{Reason: reply.ErrorReason}
	}

	return reply.MessageID, nil
}
