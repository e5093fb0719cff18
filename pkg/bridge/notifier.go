package bridge

import (
	"context"
	"encoding/json"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/storage"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Notifier lets the rest of the backend push data to users through the
// default bridge.
type Notifier struct {
	store         storage.Interface
	outbox        *Outbox
	defaultBridge int32
	now           func() time.Time
}

func NewNotifier(store storage.Interface, outbox *Outbox, defaultBridge int32) *Notifier {
	return &Notifier{
		store:         store,
		outbox:        outbox,
		defaultBridge: defaultBridge,
		now:           time.Now,
	}
}

// DefaultBridge returns the configured default bridge.
func (n *Notifier) DefaultBridge() (*model.Bridge, error) {
	if n.defaultBridge == 0 {
		return nil, ErrNoDefaultBridge
	}
	return n.store.Bridges().FindByID(n.defaultBridge)
}

// SendToUser enqueues an object message for every active session of userID.
// Nothing is enqueued unless the default bridge is connected.
func (n *Notifier) SendToUser(ctx context.Context, userID int32, resource string, payload []byte) (*model.Message, error) {
	return n.send(ctx, userID, model.KindObject, resource, payload)
}

// Notify enqueues a notification message for every active session of userID.
func (n *Notifier) Notify(ctx context.Context, userID int32, payload []byte) (*model.Message, error) {
	return n.send(ctx, userID, model.KindNotification, "", payload)
}

func (n *Notifier) send(ctx context.Context, userID int32, kind, resource string, payload []byte) (*model.Message, error) {
	if len(payload) > 0 && !json.Valid(payload) {
		return nil, errors.New("payload is not valid JSON")
	}

	b, err := n.DefaultBridge()
	if err != nil {
		return nil, err
	}
	if !b.Connected {
		return nil, ErrNotConnected
	}

	m := &model.Message{
		BridgeID: b.ID,
		UserID:   userID,
		Kind:     kind,
		Model:    resource,
		Payload:  string(payload),
	}
	err = n.store.WithinUnit(ctx, func(st storage.Interface) error {
		return n.outbox.Enqueue(st, m)
	})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// IsReachable reports whether userID has an active session on the default bridge.
func (n *Notifier) IsReachable(ctx context.Context, userID int32) (bool, error) {
	b, err := n.DefaultBridge()
	if err != nil {
		return false, err
	}

	sessions, err := n.store.Sessions().FetchOpenByUser(b.ID, userID)
	if err != nil {
		return false, err
	}

	now := n.now()
	for _, sess := range sessions {
		if sess.IsActive(now, b.Timeout()) {
			return true, nil
		}
	}

	return false, nil
}

// SendRequest is the body of a send request received over NATS.
type SendRequest struct {
	UserID int32           `json:"uid"`
	Kind   string          `json:"type,omitempty"`
	Model  string          `json:"model,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// SendReply answers a SendRequest.
type SendReply struct {
	Status      string `json:"status"`
	MessageID   int64  `json:"message_id,omitempty"`
	ErrorReason string `json:"error_reason,omitempty"`
}

// SendSubject returns the subject send requests are accepted on.
func SendSubject(prefix string) string {
	return prefix + ".send"
}

// Subscribe serves send requests on <prefix>.send.
func (n *Notifier) Subscribe(nc *nats.Conn, prefix string) (*nats.Subscription, error) {
	return nc.QueueSubscribe(SendSubject(prefix), "pushbridge", func(msg *nats.Msg) {
		reply := n.handleSendRequest(msg.Data)
		data, _ := json.Marshal(&reply)
		if msg.Reply != "" {
			msg.Respond(data)
		}
	})
}

func (n *Notifier) handleSendRequest(data []byte) SendReply {
	req := SendRequest{}
	if err := json.Unmarshal(data, &req); err != nil {
		return SendReply{Status: "ERROR", ErrorReason: "malformed request"}
	}

	var (
		m   *model.Message
		err error
	)
	switch req.Kind {
	case "", model.KindObject:
		m, err = n.SendToUser(context.Background(), req.UserID, req.Model, req.Data)
	case model.KindNotification:
		m, err = n.Notify(context.Background(), req.UserID, req.Data)
	default:
		return SendReply{Status: "ERROR", ErrorReason: "unsupported type " + req.Kind}
	}
	if err != nil {
		log.WithField("uid", req.UserID).Warnf("Send request failed: %s", err)
		return SendReply{Status: "ERROR", ErrorReason: err.Error()}
	}

	return SendReply{Status: "OK", MessageID: m.ID}
}
