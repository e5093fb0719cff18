package bridge

import (
	"context"

	"github.com/nsyszr/pushbridge/pkg/auth"
	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/rpc"
	"github.com/nsyszr/pushbridge/pkg/storage"
	"github.com/nsyszr/pushbridge/pkg/transport"
	log "github.com/sirupsen/logrus"
)

// Inbound envelope types
const (
	TypeLogin = "login"
	TypeRPC   = "rpc"
)

// Router classifies inbound envelopes and hands them to the session
// registry or the dispatcher.
type Router struct {
	sessions   *Sessions
	outbox     *Outbox
	dispatcher *rpc.Dispatcher
}

func NewRouter(sessions *Sessions, outbox *Outbox, dispatcher *rpc.Dispatcher) *Router {
	return &Router{
		sessions:   sessions,
		outbox:     outbox,
		dispatcher: dispatcher,
	}
}

// Route handles one envelope within the unit of work st. Denied logins,
// unauthorized envelopes and failed invocations are logged and swallowed;
// persistence failures are returned.
func (r *Router) Route(ctx context.Context, st storage.Interface, b *model.Bridge, e transport.Envelope) error {
	typ := e.Data["type"]
	logger := log.WithFields(log.Fields{
		"bridge": b.ID,
		"device": e.From,
		"type":   typ,
	})

	if typ == "" {
		logger.Debug("Ignored envelope without type")
		recordInbound(b.ID, typ, "ignored")
		return nil
	}

	if typ == TypeLogin {
		_, err := r.sessions.Authenticate(ctx, st, b, e.From, e.Data["username"], e.Data["password"])
		if err == auth.ErrDenied {
			recordInbound(b.ID, typ, "denied")
			return nil
		} else if err != nil {
			return err
		}
		recordInbound(b.ID, typ, "accepted")
		return nil
	}

	sess, err := r.sessions.Lookup(st, b, e.From, e.Data["key"])
	if err != nil {
		return err
	}
	if sess == nil {
		logger.Warn("Dropped envelope without valid session")
		recordInbound(b.ID, typ, "unauthorized")
		return nil
	}

	if err := r.sessions.Touch(st, b, sess); err != nil {
		return err
	}

	switch typ {
	case TypeRPC:
		err := r.dispatch(ctx, st, b, sess, e)
		if rpc.IsInvocationError(err) || rpc.IsDecodingError(err) {
			logger.WithField("method", e.Data["method"]).Warnf("Invocation dropped: %s", err)
			recordInbound(b.ID, typ, "failed")
			return nil
		} else if err != nil {
			return err
		}
		recordInbound(b.ID, typ, "accepted")
	default:
		logger.Debug("Ignored envelope of unknown type")
		recordInbound(b.ID, typ, "ignored")
	}

	return nil
}

func (r *Router) dispatch(ctx context.Context, st storage.Interface, b *model.Bridge, sess *model.Session, e transport.Envelope) error {
	req := rpc.Request{
		Model:  e.Data["model"],
		Method: e.Data["method"],
		Args:   e.Data["args"],
		Kwargs: e.Data["kwargs"],
		UserID: sess.UserID,
	}

	return r.dispatcher.Invoke(ctx, req, func(resource string, data []byte) error {
		return r.outbox.Enqueue(st, &model.Message{
			BridgeID: b.ID,
			Device:   e.From,
			UserID:   sess.UserID,
			Kind:     model.KindObject,
			Model:    resource,
			Payload:  string(data),
		})
	})
}
