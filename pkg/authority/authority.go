package authority

import (
	"context"
	"encoding/json"
	"fmt"

	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/pushbridge/pkg/auth"
	log "github.com/sirupsen/logrus"
)

// Subject returns the request subject of the authority below prefix.
func Subject(prefix string) string {
	return prefix + ".authorize"
}

// AuthorityHandler answers authorize requests from a local credential check.
type AuthorityHandler struct {
	nc      *nats.Conn
	subject string
	checker auth.Checker
	sub     *nats.Subscription
}

func NewAuthorityHandler(nc *nats.Conn, prefix string, checker auth.Checker) *AuthorityHandler {
	return &AuthorityHandler{
		nc:      nc,
		subject: Subject(prefix),
		checker: checker,
	}
}

func (h *AuthorityHandler) Subscribe() error {
	if h.nc == nil {
		return fmt.Errorf("connection to nats is missing")
	}

	sub, err := h.nc.QueueSubscribe(h.subject, "authority", func(msg *nats.Msg) {
		data, err := h.handleAuthorizeRequest(msg.Data)
		if err != nil {
			log.Errorf("Authorize request failed: %s", err)
			reply := Reply{
				Status: ReplyStatusError,
				Result: &AbortResult{
					Reason:  ReasonTechnicalException,
					Details: &ErrorDetails{Message: err.Error()},
				},
			}
			res, _ := json.Marshal(reply)
			msg.Respond(res)
			return
		}
		msg.Respond(data)
	})
	if err != nil {
		return err
	}
	h.sub = sub

	return nil
}

func (h *AuthorityHandler) Unsubscribe() error {
	if h.sub == nil {
		return nil
	}
	return h.sub.Unsubscribe()
}

func (h *AuthorityHandler) handleAuthorizeRequest(data []byte) ([]byte, error) {
	args := &AuthorizeArguments{}
	req := Request{Arguments: args}

	if err := json.Unmarshal(data, &req); err != nil {
		// Results into a technical exception error
		return nil, err
	}

	if req.Operation != "" && req.Operation != OperationAuthorize {
		return json.Marshal(Reply{
			Status: ReplyStatusAbort,
			Result: &AbortResult{Reason: ReasonUnsupportedOperation},
		})
	}

	id, err := h.checker.Check(context.Background(), args.Username, args.Password)
	if err == auth.ErrDenied {
		log.WithField("login", args.Username).Info("Authority denied credentials")
		return json.Marshal(Reply{
			Status: ReplyStatusAbort,
			Result: &AbortResult{Reason: ReasonDenied},
		})
	} else if err != nil {
		return nil, err
	}

	return json.Marshal(Reply{
		Status: ReplyStatusOK,
		Result: &AuthorizeResult{
			UserID:    id.UserID,
			Name:      id.Name,
			ContactID: id.ContactID,
		},
	})
}
