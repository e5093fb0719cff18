package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/pushbridge/pkg/auth"
	"github.com/pkg/errors"
)

type AuthorizeError struct {
	Reason  string
	Details interface{}
}

func NewAuthorizeError(reason string, details interface{}) error {
	return &AuthorizeError{
		Reason:  reason,
		Details: details,
	}
}

func (e *AuthorizeError) Error() string {
	return fmt.Sprintf("authorization failed, reason: %s", e.Reason)
}

func IsAuthorizationError(e error) bool {
	_, ok := e.(*AuthorizeError)
	return ok
}

// AuthorityClient asks a remote authority to validate credentials. It
// implements auth.Checker.
type AuthorityClient struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
}

func NewAuthorityClient(nc *nats.Conn, prefix string) *AuthorityClient {
	return &AuthorityClient{
		nc:      nc,
		subject: Subject(prefix),
		timeout: 10 * time.Second,
	}
}

func (c *AuthorityClient) Authorize(ctx context.Context, username, password string) (*AuthorizeResult, error) {
	// Request
	req := Request{
		Operation: OperationAuthorize,
		Arguments: &AuthorizeArguments{
			Username: username,
			Password: password,
		},
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	msg, err := c.nc.RequestWithContext(ctx, c.subject, data)
	if err != nil {
		return nil, errors.Wrap(err, "authority request failed")
	}

	// Response
	reply := Reply{}
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, err
	}

	switch reply.Status {
	case ReplyStatusOK:
		// Rerun Unmarshal with the proper Result type
		authResult := &AuthorizeResult{}
		reply := Reply{Result: authResult}
		if err := json.Unmarshal(msg.Data, &reply); err != nil {
			return nil, err
		}
		return authResult, nil
	case ReplyStatusAbort, ReplyStatusError:
		// Rerun Unmarshal with the proper Result type
		abortResult := &AbortResult{}
		reply := Reply{Result: abortResult}
		if err := json.Unmarshal(msg.Data, &reply); err != nil {
			return nil, err
		}
		return nil, NewAuthorizeError(abortResult.Reason, abortResult.Details)
	}
	return nil, fmt.Errorf("unexpected reply for authorization request")
}

// Check implements auth.Checker. Denials and missing authorities are
// reported as auth.ErrDenied.
func (c *AuthorityClient) Check(ctx context.Context, username, password string) (*auth.Identity, error) {
	res, err := c.Authorize(ctx, username, password)
	if err != nil {
		if e, ok := err.(*AuthorizeError); ok && e.Reason == ReasonDenied {
			return nil, auth.ErrDenied
		}
		if errors.Cause(err) == nats.ErrNoResponders {
			return nil, auth.ErrDenied
		}
		return nil, err
	}

	return &auth.Identity{
		UserID:    res.UserID,
		Name:      res.Name,
		ContactID: res.ContactID,
	}, nil
}
