package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/nsyszr/pushbridge/pkg/storage"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	oauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// GoogleChecker accepts a Google ID token as password. The token must be
// issued for clientID and belong to the e-mail address given as username,
// which has to exist in the user directory.
type GoogleChecker struct {
	store    storage.Interface
	clientID string
	opts     []option.ClientOption
}

// NewGoogleChecker returns the federated credential check.
func NewGoogleChecker(store storage.Interface, clientID string, opts ...option.ClientOption) *GoogleChecker {
	if len(opts) == 0 {
		opts = []option.ClientOption{option.WithHTTPClient(&http.Client{})}
	}
	return &GoogleChecker{
		store:    store,
		clientID: clientID,
		opts:     opts,
	}
}

// Check implements Checker.
func (c *GoogleChecker) Check(ctx context.Context, username, password string) (*Identity, error) {
	if c.clientID == "" || username == "" || password == "" {
		return nil, ErrDenied
	}

	svc, err := oauth2.NewService(ctx, c.opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create oauth2 service")
	}

	info, err := svc.Tokeninfo().IdToken(password).Context(ctx).Do()
	if err != nil {
		log.WithField("login", username).Debugf("Google token rejected: %s", err)
		return nil, ErrDenied
	}
	if info.Audience != c.clientID || !strings.EqualFold(info.Email, username) {
		return nil, ErrDenied
	}

	u, err := c.store.Users().FindByLogin(username)
	if err == storage.ErrNotFound {
		return nil, ErrDenied
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to look up user")
	}

	return identityOf(u), nil
}
