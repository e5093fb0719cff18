package auth

import (
	"context"

	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/storage"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// PasswordChecker verifies passwords against the bcrypt hashes of the user directory.
type PasswordChecker struct {
	store storage.Interface
}

// NewPasswordChecker returns the primary credential check.
func NewPasswordChecker(store storage.Interface) *PasswordChecker {
	return &PasswordChecker{store: store}
}

// Check implements Checker.
func (c *PasswordChecker) Check(ctx context.Context, username, password string) (*Identity, error) {
	if username == "" || password == "" {
		return nil, ErrDenied
	}

	u, err := c.store.Users().FindByLogin(username)
	if err == storage.ErrNotFound {
		return nil, ErrDenied
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to look up user")
	}
	if u.PasswordHash == "" {
		return nil, ErrDenied
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrDenied
	}

	return identityOf(u), nil
}

// HashPassword returns the bcrypt hash stored for a user.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "failed to hash password")
	}
	return string(hash), nil
}

func identityOf(u *model.User) *Identity {
	return &Identity{
		UserID:    u.ID,
		Name:      u.Name,
		ContactID: u.ContactID,
	}
}
