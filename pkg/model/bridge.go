package model

import "time"

// DefaultSessionTimeout is applied to bridges created without a timeout, in seconds.
const DefaultSessionTimeout = 60 * 60

// Bridge is one configured connection account of the push transport
type Bridge struct {
	ID             int32
	Name           string
	Host           string
	Port           int
	UseTLS         bool
	AccountID      string
	Domain         string
	Secret         string
	Connected      bool
	SessionTimeout int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Identity returns the account identity used to log in to the transport.
func (b *Bridge) Identity() string {
	return b.AccountID + "@" + b.Domain
}

// Timeout returns the session timeout as a duration.
func (b *Bridge) Timeout() time.Duration {
	return time.Duration(b.SessionTimeout) * time.Second
}
