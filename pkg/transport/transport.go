// Package transport abstracts the persistent push channel a bridge keeps open
// to its messaging provider. Implementations deliver lifecycle and inbound
// events to a Handler only from within Session.Process, on the caller's
// goroutine.
package transport

import (
	"context"
	"net"
	"strconv"
	"time"
)

// Params are the connection settings of one bridge account.
type Params struct {
	Host     string
	Port     int
	UseTLS   bool
	Account  string
	Identity string
	Secret   string
}

// Address joins host and port, falling back to defaultPort when no port is set.
func (p Params) Address(defaultPort int) string {
	port := p.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(port))
}

// Envelope is an inbound upstream message of a device.
type Envelope struct {
	MessageID string
	From      string
	Data      map[string]string
}

// Receipt is a delivery acknowledgement reported by the provider.
type Receipt struct {
	MessageID string
	From      string
	Status    string
}

// Outbound is a downstream message addressed to one device token.
type Outbound struct {
	To        string
	MessageID string
	Data      map[string]string
}

// Handler receives the events of a Session.
type Handler interface {
	OnConnected()
	OnDisconnected(err error)
	OnReceipt(r Receipt)
	OnMessage(e Envelope)
}

// Session is one connection of a bridge to its provider.
type Session interface {
	// Connect establishes the connection. A successful connect is reported
	// to the handler as a connected event on the next Process call.
	Connect(ctx context.Context) error
	// Process dispatches pending events to the handler until timeout
	// elapses or ctx is done.
	Process(ctx context.Context, timeout time.Duration) error
	// Send writes one downstream message.
	Send(out Outbound) error
	// Disconnect closes the connection without emitting a disconnected event.
	Disconnect() error
}

// Dialer creates sessions for bridge accounts.
type Dialer interface {
	Dial(p Params, h Handler) (Session, error)
}
