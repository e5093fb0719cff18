// Package natsio implements the push transport on top of a NATS server. Each
// bridge account authenticates with its identity and secret and exchanges
// frames on subjects below <prefix>.<account>.
package natsio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/pushbridge/pkg/transport"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultPort is used when a bridge has no port configured.
const DefaultPort = 4222

// Dialer creates NATS backed sessions.
type Dialer struct {
	SubjectPrefix string
	Timeout       time.Duration
}

// NewDialer returns a dialer publishing below prefix.
func NewDialer(prefix string) *Dialer {
	return &Dialer{
		SubjectPrefix: prefix,
		Timeout:       5 * time.Second,
	}
}

// Dial implements transport.Dialer.
func (d *Dialer) Dial(p transport.Params, h transport.Handler) (transport.Session, error) {
	if p.Host == "" {
		return nil, errors.New("bridge host is empty")
	}
	if p.Account == "" {
		return nil, errors.New("bridge account is empty")
	}

	return &session{
		params:  p,
		timeout: d.Timeout,
		subject: fmt.Sprintf("%s.%s", d.SubjectPrefix, p.Account),
		q:       transport.NewQueue(h, 0),
	}, nil
}

// UpstreamSubject returns the subject devices of account publish to.
func UpstreamSubject(prefix, account string) string {
	return fmt.Sprintf("%s.%s.upstream", prefix, account)
}

// DownstreamSubject returns the subject messages to devices of account are published on.
func DownstreamSubject(prefix, account string) string {
	return fmt.Sprintf("%s.%s.downstream", prefix, account)
}

type session struct {
	params  transport.Params
	timeout time.Duration
	subject string
	q       *transport.Queue

	mu sync.Mutex
	nc *nats.Conn
	// closing belongs to nc and silences its disconnect callback once the
	// connection is closed on purpose.
	closing *atomic.Bool
}

func (s *session) url() string {
	scheme := "nats"
	if s.params.UseTLS {
		scheme = "tls"
	}
	return fmt.Sprintf("%s://%s", scheme, s.params.Address(DefaultPort))
}

func (s *session) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nc != nil {
		s.closing.Store(true)
		s.nc.Close()
		s.nc = nil
	}

	closing := &atomic.Bool{}
	nc, err := nats.Connect(s.url(),
		nats.Name("pushbridge "+s.params.Identity),
		nats.UserInfo(s.params.Identity, s.params.Secret),
		nats.Timeout(s.timeout),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if closing.Load() {
				return
			}
			s.q.Disconnected(err)
		}),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to %s", s.url())
	}

	if _, err := nc.Subscribe(s.subject+".upstream", func(msg *nats.Msg) {
		if err := transport.DecodeFrame(msg.Data, s.q); err != nil {
			log.WithField("subject", msg.Subject).Warnf("Dropped upstream frame: %s", err)
		}
	}); err != nil {
		closing.Store(true)
		nc.Close()
		return errors.Wrap(err, "failed to subscribe upstream")
	}

	s.nc = nc
	s.closing = closing
	s.q.Connected()

	return nil
}

func (s *session) Process(ctx context.Context, timeout time.Duration) error {
	return s.q.Process(ctx, timeout)
}

func (s *session) Send(out transport.Outbound) error {
	data, err := transport.EncodeOutbound(out)
	if err != nil {
		return errors.Wrap(err, "failed to encode downstream message")
	}

	s.mu.Lock()
	nc := s.nc
	s.mu.Unlock()

	if nc == nil {
		return nats.ErrConnectionClosed
	}
	if err := nc.Publish(s.subject+".downstream", data); err != nil {
		return errors.Wrapf(err, "failed to send message %s", out.MessageID)
	}

	return nil
}

func (s *session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nc == nil {
		return nil
	}
	s.closing.Store(true)

	err := s.nc.Drain()
	if err != nil {
		s.nc.Close()
	}
	s.nc = nil

	return err
}
