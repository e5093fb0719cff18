// Package websocket implements the push transport over a websocket
// connection to a provider gateway. Frames are JSON text messages.
package websocket

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/nsyszr/pushbridge/pkg/transport"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Default ports used when a bridge has no port configured.
const (
	DefaultPort    = 80
	DefaultTLSPort = 443
)

// Dialer creates websocket backed sessions.
type Dialer struct {
	Path    string
	Timeout time.Duration
}

// NewDialer returns a dialer connecting to path on the bridge host.
func NewDialer(path string) *Dialer {
	return &Dialer{
		Path:    path,
		Timeout: 5 * time.Second,
	}
}

// Dial implements transport.Dialer.
func (d *Dialer) Dial(p transport.Params, h transport.Handler) (transport.Session, error) {
	if p.Host == "" {
		return nil, errors.New("bridge host is empty")
	}

	return &session{
		params:  p,
		path:    d.Path,
		timeout: d.Timeout,
		q:       transport.NewQueue(h, 0),
	}, nil
}

type session struct {
	params  transport.Params
	path    string
	timeout time.Duration
	q       *transport.Queue

	mu      sync.Mutex
	conn    net.Conn
	closing atomic.Bool
}

func (s *session) url() string {
	if s.params.UseTLS {
		return fmt.Sprintf("wss://%s%s", s.params.Address(DefaultTLSPort), s.path)
	}
	return fmt.Sprintf("ws://%s%s", s.params.Address(DefaultPort), s.path)
}

func (s *session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.closing.Store(true)
		s.conn.Close()
		s.conn = nil
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(s.params.Identity + ":" + s.params.Secret))
	dialer := ws.Dialer{
		Timeout: s.timeout,
		Header: ws.HandshakeHeaderHTTP(http.Header{
			"Authorization": []string{"Basic " + credentials},
		}),
	}

	conn, br, _, err := dialer.Dial(ctx, s.url())
	if err != nil {
		return errors.Wrapf(err, "failed to connect to %s", s.url())
	}
	if br != nil {
		// Frames sent right after the handshake may already be buffered
		conn = &bufferedConn{Conn: conn, r: br}
	}

	s.closing.Store(false)
	s.conn = conn
	s.q.Connected()

	go s.readLoop(conn)

	return nil
}

func (s *session) readLoop(conn net.Conn) {
	for {
		data, op, err := wsutil.ReadServerData(conn)
		if err != nil {
			if s.closing.Load() {
				return
			}
			log.Debugf("websocket read error: %v", err)
			s.q.Disconnected(err)
			return
		}
		if op != ws.OpText {
			continue
		}

		if err := transport.DecodeFrame(data, s.q); err != nil {
			log.Warnf("Dropped websocket frame: %s", err)
		}
	}
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
	defer s.mu.Unlock()

	if s.conn == nil {
		return errors.New("websocket is not connected")
	}
	if err := wsutil.WriteClientText(s.conn, data); err != nil {
		return errors.Wrapf(err, "failed to send message %s", out.MessageID)
	}

	return nil
}

func (s *session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closing.Store(true)
	if s.conn == nil {
		return nil
	}

	body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
	_ = wsutil.WriteClientMessage(s.conn, ws.OpClose, body)
	err := s.conn.Close()
	s.conn = nil

	return err
}

type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
