package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nsyszr/pushbridge/pkg/auth"
	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/rpc"
	"github.com/nsyszr/pushbridge/pkg/storage"
	"github.com/nsyszr/pushbridge/pkg/storage/memory"
	"github.com/nsyszr/pushbridge/pkg/transport"
)

// fakeDialer hands out sessions whose events are driven by the test.
type fakeDialer struct {
	mu            sync.Mutex
	sessions      []*fakeSession
	emitConnected bool
	dropOnConnect bool
}

func (d *fakeDialer) Dial(p transport.Params, h transport.Handler) (transport.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := &fakeSession{d: d, params: p, q: transport.NewQueue(h, 0)}
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *fakeDialer) session(t *testing.T) *fakeSession {
	t.Helper()
	var s *fakeSession
	waitFor(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		if len(d.sessions) == 0 {
			return false
		}
		s = d.sessions[len(d.sessions)-1]
		return true
	})
	return s
}

type fakeSession struct {
	d      *fakeDialer
	params transport.Params
	q      *transport.Queue

	mu           sync.Mutex
	connects     int
	sent         []transport.Outbound
	sendErr      error
	disconnected bool
}

func (s *fakeSession) Connect(ctx context.Context) error {
	s.mu.Lock()
	s.connects++
	s.mu.Unlock()

	if s.d.emitConnected {
		s.q.Connected()
	}
	if s.d.dropOnConnect {
		s.q.Disconnected(errors.New("connection dropped"))
	}
	return nil
}

func (s *fakeSession) Process(ctx context.Context, timeout time.Duration) error {
	return s.q.Process(ctx, timeout)
}

func (s *fakeSession) Send(out transport.Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, out)
	return nil
}

func (s *fakeSession) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = true
	return nil
}

func (s *fakeSession) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

func (s *fakeSession) Sent() []transport.Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transport.Outbound(nil), s.sent...)
}

// env wires the bridge components on an in-memory store with a fixed clock.
type env struct {
	store    storage.Interface
	bridge   *model.Bridge
	user     *model.User
	outbox   *Outbox
	sessions *Sessions
	router   *Router
	now      time.Time
	invoked  int
	mu       sync.Mutex
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		store: memory.NewStore(),
		now:   time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
	}

	e.bridge = &model.Bridge{
		Name:           "default",
		Host:           "push.example.com",
		AccountID:      "1234",
		Domain:         "push.example.com",
		Secret:         "secret",
		SessionTimeout: 3600,
	}
	if err := e.store.Bridges().Create(e.bridge); err != nil {
		t.Fatalf("failed to create bridge: %v", err)
	}

	e.user = &model.User{Login: "demo", Name: "Demo User", ContactID: 42}
	if err := e.store.Users().Create(e.user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	checker := auth.CheckerFunc(func(ctx context.Context, username, password string) (*auth.Identity, error) {
		if username == "demo" && password == "s3cret" {
			return &auth.Identity{UserID: e.user.ID, Name: e.user.Name, ContactID: e.user.ContactID}, nil
		}
		return nil, auth.ErrDenied
	})

	registry := rpc.NewRegistry()
	registry.Register("res.partner", "search_read", func(ctx context.Context, call *rpc.Call) (interface{}, error) {
		e.mu.Lock()
		e.invoked++
		e.mu.Unlock()
		return []map[string]interface{}{{"id": 1}, {"id": 2}, {"id": 3}}, nil
	})
	registry.Register("res.partner", "write", func(ctx context.Context, call *rpc.Call) (interface{}, error) {
		e.mu.Lock()
		e.invoked++
		e.mu.Unlock()
		return true, nil
	})

	clock := func() time.Time { return e.now }
	e.outbox = NewOutbox()
	e.outbox.now = clock
	e.sessions = NewSessions(checker, e.outbox)
	e.sessions.now = clock
	e.sessions.newKey = sequentialKeys()
	e.router = NewRouter(e.sessions, e.outbox, rpc.NewDispatcher(registry, nil, 0))

	return e
}

func sequentialKeys() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "key" + string(rune('0'+n))
	}
}

func (e *env) invocations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.invoked
}

func (e *env) login(t *testing.T, device string) *model.Session {
	t.Helper()
	var sess *model.Session
	err := e.store.WithinUnit(context.Background(), func(st storage.Interface) error {
		var err error
		sess, err = e.sessions.Authenticate(context.Background(), st, e.bridge, device, "demo", "s3cret")
		return err
	})
	if err != nil {
		t.Fatalf("login of %s failed: %v", device, err)
	}
	return sess
}

func (e *env) route(t *testing.T, envelope transport.Envelope) {
	t.Helper()
	err := e.store.WithinUnit(context.Background(), func(st storage.Interface) error {
		return e.router.Route(context.Background(), st, e.bridge, envelope)
	})
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}
}

func (e *env) messages(t *testing.T, kind string) []model.Message {
	t.Helper()
	all, err := e.store.Messages().FetchByBridge(e.bridge.ID)
	if err != nil {
		t.Fatalf("failed to fetch messages: %v", err)
	}
	out := make([]model.Message, 0)
	for _, m := range all {
		if kind == "" || m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func decodePayload(t *testing.T, m model.Message) map[string]interface{} {
	t.Helper()
	out := make(map[string]interface{})
	if err := json.Unmarshal([]byte(m.Payload), &out); err != nil {
		t.Fatalf("malformed payload %q: %v", m.Payload, err)
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}
