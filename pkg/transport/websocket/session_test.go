package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/nsyszr/pushbridge/pkg/transport"
)

type recorder struct {
	mu           sync.Mutex
	connected    int
	disconnected int
	messages     []transport.Envelope
}

func (r *recorder) OnConnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected++
}

func (r *recorder) OnDisconnected(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected++
}

func (r *recorder) OnReceipt(rc transport.Receipt) {}

func (r *recorder) OnMessage(e transport.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, e)
}

type gateway struct {
	auth     chan string
	received chan transport.Frame
}

func (g *gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.auth <- r.Header.Get("Authorization")

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return
	}

	wsutil.WriteServerText(conn, []byte(`{"message_id":"m1","from":"dev1","data":{"type":"rpc"}}`))

	data, err := wsutil.ReadClientText(conn)
	if err == nil {
		var f transport.Frame
		json.Unmarshal(data, &f)
		g.received <- f
	}
	conn.Close()
}

func TestSessionRoundTrip(t *testing.T) {
	g := &gateway{auth: make(chan string, 1), received: make(chan transport.Frame, 1)}
	srv := httptest.NewServer(g)
	defer srv.Close()

	host, port, _ := net.SplitHostPort(srv.Listener.Addr().String())
	portNum, _ := strconv.Atoi(port)

	rec := &recorder{}
	sess, err := NewDialer("/push/v1").Dial(transport.Params{
		Host:     host,
		Port:     portNum,
		Identity: "1234@push.example.com",
		Secret:   "secret",
	}, rec)
	if err != nil {
		t.Fatalf("unexpected dial error: %v", err)
	}
	if err := sess.Connect(context.Background()); err != nil {
		t.Fatalf("unexpected connect error: %v", err)
	}

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("1234@push.example.com:secret"))
	if got := <-g.auth; got != want {
		t.Fatalf("unexpected authorization header %q", got)
	}

	sess.Process(context.Background(), 100*time.Millisecond)

	rec.mu.Lock()
	if rec.connected != 1 || len(rec.messages) != 1 || rec.messages[0].From != "dev1" {
		rec.mu.Unlock()
		t.Fatalf("unexpected events: connected=%d messages=%+v", rec.connected, rec.messages)
	}
	rec.mu.Unlock()

	if err := sess.Send(transport.Outbound{To: "dev1", MessageID: "7", Data: map[string]string{"type": "ping"}}); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	select {
	case f := <-g.received:
		if f.To != "dev1" || f.MessageID != "7" {
			t.Fatalf("unexpected frame %+v", f)
		}
	case <-time.After(time.Second):
		t.Fatalf("gateway did not receive the downstream frame")
	}

	// The gateway closes the connection after one frame
	sess.Process(context.Background(), 200*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.disconnected != 1 {
		t.Fatalf("expected a disconnected event, got %d", rec.disconnected)
	}
}
