package rpc

import (
	"context"
	"encoding/json"
	"testing"

	natsserver "github.com/nats-io/nats-server/v2/test"
	nats "github.com/nats-io/nats.go"
)

func TestForwarderRoundTrip(t *testing.T) {
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	s := natsserver.RunServer(&opts)
	defer s.Shutdown()

	nc, err := nats.Connect(s.ClientURL())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer nc.Close()

	f := NewForwarder(nc, "test.v1")
	nc.Subscribe(f.Subject("res.partner", "search_read"), func(msg *nats.Msg) {
		var req ForwardRequest
		json.Unmarshal(msg.Data, &req)
		if req.UserID != 2 {
			data, _ := json.Marshal(&ForwardReply{Status: ForwardStatusError, ErrorReason: "access denied"})
			msg.Respond(data)
			return
		}
		data, _ := json.Marshal(&ForwardReply{Status: ForwardStatusOK, Result: json.RawMessage(`[{"id":1},{"id":2}]`)})
		msg.Respond(data)
	})
	nc.Flush()

	r := NewRegistry()
	if err := f.RegisterAll(r, []string{"res.partner:search_read"}); err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}
	d := NewDispatcher(r, nil, 0)

	var out []collected
	if err := d.Invoke(context.Background(), Request{Model: "res.partner", Method: "search_read", UserID: 2}, collect(&out)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || out[1].data != `{"id":2}` {
		t.Fatalf("unexpected replies %v", out)
	}

	err = d.Invoke(context.Background(), Request{Model: "res.partner", Method: "search_read", UserID: 3}, collect(&out))
	if !IsInvocationError(err) {
		t.Fatalf("expected an InvocationError for a refused call, got %v", err)
	}
}
