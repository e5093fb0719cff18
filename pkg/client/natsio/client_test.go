package natsio

import (
	"context"
	"encoding/json"
	"testing"

	natsserver "github.com/nats-io/nats-server/v2/test"
	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/pushbridge/pkg/bridge"
	"github.com/nsyszr/pushbridge/pkg/model"
)

func runServer(t *testing.T) *nats.Conn {
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	s := natsserver.RunServer(&opts)
	t.Cleanup(s.Shutdown)

	nc, err := nats.Connect(s.ClientURL())
	if err != nil {
		t.Fatalf("failed to connect: %s", err)
	}
	t.Cleanup(nc.Close)
	return nc
}

func TestClientSendsRequests(t *testing.T) {
	nc := runServer(t)

	received := make(chan bridge.SendRequest, 2)
	sub, err := nc.Subscribe(bridge.SendSubject("test"), func(msg *nats.Msg) {
		req := bridge.SendRequest{}
		json.Unmarshal(msg.Data, &req)
		received <- req

		reply := bridge.SendReply{Status: "OK", MessageID: 42}
		if req.UserID == 0 {
			reply = bridge.SendReply{Status: "ERROR", ErrorReason: "unknown user"}
		}
		data, _ := json.Marshal(&reply)
		msg.Respond(data)
	})
	if err != nil {
		t.Fatalf("subscribe failed: %s", err)
	}
	defer sub.Unsubscribe()

	c := New(nc, "test")

	id, err := c.SendToUser(context.Background(), 7, "res.partner", json.RawMessage(`{"id":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if id != 42 {
		t.Errorf("expected message id 42, got %d", id)
	}
	req := <-received
	if req.UserID != 7 || req.Kind != model.KindObject || req.Model != "res.partner" || string(req.Data) != `{"id":1}` {
		t.Errorf("unexpected request %+v", req)
	}

	_, err = c.Notify(context.Background(), 0, nil)
	if _, ok := err.(*SendError); !ok {
		t.Fatalf("expected a SendError, got %v", err)
	}
	if req := <-received; req.Kind != model.KindNotification {
		t.Errorf("expected a notification request, got %q", req.Kind)
	}
}

func TestClientWithoutBridge(t *testing.T) {
	nc := runServer(t)

	if _, err := New(nc, "test").Notify(context.Background(), 1, nil); err == nil {
		t.Fatal("expected an error without a responder")
	}
}
