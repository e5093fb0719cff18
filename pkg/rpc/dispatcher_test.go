package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type collected struct {
	model string
	data  string
}

func collect(out *[]collected) ReplyFunc {
	return func(model string, data []byte) error {
		*out = append(*out, collected{model, string(data)})
		return nil
	}
}

func newTestRegistry(result interface{}) *Registry {
	r := NewRegistry()
	r.Register("res.partner", "search_read", func(ctx context.Context, call *Call) (interface{}, error) {
		return result, nil
	})
	return r
}

func TestInvokeNoReplySuppressesResult(t *testing.T) {
	d := NewDispatcher(newTestRegistry([]int{1, 2, 3}), nil, 0)

	var out []collected
	err := d.Invoke(context.Background(), Request{Model: "res.partner", Method: "search_read" + NoReplySuffix}, collect(&out))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("no-reply invocation must not produce results, got %v", out)
	}
}

func TestInvokeEmptyAndBooleanResults(t *testing.T) {
	for _, result := range []interface{}{nil, true, false, "", []interface{}{}, map[string]interface{}{}, "[]", json.RawMessage("null")} {
		d := NewDispatcher(newTestRegistry(result), nil, 0)

		var out []collected
		if err := d.Invoke(context.Background(), Request{Model: "res.partner", Method: "search_read"}, collect(&out)); err != nil {
			t.Fatalf("result %#v: unexpected error: %v", result, err)
		}
		if len(out) != 0 {
			t.Fatalf("result %#v: expected no replies, got %v", result, out)
		}
	}
}

func TestInvokeCollectionFansOut(t *testing.T) {
	records := []map[string]interface{}{
		{"id": 1, "name": "a"},
		{"id": 2, "name": "b"},
		{"id": 3, "name": "c"},
	}
	d := NewDispatcher(newTestRegistry(records), nil, 0)

	var out []collected
	if err := d.Invoke(context.Background(), Request{Model: "res.partner", Method: "search_read"}, collect(&out)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 replies, got %d", len(out))
	}
	if out[0].model != "res.partner" || out[0].data != `{"id":1,"name":"a"}` {
		t.Fatalf("unexpected first reply %+v", out[0])
	}
}

func TestInvokeParsesJSONStringResult(t *testing.T) {
	d := NewDispatcher(newTestRegistry(`{"b":2,"a":1}`), nil, 0)

	var out []collected
	if err := d.Invoke(context.Background(), Request{Model: "res.partner", Method: "search_read"}, collect(&out)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].data != `{"a":1,"b":2}` {
		t.Fatalf("expected one canonical record, got %v", out)
	}
}

func TestInvokePassesDecodedArguments(t *testing.T) {
	r := NewRegistry()
	var got *Call
	r.Register("res.partner", "write", func(ctx context.Context, call *Call) (interface{}, error) {
		got = call
		return true, nil
	})
	d := NewDispatcher(r, nil, 0)

	req := Request{Model: "res.partner", Method: "write", Args: `[[7], {"name": "x"}]`, UserID: 4}
	if err := d.Invoke(context.Background(), req, collect(new([]collected))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != 4 || len(got.Args) != 2 || got.Kwargs == nil || len(got.Kwargs) != 0 {
		t.Fatalf("unexpected call %+v", got)
	}
}

func TestInvokeRejectsMalformedArguments(t *testing.T) {
	d := NewDispatcher(newTestRegistry(1), nil, 0)

	err := d.Invoke(context.Background(), Request{Model: "res.partner", Method: "search_read", Args: "{oops"}, collect(new([]collected)))
	if !IsDecodingError(err) {
		t.Fatalf("expected a DecodingError, got %v", err)
	}
	err = d.Invoke(context.Background(), Request{Model: "res.partner", Method: "search_read", Kwargs: "[1]"}, collect(new([]collected)))
	if !IsDecodingError(err) {
		t.Fatalf("expected a DecodingError for kwargs, got %v", err)
	}
}

func TestInvokeRejectsUnknownAndDenied(t *testing.T) {
	d := NewDispatcher(newTestRegistry(1), nil, 0)
	err := d.Invoke(context.Background(), Request{Model: "res.users", Method: "unlink"}, collect(new([]collected)))
	if !IsInvocationError(err) {
		t.Fatalf("expected an InvocationError, got %v", err)
	}

	deny := AuthorizerFunc(func(ctx context.Context, userID int32, model, method string) error {
		return errors.New("access denied")
	})
	d = NewDispatcher(newTestRegistry(1), deny, 0)
	err = d.Invoke(context.Background(), Request{Model: "res.partner", Method: "search_read"}, collect(new([]collected)))
	if !IsInvocationError(err) {
		t.Fatalf("expected an InvocationError for denied access, got %v", err)
	}
}

func TestInvokeRecoversHandlerPanic(t *testing.T) {
	r := NewRegistry()
	r.Register("m", "boom", func(ctx context.Context, call *Call) (interface{}, error) {
		panic("boom")
	})
	err := NewDispatcher(r, nil, 0).Invoke(context.Background(), Request{Model: "m", Method: "boom"}, collect(new([]collected)))
	if !IsInvocationError(err) {
		t.Fatalf("expected an InvocationError, got %v", err)
	}
}

func TestInvokeTimeout(t *testing.T) {
	r := NewRegistry()
	release := make(chan struct{})
	defer close(release)
	r.Register("m", "slow", func(ctx context.Context, call *Call) (interface{}, error) {
		<-release
		return 1, nil
	})

	start := time.Now()
	err := NewDispatcher(r, nil, 20*time.Millisecond).Invoke(context.Background(), Request{Model: "m", Method: "slow"}, collect(new([]collected)))
	if !IsInvocationError(err) {
		t.Fatalf("expected an InvocationError, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("invocation was not bounded by the timeout")
	}
}

func TestReplyErrorIsReturned(t *testing.T) {
	d := NewDispatcher(newTestRegistry([]int{1}), nil, 0)
	boom := errors.New("storage down")
	err := d.Invoke(context.Background(), Request{Model: "res.partner", Method: "search_read"}, func(string, []byte) error {
		return boom
	})
	if err != boom {
		t.Fatalf("expected the reply error, got %v", err)
	}
}

func TestParseOperation(t *testing.T) {
	model, method, err := ParseOperation("res.partner:search_read")
	if err != nil || model != "res.partner" || method != "search_read" {
		t.Fatalf("unexpected parse result %q %q %v", model, method, err)
	}
	for _, bad := range []string{"", "res.partner", ":read", "res.partner:"} {
		if _, _, err := ParseOperation(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
