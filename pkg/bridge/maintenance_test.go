package bridge

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nsyszr/pushbridge/pkg/model"
)

func TestDeleteDeliveredPingsHonoursLimit(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 3; i++ {
		m := &model.Message{BridgeID: e.bridge.ID, Device: "dev1", Kind: model.KindPing}
		e.enqueue(t, m)
		e.store.Messages().MarkSent(m.ID, e.now)
	}
	e.enqueue(t, &model.Message{BridgeID: e.bridge.ID, Device: "dev1", Kind: model.KindPing})
	e.enqueue(t, &model.Message{BridgeID: e.bridge.ID, Device: "dev1", Kind: model.KindObject})

	m := NewMaintenance(e.store, e.sessions, 2)
	deleted, remaining, err := m.DeleteDeliveredPings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 2 || remaining != 1 {
		t.Fatalf("expected 2 deleted and 1 remaining, got %d and %d", deleted, remaining)
	}

	if n := len(e.messages(t, "")); n != 3 {
		t.Fatalf("pending pings and other kinds must be kept, %d messages left", n)
	}
}

func TestResetConnected(t *testing.T) {
	e := newEnv(t)
	e.store.Bridges().SetConnected(e.bridge.ID, true)

	n, err := NewMaintenance(e.store, e.sessions, 0).ResetConnected(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("expected one bridge reset, got %d, %v", n, err)
	}
	b, _ := e.store.Bridges().FindByID(e.bridge.ID)
	if b.Connected {
		t.Fatalf("bridge must be flagged disconnected")
	}
}

func TestMaintenanceSweeps(t *testing.T) {
	e := newEnv(t)
	sess := e.login(t, "dev1")
	m := NewMaintenance(e.store, e.sessions, 0)

	e.now = e.now.Add(40 * time.Minute)
	if err := m.SweepPing(context.Background()); err != nil {
		t.Fatalf("ping sweep failed: %v", err)
	}
	if n := len(e.messages(t, model.KindPing)); n != 1 {
		t.Fatalf("expected one ping, got %d", n)
	}

	e.now = e.now.Add(time.Hour)
	if err := m.SweepExpiry(context.Background()); err != nil {
		t.Fatalf("expiry sweep failed: %v", err)
	}
	got, _ := e.store.Sessions().FindByID(sess.ID)
	if got.Active {
		t.Fatalf("session should be flagged inactive")
	}
}

func TestSchedulerRunsJobs(t *testing.T) {
	var runs int32
	s := NewScheduler(
		Job{Name: "count", Interval: 5 * time.Millisecond, Run: func(ctx context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		}},
		Job{Name: "disabled", Run: func(ctx context.Context) error {
			t.Errorf("disabled job must not run")
			return nil
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	waitFor(t, func() bool { return atomic.LoadInt32(&runs) >= 2 })
	cancel()
	s.Wait()
}
