package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/storage"
)

func TestWithinUnitCommitsOnSuccess(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	err := s.WithinUnit(ctx, func(st storage.Interface) error {
		return st.Bridges().Create(&model.Bridge{Name: "primary"})
	})
	if err != nil {
		t.Fatalf("unit failed: %v", err)
	}

	all, _ := s.Bridges().FetchAll()
	if len(all) != 1 {
		t.Fatalf("expected committed bridge, got %d", len(all))
	}
	if all[1].SessionTimeout != model.DefaultSessionTimeout {
		t.Fatalf("expected default session timeout, got %d", all[1].SessionTimeout)
	}
}

func TestWithinUnitRollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	failure := errors.New("boom")

	err := s.WithinUnit(ctx, func(st storage.Interface) error {
		if err := st.Messages().Create(&model.Message{BridgeID: 1, Kind: model.KindPing}); err != nil {
			return err
		}
		return failure
	})
	if err != failure {
		t.Fatalf("expected unit error to propagate, got %v", err)
	}

	pending, _ := s.Messages().FetchPending(1)
	if len(pending) != 0 {
		t.Fatalf("expected rollback, got %d pending messages", len(pending))
	}
}

func TestWithinUnitRollsBackOnPanic(t *testing.T) {
	s := NewStore()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = s.WithinUnit(context.Background(), func(st storage.Interface) error {
			_ = st.Users().Create(&model.User{Login: "ghost"})
			panic("handler failure")
		})
	}()

	if _, err := s.Users().FindByLogin("ghost"); err != storage.ErrNotFound {
		t.Fatalf("expected user to be rolled back, got %v", err)
	}

	// A follow-up unit still works.
	if err := s.WithinUnit(context.Background(), func(storage.Interface) error { return nil }); err != nil {
		t.Fatalf("follow-up unit failed: %v", err)
	}
}

func TestSessionStoreCloseByDevice(t *testing.T) {
	s := NewStore()
	now := time.Now()

	for _, key := range []string{"a", "b"} {
		if err := s.Sessions().Create(&model.Session{BridgeID: 1, Device: "dev-1", Key: key, LastSeenAt: &now}); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}
	if err := s.Sessions().Create(&model.Session{BridgeID: 1, Device: "dev-2", Key: "c"}); err != nil {
		t.Fatalf("create session: %v", err)
	}

	n, err := s.Sessions().CloseByDevice(1, "dev-1")
	if err != nil {
		t.Fatalf("close by device: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 closed sessions, got %d", n)
	}
	if _, err := s.Sessions().FindOpen(1, "dev-1", "a"); err != storage.ErrNotFound {
		t.Fatalf("closed session must not be found, got %v", err)
	}
	if _, err := s.Sessions().FindOpen(1, "dev-2", "c"); err != nil {
		t.Fatalf("other device session should stay open: %v", err)
	}
}

func TestMessageStoreMarkSentOnce(t *testing.T) {
	s := NewStore()
	m := &model.Message{BridgeID: 1, Device: "dev-1", Kind: model.KindPing, Payload: "{}"}
	if err := s.Messages().Create(m); err != nil {
		t.Fatalf("create message: %v", err)
	}

	first := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Messages().MarkSent(m.ID, first); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := s.Messages().MarkSent(m.ID, first.Add(time.Hour)); err != nil {
		t.Fatalf("mark sent again: %v", err)
	}

	got, _ := s.Messages().FindByID(m.ID)
	if got.SentAt == nil || !got.SentAt.Equal(first) {
		t.Fatalf("sent timestamp must be set once, got %v", got.SentAt)
	}
}

func TestMessageStoreDeleteSentHonoursLimit(t *testing.T) {
	s := NewStore()
	now := time.Now()
	for i := 0; i < 5; i++ {
		m := &model.Message{BridgeID: 1, Kind: model.KindPing}
		_ = s.Messages().Create(m)
		if i < 4 {
			_ = s.Messages().MarkSent(m.ID, now)
		}
	}

	deleted, err := s.Messages().DeleteSent(model.KindPing, 3)
	if err != nil {
		t.Fatalf("delete sent: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted, got %d", deleted)
	}
	left, _ := s.Messages().CountSent(model.KindPing)
	if left != 1 {
		t.Fatalf("expected 1 delivered ping left, got %d", left)
	}
	pending, _ := s.Messages().FetchPending(1)
	if len(pending) != 1 {
		t.Fatalf("pending ping must survive cleanup, got %d", len(pending))
	}
}

func TestBridgeDeleteRefusedWhileReferenced(t *testing.T) {
	s := NewStore()
	b := &model.Bridge{Name: "primary"}
	_ = s.Bridges().Create(b)
	_ = s.Sessions().Create(&model.Session{BridgeID: b.ID, Device: "dev-1"})

	if err := s.Bridges().Delete(b.ID); err != storage.ErrReferenced {
		t.Fatalf("expected ErrReferenced, got %v", err)
	}
}

func TestUnitsRunConcurrently(t *testing.T) {
	s := NewStore()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithinUnit(context.Background(), func(st storage.Interface) error {
			if err := st.Messages().Create(&model.Message{BridgeID: 1, Kind: model.KindPing}); err != nil {
				return err
			}
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	second := make(chan error, 1)
	go func() {
		second <- s.WithinUnit(context.Background(), func(st storage.Interface) error {
			return st.Messages().Create(&model.Message{BridgeID: 2, Kind: model.KindPing})
		})
	}()

	select {
	case err := <-second:
		if err != nil {
			t.Fatalf("second unit failed: %v", err)
		}
	case <-time.After(time.Second):
		close(release)
		t.Fatal("second unit waited for the first one")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first unit failed: %v", err)
	}
}

func TestRollbackKeepsWritesOfOtherUnits(t *testing.T) {
	s := NewStore()
	b := &model.Bridge{Name: "primary"}
	_ = s.Bridges().Create(b)
	failure := errors.New("boom")

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithinUnit(context.Background(), func(st storage.Interface) error {
			if err := st.Bridges().SetConnected(b.ID, true); err != nil {
				return err
			}
			_ = st.Messages().Create(&model.Message{BridgeID: b.ID, Kind: model.KindPing})
			close(entered)
			<-release
			return failure
		})
	}()
	<-entered

	kept := &model.Message{BridgeID: 2, Kind: model.KindPing}
	err := s.WithinUnit(context.Background(), func(st storage.Interface) error {
		return st.Messages().Create(kept)
	})
	if err != nil {
		t.Fatalf("unit failed: %v", err)
	}

	close(release)
	if err := <-done; err != failure {
		t.Fatalf("expected the unit error, got %v", err)
	}

	if got, _ := s.Bridges().FindByID(b.ID); got.Connected {
		t.Fatalf("the connected flag must be rolled back")
	}
	if pending, _ := s.Messages().FetchPending(b.ID); len(pending) != 0 {
		t.Fatalf("expected the failed unit's message to be undone, got %d", len(pending))
	}
	if _, err := s.Messages().FindByID(kept.ID); err != nil {
		t.Fatalf("the other unit's message must survive the rollback: %v", err)
	}
}

func TestRollbackRestoresDeletedRows(t *testing.T) {
	s := NewStore()
	m := &model.Message{BridgeID: 1, Kind: model.KindPing}
	_ = s.Messages().Create(m)
	_ = s.Messages().MarkSent(m.ID, time.Now())

	_ = s.WithinUnit(context.Background(), func(st storage.Interface) error {
		if n, _ := st.Messages().DeleteSent(model.KindPing, 0); n != 1 {
			t.Errorf("expected one deleted ping, got %d", n)
		}
		return errors.New("boom")
	})

	if n, _ := s.Messages().CountSent(model.KindPing); n != 1 {
		t.Fatalf("expected the deleted ping to be restored, got %d", n)
	}
}
