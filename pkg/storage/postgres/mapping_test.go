package postgres

import (
	"testing"
	"time"

	"github.com/nsyszr/pushbridge/pkg/model"
)

func TestBridgeMapping(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	in := &model.Bridge{
		ID:             3,
		Name:           "default",
		Host:           "push.example.com",
		Port:           5235,
		UseTLS:         true,
		AccountID:      "1234",
		Domain:         "fcm.googleapis.com",
		Secret:         "s3cret",
		Connected:      true,
		SessionTimeout: 600,
		CreatedAt:      created,
		UpdatedAt:      created,
	}

	d := sqlDataBridge{}
	d.Scan(in)
	out := d.Model()

	if *out != *in {
		t.Fatalf("bridge changed in mapping:\n got %+v\nwant %+v", out, in)
	}
}

func TestBridgeMappingDefaultsTimestamps(t *testing.T) {
	d := sqlDataBridge{}
	d.Scan(&model.Bridge{Name: "new"})

	if d.CreatedAt.IsZero() || d.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be set, got %v and %v", d.CreatedAt, d.UpdatedAt)
	}
}

func TestSessionMapping(t *testing.T) {
	seen := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	in := &model.Session{
		ID:         9,
		BridgeID:   3,
		Device:     "token-1",
		UserID:     7,
		ContactID:  70,
		Key:        "abcd1234",
		LastSeenAt: &seen,
		Active:     true,
	}

	d := sqlDataSession{}
	d.Scan(in)
	if !d.LastSeenAt.Valid {
		t.Fatal("expected last_seen_at to be set")
	}

	out := d.Model()
	if out.ID != in.ID || out.BridgeID != in.BridgeID || out.Device != in.Device ||
		out.UserID != in.UserID || out.ContactID != in.ContactID || out.Key != in.Key ||
		out.Closed != in.Closed || out.Active != in.Active {
		t.Fatalf("session changed in mapping:\n got %+v\nwant %+v", out, in)
	}
	if out.LastSeenAt == nil || !out.LastSeenAt.Equal(seen) {
		t.Fatalf("expected last seen %v, got %v", seen, out.LastSeenAt)
	}

	d.Scan(&model.Session{Device: "token-2"})
	if d.LastSeenAt.Valid {
		t.Fatal("a session never seen must map to NULL")
	}
	if d.Model().LastSeenAt != nil {
		t.Fatal("NULL must map back to a nil LastSeenAt")
	}
}

func TestMessageMapping(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	sent := created.Add(time.Minute)
	in := &model.Message{
		ID:        11,
		BridgeID:  3,
		UserID:    7,
		Kind:      model.KindObject,
		Model:     "res.partner",
		Payload:   `{"id":1}`,
		CreatedAt: created,
		SentAt:    &sent,
	}

	d := sqlDataMessage{}
	d.Scan(in)
	if d.Device.Valid {
		t.Fatal("a fan-out message must store a NULL device")
	}
	if !d.UserID.Valid || d.ModelName != "res.partner" {
		t.Fatalf("unexpected row %+v", d)
	}

	out := d.Model()
	if out.ID != in.ID || out.BridgeID != in.BridgeID || out.Device != "" || out.UserID != in.UserID ||
		out.Kind != in.Kind || out.Model != in.Model || out.Payload != in.Payload || !out.CreatedAt.Equal(created) {
		t.Fatalf("message changed in mapping:\n got %+v\nwant %+v", out, in)
	}
	if out.SentAt == nil || !out.SentAt.Equal(sent) {
		t.Fatalf("expected sent at %v, got %v", sent, out.SentAt)
	}

	d.Scan(&model.Message{BridgeID: 3, Device: "token-1", Kind: model.KindPing})
	if !d.Device.Valid || d.UserID.Valid || d.SentAt.Valid || d.CreatedAt.IsZero() {
		t.Fatalf("unexpected row for a device message %+v", d)
	}
	if m := d.Model(); !m.Pending() || m.Device != "token-1" || m.UserID != 0 {
		t.Fatalf("unexpected device message %+v", m)
	}
}

func TestUserMapping(t *testing.T) {
	in := &model.User{
		ID:           4,
		Login:        "alice",
		PasswordHash: "$2a$10$hash",
		Name:         "Alice",
		ContactID:    40,
	}

	d := sqlDataUser{}
	d.Scan(in)
	out := d.Model()

	if out.ID != in.ID || out.Login != in.Login || out.PasswordHash != in.PasswordHash ||
		out.Name != in.Name || out.ContactID != in.ContactID {
		t.Fatalf("user changed in mapping:\n got %+v\nwant %+v", out, in)
	}
	if out.CreatedAt.IsZero() {
		t.Fatal("expected created at to be set")
	}
}
