package model

import "time"

// Message kinds sent to devices.
const (
	KindLoginAck     = "login-ack"
	KindLoginNack    = "login-nack"
	KindObject       = "object"
	KindPing         = "ping"
	KindNotification = "notification"
)

// Message is one outbound item of the outbox. A message without Device is
// fanned out to every active session of UserID.
type Message struct {
	ID        int64
	BridgeID  int32
	Device    string
	UserID    int32
	Kind      string
	Model     string
	Payload   string
	CreatedAt time.Time
	SentAt    *time.Time
}

// Pending reports whether the message still awaits delivery.
func (m *Message) Pending() bool {
	return m.SentAt == nil
}
