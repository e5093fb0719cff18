package resource

import (
	"time"

	"github.com/nsyszr/pushbridge/pkg/model"
)

type SessionResource struct {
	ID         int32      `json:"id"`
	BridgeID   int32      `json:"bridgeId"`
	Device     string     `json:"device"`
	UserID     int32      `json:"userId"`
	ContactID  int32      `json:"contactId"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
	Closed     bool       `json:"closed"`
	Active     bool       `json:"active"`
}

type SessionListResource struct {
	Members []*SessionResource `json:"members"`
}

// NewSession renders a session without its key. Active is derived from now.
func NewSession(m *model.Session, now time.Time, timeout time.Duration) (out *SessionResource) {
	out = &SessionResource{
		ID:         m.ID,
		BridgeID:   m.BridgeID,
		Device:     m.Device,
		UserID:     m.UserID,
		ContactID:  m.ContactID,
		LastSeenAt: m.LastSeenAt,
		Closed:     m.Closed,
		Active:     m.IsActive(now, timeout),
	}

	return // out
}

func NewSessionList(m []model.Session, now time.Time, timeout time.Duration) (out *SessionListResource) {
	out = &SessionListResource{
		Members: make([]*SessionResource, 0, len(m)),
	}

	for i := range m {
		out.Members = append(out.Members, NewSession(&m[i], now, timeout))
	}

	return // out
}
