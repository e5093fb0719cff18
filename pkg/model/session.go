package model

import "time"

// Session binds one device token to one authenticated user of a bridge
type Session struct {
	ID         int32
	BridgeID   int32
	Device     string
	UserID     int32
	ContactID  int32
	Key        string
	LastSeenAt *time.Time
	Closed     bool

	// Active caches the last computed liveness. IsActive is authoritative.
	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the session is open and was seen within timeout.
func (s *Session) IsActive(now time.Time, timeout time.Duration) bool {
	if s.Closed || s.LastSeenAt == nil {
		return false
	}
	return now.Sub(*s.LastSeenAt) < timeout
}
