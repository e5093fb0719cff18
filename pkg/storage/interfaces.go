package storage

import (
	"context"
	"time"

	"github.com/nsyszr/pushbridge/pkg/model"
)

// Interface is implemented by the storage
type Interface interface {
	Bridges() BridgeStore
	Sessions() SessionStore
	Messages() MessageStore
	Users() UserStore

	// WithinUnit runs fn against a transactional view of the storage. The
	// writes of fn are committed when it returns nil and rolled back when it
	// returns an error or panics. Nested calls join the outer unit.
	WithinUnit(ctx context.Context, fn func(Interface) error) error
}

// BridgeStore is responsible for managing the Bridge model
type BridgeStore interface {
	FetchAll() (map[int32]model.Bridge, error)
	FindByID(id int32) (*model.Bridge, error)
	Create(m *model.Bridge) error
	Update(m *model.Bridge) error
	SetConnected(id int32, connected bool) error
	ResetConnected() (int64, error)
	Delete(id int32) error
}

// SessionStore is responsible for managing the Session model
type SessionStore interface {
	FindByID(id int32) (*model.Session, error)
	FindOpen(bridgeID int32, device, key string) (*model.Session, error)
	FetchByBridge(bridgeID int32) ([]model.Session, error)
	FetchOpenByUser(bridgeID, userID int32) ([]model.Session, error)
	Create(m *model.Session) error
	CloseByDevice(bridgeID int32, device string) (int64, error)
	Touch(id int32, at time.Time, active bool) error
	SetActive(id int32, active bool) error
}

// MessageStore is responsible for managing the outbox Message model
type MessageStore interface {
	FindByID(id int64) (*model.Message, error)
	FetchPending(bridgeID int32) ([]model.Message, error)
	FetchByBridge(bridgeID int32) ([]model.Message, error)
	Create(m *model.Message) error
	MarkSent(id int64, at time.Time) error
	DeleteSent(kind string, limit int) (int64, error)
	CountSent(kind string) (int64, error)
}

// UserStore is responsible for managing the User model
type UserStore interface {
	FindByID(id int32) (*model.User, error)
	FindByLogin(login string) (*model.User, error)
	Create(m *model.User) error
}
