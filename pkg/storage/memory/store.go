package memory

import (
	"context"
	"sync"

	"github.com/nsyszr/pushbridge/pkg/storage"
)

type tables struct {
	bridges  *bridgeTable
	sessions *sessionTable
	messages *messageTable
	users    *userTable
}

// store contains all memory-based sub-stores for managing the persistent models
type store struct {
	*tables
	j *journal
}

// NewStore creates a new memory-based Storage interface
func NewStore() storage.Interface {
	return &store{
		tables: &tables{
			bridges:  newBridgeTable(),
			sessions: newSessionTable(),
			messages: newMessageTable(),
			users:    newUserTable(),
		},
	}
}

// Bridges returns a sub-store for managing the Bridge model
func (s *store) Bridges() storage.BridgeStore {
	return &bridgeStore{bridgeTable: s.bridges, sessions: s.sessions, j: s.j}
}

// Sessions returns a sub-store for managing the Session model
func (s *store) Sessions() storage.SessionStore {
	return &sessionStore{sessionTable: s.sessions, j: s.j}
}

// Messages returns a sub-store for managing the outbox Message model
func (s *store) Messages() storage.MessageStore {
	return &messageStore{messageTable: s.messages, j: s.j}
}

// Users returns a sub-store for managing the User model
func (s *store) Users() storage.UserStore {
	return &userStore{userTable: s.users, j: s.j}
}

// WithinUnit journals the writes of fn and undoes them when fn fails.
// Every write is atomic on its own and units run concurrently, so a unit
// observes the writes of other running units.
func (s *store) WithinUnit(ctx context.Context, fn func(storage.Interface) error) (err error) {
	if s.j != nil {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	j := &journal{}
	defer func() {
		if p := recover(); p != nil {
			j.rollback()
			panic(p)
		}
	}()

	if err = fn(&store{tables: s.tables, j: j}); err != nil {
		j.rollback()
	}
	return err
}

// journal collects the undo steps of one unit.
type journal struct {
	mu   sync.Mutex
	undo []func()
}

// record is a no-op outside of a unit.
func (j *journal) record(fn func()) {
	if j == nil {
		return
	}
	j.mu.Lock()
	j.undo = append(j.undo, fn)
	j.mu.Unlock()
}

func (j *journal) rollback() {
	j.mu.Lock()
	undo := j.undo
	j.undo = nil
	j.mu.Unlock()

	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}
