package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/storage"
)

type sessionTable struct {
	store  map[int32]model.Session
	nextID int32
	sync.RWMutex
}

type sessionStore struct {
	*sessionTable
	j *journal
}

func newSessionTable() *sessionTable {
	return &sessionTable{
		store:  make(map[int32]model.Session),
		nextID: 1,
	}
}

func (t *sessionTable) restore(id int32, prev model.Session, existed bool) {
	t.Lock()
	defer t.Unlock()
	if existed {
		t.store[id] = prev
	} else {
		delete(t.store, id)
	}
}

func (t *sessionTable) filter(match func(m *model.Session) bool) []model.Session {
	t.RLock()
	defer t.RUnlock()

	out := make([]model.Session, 0)
	for _, m := range t.store {
		if match(&m) {
			out = append(out, m)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})

	return out
}

func (t *sessionTable) countByBridge(bridgeID int32) int {
	return len(t.filter(func(m *model.Session) bool {
		return m.BridgeID == bridgeID
	}))
}

// remember journals the current row of id. Must be called with the lock held.
func (s *sessionStore) remember(id int32) {
	prev, existed := s.store[id]
	s.j.record(func() { s.restore(id, prev, existed) })
}

func (s *sessionStore) FindByID(id int32) (*model.Session, error) {
	s.RLock()
	defer s.RUnlock()
	if m, ok := s.store[id]; ok {
		return &m, nil
	}

	return nil, storage.ErrNotFound
}

func (s *sessionStore) FindOpen(bridgeID int32, device, key string) (*model.Session, error) {
	s.RLock()
	defer s.RUnlock()

	for _, m := range s.store {
		if m.BridgeID == bridgeID && m.Device == device && m.Key == key && !m.Closed {
			return &m, nil
		}
	}

	return nil, storage.ErrNotFound
}

func (s *sessionStore) FetchByBridge(bridgeID int32) ([]model.Session, error) {
	return s.filter(func(m *model.Session) bool {
		return m.BridgeID == bridgeID
	}), nil
}

func (s *sessionStore) FetchOpenByUser(bridgeID, userID int32) ([]model.Session, error) {
	return s.filter(func(m *model.Session) bool {
		return m.BridgeID == bridgeID && m.UserID == userID && !m.Closed
	}), nil
}

func (s *sessionStore) Create(m *model.Session) error {
	s.Lock()
	defer s.Unlock()

	m.ID = s.nextID
	s.nextID++
	m.CreatedAt = time.Now().Round(time.Second).UTC()
	m.UpdatedAt = time.Now().Round(time.Second).UTC()

	s.remember(m.ID)
	s.store[m.ID] = *m

	return nil
}

func (s *sessionStore) CloseByDevice(bridgeID int32, device string) (int64, error) {
	s.Lock()
	defer s.Unlock()

	var n int64
	for id, m := range s.store {
		if m.BridgeID == bridgeID && m.Device == device && !m.Closed {
			s.remember(id)
			m.Closed = true
			m.Active = false
			m.UpdatedAt = time.Now().Round(time.Second).UTC()
			s.store[id] = m
			n++
		}
	}

	return n, nil
}

func (s *sessionStore) Touch(id int32, at time.Time, active bool) error {
	return s.update(id, func(m *model.Session) {
		last := at
		m.LastSeenAt = &last
		m.Active = active
	})
}

func (s *sessionStore) SetActive(id int32, active bool) error {
	return s.update(id, func(m *model.Session) {
		m.Active = active
	})
}

func (s *sessionStore) update(id int32, fn func(m *model.Session)) error {
	s.Lock()
	defer s.Unlock()

	m, ok := s.store[id]
	if !ok {
		return storage.ErrNotFound
	}
	s.remember(id)
	fn(&m)
	m.UpdatedAt = time.Now().Round(time.Second).UTC()
	s.store[id] = m

	return nil
}
