package memory

import (
	"sync"
	"time"

	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/storage"
)

type bridgeTable struct {
	store  map[int32]model.Bridge
	nextID int32
	sync.RWMutex
}

type bridgeStore struct {
	*bridgeTable
	sessions *sessionTable
	j        *journal
}

func newBridgeTable() *bridgeTable {
	return &bridgeTable{
		store:  make(map[int32]model.Bridge),
		nextID: 1,
	}
}

// restore puts back the before-image of a row. Must be called without the lock.
func (t *bridgeTable) restore(id int32, prev model.Bridge, existed bool) {
	t.Lock()
	defer t.Unlock()
	if existed {
		t.store[id] = prev
	} else {
		delete(t.store, id)
	}
}

// remember journals the current row of id. Must be called with the lock held.
func (s *bridgeStore) remember(id int32) {
	prev, existed := s.store[id]
	s.j.record(func() { s.restore(id, prev, existed) })
}

func (s *bridgeStore) FetchAll() (models map[int32]model.Bridge, err error) {
	s.RLock()
	defer s.RUnlock()
	models = make(map[int32]model.Bridge, len(s.store))

	for id, m := range s.store {
		models[id] = m
	}

	return models, nil
}

func (s *bridgeStore) FindByID(id int32) (*model.Bridge, error) {
	s.RLock()
	defer s.RUnlock()
	if m, ok := s.store[id]; ok {
		return &m, nil
	}

	return nil, storage.ErrNotFound
}

func (s *bridgeStore) Create(m *model.Bridge) error {
	s.Lock()
	defer s.Unlock()

	m.ID = s.nextID
	s.nextID++

	// Set default values
	if m.SessionTimeout == 0 {
		m.SessionTimeout = model.DefaultSessionTimeout
	}

	m.CreatedAt = time.Now().Round(time.Second).UTC()
	m.UpdatedAt = time.Now().Round(time.Second).UTC()

	s.remember(m.ID)
	s.store[m.ID] = *m

	return nil
}

func (s *bridgeStore) Update(m *model.Bridge) error {
	s.Lock()
	defer s.Unlock()

	if _, ok := s.store[m.ID]; !ok {
		return storage.ErrNotFound
	}

	m.UpdatedAt = time.Now().Round(time.Second).UTC()
	s.remember(m.ID)
	s.store[m.ID] = *m

	return nil
}

func (s *bridgeStore) SetConnected(id int32, connected bool) error {
	s.Lock()
	defer s.Unlock()

	m, ok := s.store[id]
	if !ok {
		return storage.ErrNotFound
	}
	s.remember(id)
	m.Connected = connected
	m.UpdatedAt = time.Now().Round(time.Second).UTC()
	s.store[id] = m

	return nil
}

func (s *bridgeStore) ResetConnected() (int64, error) {
	s.Lock()
	defer s.Unlock()

	var n int64
	for id, m := range s.store {
		if m.Connected {
			s.remember(id)
			m.Connected = false
			s.store[id] = m
			n++
		}
	}

	return n, nil
}

func (s *bridgeStore) Delete(id int32) error {
	if s.sessions.countByBridge(id) > 0 {
		return storage.ErrReferenced
	}

	s.Lock()
	defer s.Unlock()

	if _, ok := s.store[id]; !ok {
		return storage.ErrNotFound
	}
	s.remember(id)
	delete(s.store, id)

	return nil
}
