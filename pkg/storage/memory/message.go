package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/storage"
)

type messageTable struct {
	store  map[int64]model.Message
	nextID int64
	sync.RWMutex
}

type messageStore struct {
	*messageTable
	j *journal
}

func newMessageTable() *messageTable {
	return &messageTable{
		store:  make(map[int64]model.Message),
		nextID: 1,
	}
}

func (t *messageTable) restore(id int64, prev model.Message, existed bool) {
	t.Lock()
	defer t.Unlock()
	if existed {
		t.store[id] = prev
	} else {
		delete(t.store, id)
	}
}

func (t *messageTable) filter(match func(m *model.Message) bool) []model.Message {
	t.RLock()
	defer t.RUnlock()

	out := make([]model.Message, 0)
	for _, m := range t.store {
		if match(&m) {
			out = append(out, m)
		}
	}

	// Outbox order is creation order
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})

	return out
}

// remember journals the current row of id. Must be called with the lock held.
func (s *messageStore) remember(id int64) {
	prev, existed := s.store[id]
	s.j.record(func() { s.restore(id, prev, existed) })
}

func (s *messageStore) FindByID(id int64) (*model.Message, error) {
	s.RLock()
	defer s.RUnlock()
	if m, ok := s.store[id]; ok {
		return &m, nil
	}

	return nil, storage.ErrNotFound
}

func (s *messageStore) FetchPending(bridgeID int32) ([]model.Message, error) {
	return s.filter(func(m *model.Message) bool {
		return m.BridgeID == bridgeID && m.SentAt == nil
	}), nil
}

func (s *messageStore) FetchByBridge(bridgeID int32) ([]model.Message, error) {
	return s.filter(func(m *model.Message) bool {
		return m.BridgeID == bridgeID
	}), nil
}

func (s *messageStore) Create(m *model.Message) error {
	s.Lock()
	defer s.Unlock()

	m.ID = s.nextID
	s.nextID++
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.SentAt = nil

	s.remember(m.ID)
	s.store[m.ID] = *m

	return nil
}

func (s *messageStore) MarkSent(id int64, at time.Time) error {
	s.Lock()
	defer s.Unlock()

	m, ok := s.store[id]
	if !ok {
		return storage.ErrNotFound
	}
	if m.SentAt != nil {
		return nil
	}
	s.remember(id)
	sent := at
	m.SentAt = &sent
	s.store[id] = m

	return nil
}

func (s *messageStore) DeleteSent(kind string, limit int) (int64, error) {
	s.Lock()
	defer s.Unlock()

	ids := make([]int64, 0)
	for id, m := range s.store {
		if m.Kind == kind && m.SentAt != nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	for _, id := range ids {
		s.remember(id)
		delete(s.store, id)
	}

	return int64(len(ids)), nil
}

func (s *messageStore) CountSent(kind string) (int64, error) {
	return int64(len(s.filter(func(m *model.Message) bool {
		return m.Kind == kind && m.SentAt != nil
	}))), nil
}
