package memory

import (
	"sync"
	"time"

	"github.com/nsyszr/pushbridge/pkg/model"
	"github.com/nsyszr/pushbridge/pkg/storage"
)

type userTable struct {
	store  map[int32]model.User
	nextID int32
	sync.RWMutex
}

type userStore struct {
	*userTable
	j *journal
}

func newUserTable() *userTable {
	return &userTable{
		store:  make(map[int32]model.User),
		nextID: 1,
	}
}

func (s *userStore) FindByID(id int32) (*model.User, error) {
	s.RLock()
	defer s.RUnlock()
	if m, ok := s.store[id]; ok {
		return &m, nil
	}

	return nil, storage.ErrNotFound
}

func (s *userStore) FindByLogin(login string) (*model.User, error) {
	s.RLock()
	defer s.RUnlock()

	for _, m := range s.store {
		if m.Login == login {
			return &m, nil
		}
	}

	return nil, storage.ErrNotFound
}

func (s *userStore) Create(m *model.User) error {
	s.Lock()
	defer s.Unlock()

	m.ID = s.nextID
	s.nextID++
	m.CreatedAt = time.Now().Round(time.Second).UTC()
	m.UpdatedAt = time.Now().Round(time.Second).UTC()

	id := m.ID
	s.j.record(func() {
		s.Lock()
		delete(s.store, id)
		s.Unlock()
	})
	s.store[m.ID] = *m

	return nil
}
