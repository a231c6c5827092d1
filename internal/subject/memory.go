package subject

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"geoattend/internal/store"
)

// InMemoryStore keeps subjects in process memory.
type InMemoryStore struct {
	mu         sync.RWMutex
	byID       map[string]Subject
	byUsername map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[string]Subject), byUsername: make(map[string]string)}
}

func (m *InMemoryStore) Create(_ context.Context, s Subject) (Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byUsername[s.Username]; taken {
		return Subject{}, store.ErrConflict
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	m.byID[s.ID] = s
	m.byUsername[s.Username] = s.ID
	return s, nil
}

func (m *InMemoryStore) Get(_ context.Context, id string) (Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return Subject{}, store.ErrNotFound
	}
	return s, nil
}

func (m *InMemoryStore) GetByUsername(_ context.Context, username string) (Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byUsername[username]
	if !ok {
		return Subject{}, store.ErrNotFound
	}
	return m.byID[id], nil
}

// Update replaces a subject. Usernames are immutable.
func (m *InMemoryStore) Update(_ context.Context, s Subject) (Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.byID[s.ID]
	if !ok {
		return Subject{}, store.ErrNotFound
	}
	s.Username = current.Username
	s.CreatedAt = current.CreatedAt
	s.UpdatedAt = time.Now().UTC()
	m.byID[s.ID] = s
	return s, nil
}

func (m *InMemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(m.byID, id)
	delete(m.byUsername, s.Username)
	return nil
}

func (m *InMemoryStore) ListByRole(_ context.Context, role Role) ([]Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Subject{}
	for _, s := range m.byID {
		if s.Role == role {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}
