package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"geoattend/internal/store"
)

// InMemoryStore keeps records in a map keyed by subject and date.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]Record
	now     func() time.Time
}

type recordKey struct {
	subjectID string
	date      string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[recordKey]Record), now: time.Now}
}

func (s *InMemoryStore) Find(_ context.Context, subjectID, date string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordKey{subjectID, date}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *InMemoryStore) Create(_ context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(rec)
}

func (s *InMemoryStore) insertLocked(rec Record) (Record, error) {
	key := recordKey{rec.SubjectID, rec.Date}
	if _, ok := s.records[key]; ok {
		return Record{}, store.ErrConflict
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := s.now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.records[key] = rec
	return rec, nil
}

func (s *InMemoryStore) Update(_ context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{rec.SubjectID, rec.Date}
	current, ok := s.records[key]
	if !ok {
		return Record{}, store.ErrNotFound
	}
	rec.ID = current.ID
	rec.CreatedAt = current.CreatedAt
	rec.UpdatedAt = s.now().UTC()
	s.records[key] = rec
	return rec, nil
}

func (s *InMemoryStore) DeleteBySubject(_ context.Context, subjectID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for key := range s.records {
		if key.subjectID == subjectID {
			delete(s.records, key)
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) ListByDate(_ context.Context, date string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Record{}
	for key, rec := range s.records {
		if key.date == date {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return timeOrZero(out[i].CheckInAt).Before(timeOrZero(out[j].CheckInAt))
	})
	return out, nil
}

func (s *InMemoryStore) CheckInIfAbsent(_ context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{rec.SubjectID, rec.Date}
	current, ok := s.records[key]
	if !ok {
		return s.insertLocked(rec)
	}
	if current.CheckInAt != nil {
		return Record{}, store.ErrConflict
	}
	current.CheckInAt = rec.CheckInAt
	current.CheckInPhoto = rec.CheckInPhoto
	current.LocationVerified = rec.LocationVerified
	current.UpdatedAt = s.now().UTC()
	s.records[key] = current
	return current, nil
}

func (s *InMemoryStore) CheckOutIfAbsent(_ context.Context, subjectID, date string, at time.Time, photo string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recordKey{subjectID, date}
	current, ok := s.records[key]
	if !ok || current.CheckInAt == nil {
		return Record{}, store.ErrNotFound
	}
	if current.CheckOutAt != nil {
		return Record{}, store.ErrConflict
	}
	current.CheckOutAt = &at
	current.CheckOutPhoto = photo
	current.UpdatedAt = s.now().UTC()
	s.records[key] = current
	return current, nil
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
