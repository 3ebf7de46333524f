package history

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
	now     func() time.Time
}

// NewMemoryStore builds an in-memory history store for tests and local runs.
func NewMemoryStore() Store {
	return &memoryStore{entries: make(map[string][]Entry), now: time.Now}
}

func (s *memoryStore) Append(_ context.Context, e Entry) (Entry, error) {
	if err := validate(e); err != nil {
		return Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	e.Seq = uint64(len(s.entries[e.Account])) + 1
	s.entries[e.Account] = append(s.entries[e.Account], e)
	return e, nil
}

func (s *memoryStore) List(_ context.Context, acct string, q Query) (Page, error) {
	limit := q.limit()
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.entries[acct]
	out := make([]Entry, 0, limit+1)
	if q.Order == NewestFirst {
		// entries[i].Seq == i+1
		start := len(all)
		if q.Cursor > 0 && q.Cursor <= uint64(len(all)) {
			start = int(q.Cursor) - 1
		}
		for i := start - 1; i >= 0 && len(out) <= limit; i-- {
			out = append(out, all[i])
		}
	} else {
		for i := int(min(q.Cursor, uint64(len(all)))); i < len(all) && len(out) <= limit; i++ {
			out = append(out, all[i])
		}
	}
	return paginate(out, limit), nil
}
