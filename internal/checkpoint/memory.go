package checkpoint

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps checkpoints in process memory. History is lost on exit.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Checkpoint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Checkpoint)}
}

func (s *MemoryStore) Get(_ context.Context, threadID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp, ok := s.items[threadID]
	if !ok {
		return nil, ErrNotFound
	}
	cp.State = append([]byte(nil), cp.State...)
	return &cp, nil
}

func (s *MemoryStore) Put(_ context.Context, cp *Checkpoint) error {
	stamp(cp)
	c := *cp
	c.State = append([]byte(nil), cp.State...)

	s.mu.Lock()
	s.items[cp.ThreadID] = c
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[threadID]; !ok {
		return ErrNotFound
	}
	delete(s.items, threadID)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Checkpoint, error) {
	s.mu.RLock()
	out := make([]Checkpoint, 0, len(s.items))
	for _, cp := range s.items {
		out = append(out, cp)
	}
	s.mu.RUnlock()

	sortByRecency(out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func sortByRecency(cps []Checkpoint) {
	sort.SliceStable(cps, func(i, j int) bool {
		if cps[i].UpdatedAt.Equal(cps[j].UpdatedAt) {
			return cps[i].ThreadID < cps[j].ThreadID
		}
		return cps[i].UpdatedAt.After(cps[j].UpdatedAt)
	})
}
