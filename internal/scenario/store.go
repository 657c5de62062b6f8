package scenario

import (
	"context"
	"sort"
	"sync"
)

// Source fetches scenarios by id.
type Source interface {
	GetScenario(ctx context.Context, id string) (Scenario, error)
}

// MemoryStore is an in-memory Source, seeded from fixtures or tests.
type MemoryStore struct {
	mu        sync.RWMutex
	scenarios map[string]Scenario
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(scenarios ...Scenario) *MemoryStore {
	s := &MemoryStore{scenarios: make(map[string]Scenario)}
	for _, sc := range scenarios {
		s.Put(sc)
	}
	return s
}

// Put adds or replaces a scenario.
func (s *MemoryStore) Put(sc Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarios[sc.ID] = sc
}

func (s *MemoryStore) GetScenario(_ context.Context, id string) (Scenario, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scenarios[id]
	if !ok {
		return Scenario{}, ErrNotFound
	}
	return sc, nil
}

// All returns every scenario sorted by id.
func (s *MemoryStore) All() []Scenario {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Scenario, 0, len(s.scenarios))
	for _, sc := range s.scenarios {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of stored scenarios.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scenarios)
}
