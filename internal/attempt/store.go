// Package attempt records scenario playthroughs and learning events.
package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-learn/internal/scenario"
)

var (
	// ErrNotFound is returned for unknown playthrough ids.
	ErrNotFound = errors.New("playthrough not found")
	// ErrAttemptsExhausted is returned when a learner used every allowed attempt.
	ErrAttemptsExhausted = errors.New("no attempts left for this scenario")
)

// Playthrough is one learner's run through a scenario.
type Playthrough struct {
	ID          string               `json:"id"`
	ScenarioID  string               `json:"scenarioId"`
	LearnerID   string               `json:"learnerId"`
	Selections  []scenario.Selection `json:"selections"`
	TotalPoints int                  `json:"totalPoints"`
	StartedAt   time.Time            `json:"startedAt"`
	CompletedAt *time.Time           `json:"completedAt,omitempty"`
}

// Store persists playthroughs.
type Store interface {
	Create(ctx context.Context, p Playthrough) (Playthrough, error)
	Complete(ctx context.Context, id string, selections []scenario.Selection, totalPoints int) error
	Get(ctx context.Context, id string) (Playthrough, error)
	CountAttempts(ctx context.Context, scenarioID, learnerID string) (int, error)
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	playthroughs map[string]Playthrough
	mu           sync.RWMutex
}

// NewMemoryStore creates a new in-memory playthrough store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		playthroughs: make(map[string]Playthrough),
	}
}

func (s *MemoryStore) Create(_ context.Context, p Playthrough) (Playthrough, error) {
	if p.ScenarioID == "" {
		return Playthrough{}, fmt.Errorf("scenario_id is required")
	}
	p.ID = uuid.NewString()
	if p.StartedAt.IsZero() {
		p.StartedAt = time.Now()
	}
	if p.Selections == nil {
		p.Selections = []scenario.Selection{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.playthroughs[p.ID] = p
	return p, nil
}

func (s *MemoryStore) Complete(_ context.Context, id string, selections []scenario.Selection, totalPoints int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.playthroughs[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	p.Selections = append([]scenario.Selection{}, selections...)
	p.TotalPoints = totalPoints
	p.CompletedAt = &now
	s.playthroughs[id] = p
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Playthrough, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.playthroughs[id]
	if !ok {
		return Playthrough{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) CountAttempts(_ context.Context, scenarioID, learnerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, p := range s.playthroughs {
		if p.ScenarioID == scenarioID && p.LearnerID == learnerID {
			n++
		}
	}
	return n, nil
}
