package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// AnswerCache is durable per-quiz storage for in-progress raw answers.
// Implementations store the answers as a JSON object under CacheKey(quizID).
type AnswerCache interface {
	// Load returns the cached answers, or an empty map when nothing is cached.
	Load(ctx context.Context, quizID string) (Answers, error)
	// Save replaces the cached answers for the quiz.
	Save(ctx context.Context, quizID string, answers Answers) error
	// Clear removes the cached answers for the quiz.
	Clear(ctx context.Context, quizID string) error
}

// CacheKey returns the storage key for a quiz's answers.
func CacheKey(quizID string) string {
	return "quiz_" + quizID + "_answers"
}

// LearnerSlot is the cache slot of one learner's answers to a quiz. An empty
// learner maps to the quiz id itself.
func LearnerSlot(learnerID, quizID string) string {
	if learnerID == "" {
		return quizID
	}
	return learnerID + "/" + quizID
}

// ForLearner scopes every slot of cache to learnerID, so learners sharing a
// cache never see each other's answers.
func ForLearner(cache AnswerCache, learnerID string) AnswerCache {
	if learnerID == "" {
		return cache
	}
	return learnerCache{cache: cache, learnerID: learnerID}
}

type learnerCache struct {
	cache     AnswerCache
	learnerID string
}

func (c learnerCache) Load(ctx context.Context, quizID string) (Answers, error) {
	return c.cache.Load(ctx, LearnerSlot(c.learnerID, quizID))
}

func (c learnerCache) Save(ctx context.Context, quizID string, answers Answers) error {
	return c.cache.Save(ctx, LearnerSlot(c.learnerID, quizID), answers)
}

func (c learnerCache) Clear(ctx context.Context, quizID string) error {
	return c.cache.Clear(ctx, LearnerSlot(c.learnerID, quizID))
}

func encodeAnswers(answers Answers) ([]byte, error) {
	if answers == nil {
		answers = Answers{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}
	return data, nil
}

func decodeAnswers(data []byte) (Answers, error) {
	answers := Answers{}
	if len(data) == 0 {
		return answers, nil
	}
	if err := json.Unmarshal(data, &answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return answers, nil
}

// MemoryAnswerCache is an in-process AnswerCache. It keeps the encoded form so
// that reads go through the same JSON round trip as the durable caches.
type MemoryAnswerCache struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

// NewMemoryAnswerCache creates an empty in-memory cache.
func NewMemoryAnswerCache() *MemoryAnswerCache {
	return &MemoryAnswerCache{slots: make(map[string][]byte)}
}

func (c *MemoryAnswerCache) Load(_ context.Context, quizID string) (Answers, error) {
	c.mu.RLock()
	data := c.slots[CacheKey(quizID)]
	c.mu.RUnlock()
	return decodeAnswers(data)
}

func (c *MemoryAnswerCache) Save(_ context.Context, quizID string, answers Answers) error {
	data, err := encodeAnswers(answers)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.slots[CacheKey(quizID)] = data
	c.mu.Unlock()
	return nil
}

func (c *MemoryAnswerCache) Clear(_ context.Context, quizID string) error {
	c.mu.Lock()
	delete(c.slots, CacheKey(quizID))
	c.mu.Unlock()
	return nil
}

// Has reports whether the cache holds a slot for the quiz.
func (c *MemoryAnswerCache) Has(quizID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.slots[CacheKey(quizID)]
	return ok
}
