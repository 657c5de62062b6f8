package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAnswerCache stores answers in Redis/Dragonfly.
type RedisAnswerCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisAnswerCache creates a Redis-backed answer cache. A zero ttl keeps
// answers until they are cleared.
func NewRedisAnswerCache(client redis.Cmdable, ttl time.Duration) *RedisAnswerCache {
	return &RedisAnswerCache{client: client, ttl: ttl}
}

func (c *RedisAnswerCache) Load(ctx context.Context, quizID string) (Answers, error) {
	data, err := c.client.Get(ctx, CacheKey(quizID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Answers{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load answers for quiz %s: %w", quizID, err)
	}
	return decodeAnswers(data)
}

func (c *RedisAnswerCache) Save(ctx context.Context, quizID string, answers Answers) error {
	data, err := encodeAnswers(answers)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, CacheKey(quizID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("save answers for quiz %s: %w", quizID, err)
	}
	return nil
}

func (c *RedisAnswerCache) Clear(ctx context.Context, quizID string) error {
	if err := c.client.Del(ctx, CacheKey(quizID)).Err(); err != nil {
		return fmt.Errorf("clear answers for quiz %s: %w", quizID, err)
	}
	return nil
}
