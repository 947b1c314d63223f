package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gilchrisn/graph-matching-service/pkg/corpus"
)

const keyPrefix = "smatch:pair:"

// RedisScoreCache is a corpus.ScoreCache backed by Redis
type RedisScoreCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisScoreCache wraps client. A ttl of 0 keeps entries forever.
func NewRedisScoreCache(client *redis.Client, ttl time.Duration) *RedisScoreCache {
	return &RedisScoreCache{client: client, ttl: ttl}
}

// Dial connects to addr and checks the connection
func Dial(ctx context.Context, addr string, ttl time.Duration) (*RedisScoreCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", addr, err)
	}
	return NewRedisScoreCache(client, ttl), nil
}

func (c *RedisScoreCache) makeKey(key string) string {
	return keyPrefix + key
}

// Get looks a pair up
func (c *RedisScoreCache) Get(ctx context.Context, key string) (corpus.CachedScore, bool, error) {
	data, err := c.client.Get(ctx, c.makeKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return corpus.CachedScore{}, false, nil
	}
	if err != nil {
		return corpus.CachedScore{}, false, fmt.Errorf("failed to GET %s: %w", key, err)
	}

	var score corpus.CachedScore
	if err := json.Unmarshal(data, &score); err != nil {
		return corpus.CachedScore{}, false, fmt.Errorf("failed to decode cached score %s: %w", key, err)
	}
	return score, true, nil
}

// Put stores a pair score
func (c *RedisScoreCache) Put(ctx context.Context, key string, score corpus.CachedScore) error {
	data, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("failed to encode score: %w", err)
	}
	if err := c.client.Set(ctx, c.makeKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to SET %s: %w", key, err)
	}
	return nil
}

// Close closes the client
func (c *RedisScoreCache) Close() error {
	return c.client.Close()
}
