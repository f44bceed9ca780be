package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/and161185/glucokeeper/internal/model"
)

const statsKeyPrefix = "glucokeeper:stats:"

// Connect creates a Redis client from a redis:// URL or a host:port address.
func Connect(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisStatsStore keeps computed stats as JSON under glucokeeper:stats:<username>.
type RedisStatsStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ StatsStore = (*RedisStatsStore)(nil)

// NewRedisStatsStore creates a store whose entries expire after ttl (0 keeps them).
func NewRedisStatsStore(client redis.Cmdable, ttl time.Duration) *RedisStatsStore {
	return &RedisStatsStore{client: client, ttl: ttl}
}

// Get loads stats for username.
func (s *RedisStatsStore) Get(ctx context.Context, username string) (model.Stats, bool, error) {
	raw, err := s.client.Get(ctx, statsKey(username)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Stats{}, false, nil
	}
	if err != nil {
		return model.Stats{}, false, err
	}
	var st model.Stats
	if err := json.Unmarshal(raw, &st); err != nil {
		return model.Stats{}, false, fmt.Errorf("decode stats: %w", err)
	}
	return st, true, nil
}

// Set stores stats for username.
func (s *RedisStatsStore) Set(ctx context.Context, username string, st model.Stats) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, statsKey(username), raw, s.ttl).Err()
}

// Delete removes stats for username.
func (s *RedisStatsStore) Delete(ctx context.Context, username string) error {
	return s.client.Del(ctx, statsKey(username)).Err()
}

func statsKey(username string) string { return statsKeyPrefix + username }
