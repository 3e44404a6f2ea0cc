package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "travelpost:session:"

// RedisStore keeps sessions as JSON values with an expiry, so flows survive a
// restart and are shared between replicas.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, key string) (*Session, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("error reading session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		slog.Info("dropping unreadable session", "key", key, "err", err)
		_ = r.client.Del(ctx, sessionKeyPrefix+key).Err()
		return nil, nil
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	s.UpdatedAt = time.Now()
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+s.Key, data, r.ttl).Err(); err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("error saving session: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, sessionKeyPrefix+key).Err(); err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("error deleting session: %w", err)
	}
	return nil
}
