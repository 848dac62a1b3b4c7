package webapp

import (
	"context"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis, one string key per session.
type RedisStore struct {
	client *backend.Client
	prefix string
}

// NewRedisStore creates a store that uses client. Keys are prefix followed by the session id.
func NewRedisStore(client *backend.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func newRedisStoreFromConfig(c RedisConfig) *RedisStore {
	client := backend.NewClient(&backend.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
	return NewRedisStore(client, c.Prefix)
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Load(ctx context.Context, id string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read from redis: %w", err)
	}
	return data, true, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
