package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Storage is a Redis-backed implementation of store.Storage. Values are kept
// as plain string keys under a configurable prefix so several practice
// profiles can share one Redis database.
type Storage struct {
	client *redis.Client
	prefix string
}

func NewStorage(client *redis.Client, prefix string) *Storage {
	return &Storage{client: client, prefix: prefix}
}

func (s *Storage) Load(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Save writes without expiry; session expiry is decided by the reader.
func (s *Storage) Save(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.key(key), value, 0).Err()
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *Storage) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}
