package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/Rrens/bloombuddy/internal/localstore"
	"github.com/redis/go-redis/v9"
)

// Store is a localstore.Store kept in Redis under a key prefix, so several
// clients can share one server.
type Store struct {
	client *Client
	prefix string
}

// NewStore creates a store whose keys are namespaced by prefix
func NewStore(client *Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, localstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.rdb.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.rdb.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}
