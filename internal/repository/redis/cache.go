package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	userCachePrefix = "user:"
	userCacheTTL    = 5 * time.Minute
)

// UserCache is a read-through cache in front of a user repository. The
// greeting reads a user record on every client start.
type UserCache struct {
	client *Client
	next   domain.UserRepository
	ttl    time.Duration
}

// NewUserCache creates a new user cache
func NewUserCache(client *Client, next domain.UserRepository) *UserCache {
	return &UserCache{client: client, next: next, ttl: userCacheTTL}
}

func (c *UserCache) Get(ctx context.Context, id string) (*domain.UserRecord, error) {
	key := userCachePrefix + id

	data, err := c.client.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var user domain.UserRecord
		if err := json.Unmarshal(data, &user); err == nil {
			return &user, nil
		}
		log.Warn().Str("key", key).Msg("discarding unreadable cached user")
	}

	user, err := c.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, user)
	return user, nil
}

func (c *UserCache) Upsert(ctx context.Context, user *domain.UserRecord) error {
	if err := c.next.Upsert(ctx, user); err != nil {
		return err
	}
	if err := c.Invalidate(ctx, user.ID); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to invalidate cached user")
	}
	return nil
}

// Invalidate removes the cached record for a user
func (c *UserCache) Invalidate(ctx context.Context, id string) error {
	return c.client.rdb.Del(ctx, userCachePrefix+id).Err()
}

func (c *UserCache) set(ctx context.Context, user *domain.UserRecord) {
	data, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := c.client.rdb.Set(ctx, userCachePrefix+user.ID, data, c.ttl).Err(); err != nil {
		log.Debug().Err(fmt.Errorf("failed to cache user: %w", err)).Send()
	}
}
