// internal/pkg/tokencache/cache.go
package tokencache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	xerrors "settlement-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// Cache is a process-wide keyed cache with explicit eviction, backed by
// Redis so it stays correct when the service runs as more than one instance.
// Its main job here is parking an activation token across the login redirect.
type Cache struct {
	client *redis.Client
	prefix string
}

func New(client *redis.Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

// StateTTL bounds how long a parked token survives a login round-trip.
const StateTTL = 15 * time.Minute

// ParkToken stores value under a fresh random state id and returns the id.
func (c *Cache) ParkToken(ctx context.Context, value string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("random source unavailable: %w", err)
	}
	stateID := hex.EncodeToString(buf)

	if err := c.Put(ctx, stateID, value, StateTTL); err != nil {
		return "", err
	}

	return stateID, nil
}

// TakeToken retrieves and evicts a parked value. Each state id redeems once.
func (c *Cache) TakeToken(ctx context.Context, stateID string) (string, error) {
	value, err := c.client.GetDel(ctx, c.key(stateID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", xerrors.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to take token from redis: %w", err)
	}

	return value, nil
}

// Put stores a value with a TTL.
func (c *Cache) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token in redis: %w", err)
	}
	return nil
}

// Get retrieves a value without evicting it.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", xerrors.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token from redis: %w", err)
	}
	return value, nil
}

// Evict removes a key explicitly.
func (c *Cache) Evict(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

func (c *Cache) key(k string) string {
	return c.prefix + ":" + k
}
