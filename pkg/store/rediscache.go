package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// LatestPointerCache caches the current latest version number for an
// entity, so repeated Latest lookups need not hit the backing
// VersionStore. It is optional: callers fall back to the store itself
// on a cache miss and populate the cache on write.
type LatestPointerCache interface {
	Get(ctx context.Context, entityKind, entityID string) (int, bool, error)
	Set(ctx context.Context, entityKind, entityID string, version int, ttl time.Duration) error
	Invalidate(ctx context.Context, entityKind, entityID string) error
}

// RedisLatestPointerCache backs LatestPointerCache with Redis. Keys are
// namespaced "soe:latest:<kind>:<id>" so the cache can share a Redis
// instance with other subsystems.
type RedisLatestPointerCache struct {
	client *redis.Client
}

// NewRedisLatestPointerCache wraps an already-constructed go-redis
// client. The caller owns the client's lifecycle.
func NewRedisLatestPointerCache(client *redis.Client) *RedisLatestPointerCache {
	return &RedisLatestPointerCache{client: client}
}

func latestKey(entityKind, entityID string) string {
	return fmt.Sprintf("soe:latest:%s:%s", entityKind, entityID)
}

func (c *RedisLatestPointerCache) Get(ctx context.Context, entityKind, entityID string) (int, bool, error) {
	v, err := c.client.Get(ctx, latestKey(entityKind, entityID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("rediscache: get: %w", err)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("rediscache: parse cached version: %w", err)
	}
	return n, true, nil
}

func (c *RedisLatestPointerCache) Set(ctx context.Context, entityKind, entityID string, version int, ttl time.Duration) error {
	return c.client.Set(ctx, latestKey(entityKind, entityID), strconv.Itoa(version), ttl).Err()
}

func (c *RedisLatestPointerCache) Invalidate(ctx context.Context, entityKind, entityID string) error {
	return c.client.Del(ctx, latestKey(entityKind, entityID)).Err()
}

// CachedVersionStore wraps a VersionStore with a LatestPointerCache:
// LatestVersion checks the cache first; Create invalidates so the next
// LatestVersion
// repopulates from the store rather than serving a stale version.
type CachedVersionStore struct {
	inner VersionStore
	cache LatestPointerCache
	ttl   time.Duration
}

// NewCachedVersionStore returns a VersionStore that transparently
// caches latest-version lookups.
func NewCachedVersionStore(inner VersionStore, cache LatestPointerCache, ttl time.Duration) *CachedVersionStore {
	return &CachedVersionStore{inner: inner, cache: cache, ttl: ttl}
}

func (s *CachedVersionStore) Create(ctx context.Context, r Record) error {
	if err := s.inner.Create(ctx, r); err != nil {
		return err
	}
	return s.cache.Invalidate(ctx, r.EntityKind, r.EntityID)
}

// Update passes through to the inner store. The cached latest-version
// pointer names a version number, not its content, and Update never
// changes the version number, so there is nothing to invalidate.
func (s *CachedVersionStore) Update(ctx context.Context, r Record) error {
	return s.inner.Update(ctx, r)
}

func (s *CachedVersionStore) Load(ctx context.Context, entityKind, entityID string, version int) (Record, error) {
	return s.inner.Load(ctx, entityKind, entityID, version)
}

func (s *CachedVersionStore) LatestVersion(ctx context.Context, entityKind, entityID string) (Record, error) {
	if v, ok, err := s.cache.Get(ctx, entityKind, entityID); err == nil && ok {
		if r, err := s.inner.Load(ctx, entityKind, entityID, v); err == nil {
			return r, nil
		}
	}
	r, err := s.inner.LatestVersion(ctx, entityKind, entityID)
	if err != nil {
		return Record{}, err
	}
	_ = s.cache.Set(ctx, entityKind, entityID, r.Version, s.ttl)
	return r, nil
}

func (s *CachedVersionStore) ListVersions(ctx context.Context, entityKind, entityID string) ([]Record, error) {
	return s.inner.ListVersions(ctx, entityKind, entityID)
}
