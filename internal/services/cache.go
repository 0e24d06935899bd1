// Package services holds small stateless helpers shared by the dialog
// and message services. CacheService abstracts the dialog-list cache:
// Redis when configured, an in-memory map when it is not, so callers
// never special-case cache availability.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheService is the abstraction the dialog list endpoints cache
// through. Get returns an error on miss (expired or absent) so callers
// can tell "go to the database" from "value was nil".
type CacheService interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryCache is the fallback used when no KV store is configured.
// Entries are lazily evicted on Get; there is no background sweeper.
type MemoryCache struct {
	mu    sync.Mutex
	store map[string]cacheEntry
}

type cacheEntry struct {
	Value      []byte
	Expiration time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{store: make(map[string]cacheEntry)}
}

func (m *MemoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	entry, exists := m.store[key]
	if exists && time.Now().After(entry.Expiration) {
		delete(m.store, key)
		exists = false
	}
	m.mu.Unlock()
	if !exists {
		return fmt.Errorf("key not found: %s", key)
	}
	return json.Unmarshal(entry.Value, dest)
}

func (m *MemoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.store[key] = cacheEntry{Value: data, Expiration: time.Now().Add(expiration)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.store, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Close() error {
	m.mu.Lock()
	m.store = make(map[string]cacheEntry)
	m.mu.Unlock()
	return nil
}

// RedisCache is the primary cache, backed by the same client used for
// presence and the notification scheduler.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("key not found: %s", key)
		}
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// DialogListCacheTTL is short on purpose: list ordering depends on
// last-message time and unread counts, both of which change on every
// message send, so a stale hit window wider than this would visibly
// lag behind the realtime feed.
const DialogListCacheTTL = 5 * time.Second

// DialogListCacheKey identifies one (user, list type, archived filter,
// search) combination so unrelated queries never collide.
func DialogListCacheKey(userID, listType, archivedFilter, search string) string {
	h := sha256.Sum256([]byte(listType + "|" + archivedFilter + "|" + search))
	return "dialoglist:" + userID + ":" + hex.EncodeToString(h[:])[:16]
}
