// Package cache provides the application-data cache used by request
// handlers. The cache is an explicit dependency handed to handlers
// at construction time, with one interface and two implementations:
// Redis when a server is reachable, and an in-process map as the
// fallback. The backend is chosen once at process startup, never per
// call site.
package cache

import (
    "context"
    "sync"
    "time"

    "github.com/redis/go-redis/v9"
)

// Store is a byte cache with per-entry TTL. Get returns ok=false on
// a miss or an expired entry; implementations never surface backend
// outages to callers beyond a miss.
type Store interface {
    Get(ctx context.Context, key string) ([]byte, bool)
    Set(ctx context.Context, key string, val []byte, ttl time.Duration)
    Delete(ctx context.Context, key string)
}

// redisStore backs Store with a Redis server.
type redisStore struct {
    rdb *redis.Client
}

// NewRedis returns a Store over the given Redis client.
func NewRedis(rdb *redis.Client) Store { return &redisStore{rdb: rdb} }

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool) {
    bs, err := s.rdb.Get(ctx, key).Bytes()
    if err != nil {
        return nil, false
    }
    return bs, true
}

func (s *redisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
    _ = s.rdb.SetEx(ctx, key, val, ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) {
    _ = s.rdb.Del(ctx, key).Err()
}

// memoryStore is the in-process fallback. Entries expire lazily on
// read; Set on an existing key overwrites.
type memoryStore struct {
    mu      sync.RWMutex
    entries map[string]memoryEntry
}

type memoryEntry struct {
    val       []byte
    expiresAt time.Time
}

// NewMemory returns an in-process Store.
func NewMemory() Store {
    return &memoryStore{entries: map[string]memoryEntry{}}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool) {
    s.mu.RLock()
    e, ok := s.entries[key]
    s.mu.RUnlock()
    if !ok {
        return nil, false
    }
    if time.Now().After(e.expiresAt) {
        s.mu.Lock()
        delete(s.entries, key)
        s.mu.Unlock()
        return nil, false
    }
    return e.val, true
}

func (s *memoryStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
    s.mu.Lock()
    s.entries[key] = memoryEntry{val: val, expiresAt: time.Now().Add(ttl)}
    s.mu.Unlock()
}

func (s *memoryStore) Delete(_ context.Context, key string) {
    s.mu.Lock()
    delete(s.entries, key)
    s.mu.Unlock()
}

// Select picks the backend for this process: Redis when a client
// connected at startup, the in-memory map otherwise.
func Select(rdb *redis.Client) Store {
    if rdb != nil {
        return NewRedis(rdb)
    }
    return NewMemory()
}
