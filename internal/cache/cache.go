package cache

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultTTL bounds how long a cached listing survives without a write.
const DefaultTTL = 5 * time.Minute

// redisTimeout bounds each Redis round-trip so a slow cache never stalls
// a request.
const redisTimeout = 5 * time.Second

// Store is a byte-oriented cache. Implementations must tolerate misses
// and treat Set/Delete failures as non-fatal.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}

// MemoryStore is an in-process Store for tests and single-node runs.
type MemoryStore struct {
	entries map[string]memoryEntry
	mu      sync.RWMutex
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
	}
}

// Get returns the cached value for key, if present and unexpired.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.Delete(key)
		return nil, false
	}
	return entry.value, true
}

// Set stores value under key. A non-positive ttl means no expiry.
func (s *MemoryStore) Set(key string, value []byte, ttl time.Duration) {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
}

// Delete removes key from the store.
func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// RedisStore is a Store backed by Redis. Every call runs under its own
// timeout context; cache errors are logged and degrade to misses.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore over an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
	}
}

// Get returns the cached value for key, treating any Redis error as a miss.
func (s *RedisStore) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	value, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("cache: failed to get %q: %v", key, err)
		}
		return nil, false
	}
	return value, true
}

// Set stores value under key with the given ttl.
func (s *RedisStore) Set(key string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Printf("cache: failed to set %q: %v", key, err)
	}
}

// Delete removes key. Failures are logged; the next read simply misses.
func (s *RedisStore) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		log.Printf("cache: failed to delete %q: %v", key, err)
	}
}
