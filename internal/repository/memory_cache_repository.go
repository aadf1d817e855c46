package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	appErrors "github.com/noah-isme/mind-analytics-api/pkg/errors"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryCacheRepository is a process-local cache with the same JSON semantics as the Redis one.
// Expired entries are dropped lazily when read.
type MemoryCacheRepository struct {
	entries sync.Map
	now     func() time.Time
}

// NewMemoryCacheRepository constructs an empty in-process cache.
func NewMemoryCacheRepository() *MemoryCacheRepository {
	return &MemoryCacheRepository{now: time.Now}
}

// WithClock overrides the time source used for expiry.
func (r *MemoryCacheRepository) WithClock(now func() time.Time) *MemoryCacheRepository {
	if now != nil {
		r.now = now
	}
	return r
}

// Get unmarshals a live entry into dest. Absent or expired keys return ErrCacheMiss.
func (r *MemoryCacheRepository) Get(_ context.Context, key string, dest interface{}) error {
	value, ok := r.entries.Load(key)
	if !ok {
		return appErrors.ErrCacheMiss
	}
	entry := value.(*memoryEntry)
	if !r.now().Before(entry.expiresAt) {
		r.entries.CompareAndDelete(key, entry)
		return appErrors.ErrCacheMiss
	}
	if err := json.Unmarshal(entry.payload, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Set stores value until ttl elapses. A non-positive ttl stores nothing.
func (r *MemoryCacheRepository) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	r.entries.Store(key, &memoryEntry{payload: payload, expiresAt: r.now().Add(ttl)})
	return nil
}

// DeleteByPattern removes entries whose key matches the glob pattern.
func (r *MemoryCacheRepository) DeleteByPattern(_ context.Context, pattern string) error {
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid cache pattern %s: %w", pattern, err)
	}
	r.entries.Range(func(key, _ interface{}) bool {
		if matched, _ := path.Match(pattern, key.(string)); matched {
			r.entries.Delete(key)
		}
		return true
	})
	return nil
}
