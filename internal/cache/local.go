package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

// LocalBackend is a bounded in-process LRU. Entries expire after the per-call
// ttl, capped by the maxTTL given at construction.
type LocalBackend struct {
	cache *lru.LRU[string, localEntry]
	now   func() time.Time
}

// NewLocalBackend returns an LRU holding at most size entries.
func NewLocalBackend(size int, maxTTL time.Duration) *LocalBackend {
	if size <= 0 {
		size = 1024
	}
	return &LocalBackend{
		cache: lru.NewLRU[string, localEntry](size, nil, maxTTL),
		now:   time.Now,
	}
}

func (b *LocalBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := b.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !b.now().Before(e.expiresAt) {
		b.cache.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (b *LocalBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := localEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = b.now().Add(ttl)
	}
	b.cache.Add(key, e)
	return nil
}

func (b *LocalBackend) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		b.cache.Remove(k)
	}
	return nil
}

// Len reports the number of entries, expired ones included until touched.
func (b *LocalBackend) Len() int { return b.cache.Len() }
