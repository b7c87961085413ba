package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"photoshare.app/internal/obs"
)

const (
	snapshotVersion = 1
	cacheKeyPrefix  = "user:"

	// DefaultCacheTTL bounds how stale a cached principal may be.
	DefaultCacheTTL = 15 * time.Minute
)

// principalSnapshot is the cache wire format. It never carries the password
// hash or the refresh token; flows that need those read the store.
type principalSnapshot struct {
	Version   int       `json:"v"`
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Active    bool      `json:"active"`
	Verified  bool      `json:"verified"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

var errSnapshotVersion = errors.New("auth: unsupported snapshot version")

func encodeSnapshot(p Principal) ([]byte, error) {
	return json.Marshal(principalSnapshot{
		Version:   snapshotVersion,
		ID:        p.ID,
		Username:  p.Username,
		Email:     p.Email,
		Role:      p.Role,
		Active:    p.Active,
		Verified:  p.Verified,
		Avatar:    p.Avatar,
		CreatedAt: p.CreatedAt,
	})
}

func decodeSnapshot(data []byte) (Principal, error) {
	var s principalSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Principal{}, err
	}
	if s.Version != snapshotVersion {
		return Principal{}, errSnapshotVersion
	}
	return Principal{
		ID:        s.ID,
		Username:  s.Username,
		Email:     s.Email,
		Role:      s.Role,
		Active:    s.Active,
		Verified:  s.Verified,
		Avatar:    s.Avatar,
		CreatedAt: s.CreatedAt,
	}, nil
}

// ClaimsCache is an advisory read-through cache of principals keyed by email.
// Backend failures are logged and reported as misses; they never fail a request.
type ClaimsCache struct {
	backend CacheBackend
	timeout time.Duration
	log     *zap.Logger
}

// NewClaimsCache wraps backend. A nil backend yields a cache that always misses.
// timeout bounds every backend call; zero leaves the caller's deadline alone.
func NewClaimsCache(backend CacheBackend, timeout time.Duration, log *zap.Logger) *ClaimsCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &ClaimsCache{
		backend: backend,
		timeout: timeout,
		log:     log.With(zap.String("component", "auth.claims_cache")),
	}
}

func cacheKey(email string) string { return cacheKeyPrefix + email }

func (c *ClaimsCache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Get returns the cached principal for email, or false on a miss, an
// undecodable entry or any backend failure.
func (c *ClaimsCache) Get(ctx context.Context, email string) (Principal, bool) {
	if c == nil || c.backend == nil {
		obs.ObserveClaimsCache("miss")
		return Principal{}, false
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	data, ok, err := c.backend.Get(ctx, cacheKey(email))
	if err != nil {
		obs.ObserveClaimsCache("error")
		c.log.Warn("cache get failed, falling back to store", zap.Error(err))
		return Principal{}, false
	}
	if !ok {
		obs.ObserveClaimsCache("miss")
		return Principal{}, false
	}
	p, err := decodeSnapshot(data)
	if err != nil {
		obs.ObserveClaimsCache("error")
		c.log.Warn("discarding undecodable cache entry", zap.Error(err))
		return Principal{}, false
	}
	obs.ObserveClaimsCache("hit")
	return p, true
}

// Put stores a snapshot of p under email for ttl.
func (c *ClaimsCache) Put(ctx context.Context, email string, p Principal, ttl time.Duration) {
	if c == nil || c.backend == nil {
		return
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	data, err := encodeSnapshot(p)
	if err != nil {
		c.log.Warn("encode cache entry", zap.Error(err))
		return
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.backend.Set(ctx, cacheKey(email), data, ttl); err != nil {
		c.log.Warn("cache put failed", zap.Error(err))
	}
}

// Evict drops the cached principal for email.
func (c *ClaimsCache) Evict(ctx context.Context, email string) {
	if c == nil || c.backend == nil {
		return
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.backend.Delete(ctx, cacheKey(email)); err != nil {
		c.log.Warn("cache evict failed", zap.Error(err))
	}
}
