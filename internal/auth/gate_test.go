package auth_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoshare.app/internal/auth"
	"photoshare.app/internal/cache"
	"photoshare.app/internal/store/memory"
)

type countingUsers struct {
	*memory.Users
	finds atomic.Int32
}

func (c *countingUsers) FindByEmail(ctx context.Context, email string) (*auth.Principal, error) {
	c.finds.Add(1)
	return c.Users.FindByEmail(ctx, email)
}

type brokenBackend struct{}

func (brokenBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (brokenBackend) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (brokenBackend) Delete(context.Context, ...string) error { return errors.New("connection refused") }

type brokenRevocations struct{ *memory.Revocations }

func (brokenRevocations) Contains(context.Context, string) (bool, error) {
	return false, errors.New("db down")
}

type gateFixture struct {
	codec   *auth.Codec
	users   *countingUsers
	revoked *memory.Revocations
	gate    *auth.Gate
	user    auth.Principal
}

func newGateFixture(t *testing.T, backend auth.CacheBackend) *gateFixture {
	t.Helper()
	ctx := context.Background()
	codec, err := auth.NewCodec("test-secret", "HS256")
	require.NoError(t, err)

	users := &countingUsers{Users: memory.NewUsers()}
	p, err := users.Create(ctx, auth.NewUser{Username: "alice", Email: "alice@example.com", PasswordHash: "x"})
	require.NoError(t, err)
	require.NoError(t, users.MarkVerified(ctx, p.Email))

	revoked := memory.NewRevocations()
	cc := auth.NewClaimsCache(backend, 0, nil)
	return &gateFixture{
		codec:   codec,
		users:   users,
		revoked: revoked,
		gate:    auth.NewGate(codec, users, revoked, cc),
		user:    p,
	}
}

func (f *gateFixture) token(t *testing.T, subject string, scope auth.Scope) string {
	t.Helper()
	tok, _, err := f.codec.Issue(subject, scope, time.Minute)
	require.NoError(t, err)
	return tok
}

func TestGateAuthorizes(t *testing.T) {
	f := newGateFixture(t, cache.NewLocalBackend(16, time.Hour))
	tok := f.token(t, f.user.Email, auth.ScopeAccess)

	p, err := f.gate.Authorize(context.Background(), "Bearer "+tok)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, p.ID)
	assert.Equal(t, auth.RoleAdmin, p.Role)
	assert.Empty(t, p.PasswordHash)
}

func TestGateRejections(t *testing.T) {
	f := newGateFixture(t, nil)
	ctx := context.Background()

	_, err := f.gate.Authorize(ctx, "")
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)

	_, err = f.gate.Authorize(ctx, "Bearer not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = f.gate.Authorize(ctx, "Bearer "+f.token(t, f.user.Email, auth.ScopeRefresh))
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials, "refresh token must not open the gate")

	_, err = f.gate.Authorize(ctx, "Bearer "+f.token(t, f.user.Email, auth.ScopeEmail))
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = f.gate.Authorize(ctx, "Bearer "+f.token(t, "ghost@example.com", auth.ScopeAccess))
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials, "unknown subject is coalesced")

	expiredCodec, _ := auth.NewCodec("test-secret", "HS256", auth.WithCodecClock(func() time.Time {
		return time.Now().Add(-time.Hour)
	}))
	old, _, err := expiredCodec.Issue(f.user.Email, auth.ScopeAccess, time.Minute)
	require.NoError(t, err)
	_, err = f.gate.Authorize(ctx, "Bearer "+old)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestGateRevocationBeatsCache(t *testing.T) {
	f := newGateFixture(t, cache.NewLocalBackend(16, time.Hour))
	ctx := context.Background()
	tok := f.token(t, f.user.Email, auth.ScopeAccess)

	_, err := f.gate.AuthorizeToken(ctx, tok)
	require.NoError(t, err)

	require.NoError(t, f.revoked.Add(ctx, auth.Revocation{
		TokenHash: auth.HashToken(tok),
		RevokedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Minute),
	}))
	_, err = f.gate.AuthorizeToken(ctx, tok)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	other := f.token(t, f.user.Email, auth.ScopeAccess)
	_, err = f.gate.AuthorizeToken(ctx, other)
	assert.NoError(t, err, "revocation is per token")
}

func TestGateCacheAvoidsStore(t *testing.T) {
	f := newGateFixture(t, cache.NewLocalBackend(16, time.Hour))
	ctx := context.Background()
	tok := f.token(t, f.user.Email, auth.ScopeAccess)

	for i := 0; i < 3; i++ {
		_, err := f.gate.AuthorizeToken(ctx, tok)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, f.users.finds.Load())
}

func TestGateRefetchesAfterCacheTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	backend, err := cache.NewRedisBackend(ctx, cache.RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	f := newGateFixture(t, backend)
	gate := auth.NewGate(f.codec, f.users, f.revoked, auth.NewClaimsCache(backend, 0, nil),
		auth.WithCacheTTL(15*time.Minute),
	)
	tok := f.token(t, f.user.Email, auth.ScopeAccess)

	for i := 0; i < 2; i++ {
		_, err := gate.AuthorizeToken(ctx, tok)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, f.users.finds.Load())

	mr.FastForward(16 * time.Minute)
	_, err = gate.AuthorizeToken(ctx, tok)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.users.finds.Load())
}

func TestGateSurvivesCacheOutage(t *testing.T) {
	f := newGateFixture(t, brokenBackend{})
	tok := f.token(t, f.user.Email, auth.ScopeAccess)

	for i := 0; i < 2; i++ {
		p, err := f.gate.AuthorizeToken(context.Background(), tok)
		require.NoError(t, err)
		assert.Equal(t, f.user.Email, p.Email)
	}
	assert.EqualValues(t, 2, f.users.finds.Load())
}

func TestGateSurfacesRevocationStoreFailure(t *testing.T) {
	f := newGateFixture(t, nil)
	gate := auth.NewGate(f.codec, f.users, brokenRevocations{memory.NewRevocations()}, nil)

	_, err := gate.AuthorizeToken(context.Background(), f.token(t, f.user.Email, auth.ScopeAccess))
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.NotErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestGateRejectsInactive(t *testing.T) {
	f := newGateFixture(t, nil)
	require.NoError(t, f.users.SetActive(context.Background(), f.user.Email, false))

	_, err := f.gate.AuthorizeToken(context.Background(), f.token(t, f.user.Email, auth.ScopeAccess))
	assert.ErrorIs(t, err, auth.ErrUserNotActive)
}
