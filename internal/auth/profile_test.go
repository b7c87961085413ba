package auth_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoshare.app/internal/auth"
)

func TestEditUsernameEvictsCache(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.register(t, "alice", "alice@example.com", "secret1")
	pair, err := f.svc.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)

	p, err := f.gate.AuthorizeToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)

	updated, err := f.svc.EditUsername(ctx, p, "  alice_w  ")
	require.NoError(t, err)
	assert.Equal(t, "alice_w", updated.Username)
	assert.Equal(t, p.ID, updated.ID)

	p, err = f.gate.AuthorizeToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice_w", p.Username, "cached principal must be evicted on rename")

	same, err := f.svc.EditUsername(ctx, p, "alice_w")
	require.NoError(t, err)
	assert.Equal(t, p, same)

	for _, bad := range []string{"", "   ", strings.Repeat("x", 51)} {
		_, err = f.svc.EditUsername(ctx, p, bad)
		assert.ErrorIs(t, err, auth.ErrInvalidInput, "%q", bad)
	}
}

func TestSearchUsersAndUserByID(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	alice := f.register(t, "Alice", "alice@example.com", "secret1")
	f.register(t, "malice", "malice@example.com", "secret1")
	f.register(t, "bob", "bob@example.com", "secret1")

	hits, err := f.svc.SearchUsers(ctx, " alic ", 0, 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Alice", hits[0].Username)

	_, err = f.svc.SearchUsers(ctx, "  ", 0, 0)
	assert.ErrorIs(t, err, auth.ErrInvalidInput)

	got, err := f.svc.UserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)

	_, err = f.svc.UserByID(ctx, 999)
	assert.ErrorIs(t, err, auth.ErrNotFound)
	_, err = f.svc.UserByID(ctx, 0)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}
