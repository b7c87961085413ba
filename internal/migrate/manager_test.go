package migrate

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreReversible(t *testing.T) {
	files, err := fs.Glob(Migrations(), "*.sql")
	require.NoError(t, err)
	require.Len(t, files, 3)

	for _, name := range files {
		data, err := fs.ReadFile(Migrations(), name)
		require.NoError(t, err)
		body := string(data)
		assert.Contains(t, body, "-- +goose Up", name)
		assert.Contains(t, body, "-- +goose Down", name)
	}
}

func TestSchemaCoversStores(t *testing.T) {
	users, err := fs.ReadFile(Migrations(), "00001_users.sql")
	require.NoError(t, err)
	for _, col := range []string{"email", "password_hash", "role", "refresh_token", "is_active", "is_verified"} {
		assert.True(t, strings.Contains(string(users), col), "users table misses %s", col)
	}

	revoked, err := fs.ReadFile(Migrations(), "00002_revoked_tokens.sql")
	require.NoError(t, err)
	assert.Contains(t, string(revoked), "token_hash")
	assert.Contains(t, string(revoked), "expires_at")
}

func TestRefreshTokenColumnIsUnbounded(t *testing.T) {
	widen, err := fs.ReadFile(Migrations(), "00003_refresh_token_text.sql")
	require.NoError(t, err)
	up := strings.SplitN(string(widen), "-- +goose Down", 2)[0]
	assert.Contains(t, up, "alter column refresh_token type text")
}

func TestNewManager(t *testing.T) {
	_, err := NewManager(nil)
	assert.Error(t, err)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m, err := NewManager(db)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, m.Sources())
}
