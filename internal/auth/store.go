package auth

import (
	"context"
	"time"
)

// PrincipalStore is the persistent source of truth for user records.
type PrincipalStore interface {
	// Create inserts a user. The first account ever created receives RoleAdmin,
	// every later one RoleUser. Returns ErrAlreadyExists on a duplicate email.
	Create(ctx context.Context, u NewUser) (Principal, error)
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	FindByID(ctx context.Context, id int64) (*Principal, error)
	List(ctx context.Context, limit, offset int) ([]Principal, error)
	// SearchByUsername matches fragment case-insensitively anywhere in the
	// username, ordered by id.
	SearchByUsername(ctx context.Context, fragment string, limit, offset int) ([]Principal, error)
	SetUsername(ctx context.Context, id int64, username string) error
	// UpdateRefreshToken stores token unconditionally; an empty token clears it.
	UpdateRefreshToken(ctx context.Context, id int64, token string) error
	// RotateRefreshToken replaces the stored token only while it still equals
	// old. It reports false when another writer got there first.
	RotateRefreshToken(ctx context.Context, id int64, old, next string) (bool, error)
	MarkVerified(ctx context.Context, email string) error
	SetActive(ctx context.Context, email string, active bool) error
	SetRole(ctx context.Context, email string, role Role) error
}

// RevocationStore is the persistent set of revoked tokens.
type RevocationStore interface {
	// Add records token as revoked; adding an already revoked token is a no-op.
	Add(ctx context.Context, rec Revocation) error
	Contains(ctx context.Context, tokenHash string) (bool, error)
	Remove(ctx context.Context, tokenHash string) error
	// Prune deletes records whose token expired before the given instant and
	// returns how many were removed.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// CacheBackend is a byte-oriented key/value store with per-entry expiry.
// Every call is best-effort from the caller's point of view.
type CacheBackend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Mailer delivers the email-confirmation link to a freshly registered user.
type Mailer interface {
	SendConfirmation(ctx context.Context, to, username, token string) error
}
