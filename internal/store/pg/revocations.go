package pg

import (
	"context"
	"errors"
	"strings"
	"time"

	"photoshare.app/internal/auth"
)

// Revocations adapts Store to auth.RevocationStore. Store itself cannot
// implement both interfaces since their Add/Remove would collide.
type Revocations struct {
	s *Store
}

var _ auth.RevocationStore = Revocations{}

// Revocations returns the revoked-token view of the store.
func (s *Store) Revocations() Revocations { return Revocations{s: s} }

func (r Revocations) Add(ctx context.Context, rec auth.Revocation) error {
	if strings.TrimSpace(rec.TokenHash) == "" {
		return errors.New("revocation: token hash is required")
	}
	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()
	_, err := r.s.db.ExecContext(ctx, `
		insert into revoked_tokens (token_hash, revoked_at, expires_at)
		values ($1, $2, $3)
		on conflict (token_hash) do nothing
	`, rec.TokenHash, rec.RevokedAt.UTC(), rec.ExpiresAt.UTC())
	return err
}

func (r Revocations) Contains(ctx context.Context, tokenHash string) (bool, error) {
	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()
	var found bool
	err := r.s.db.QueryRowContext(ctx,
		`select exists (select 1 from revoked_tokens where token_hash = $1)`, tokenHash).Scan(&found)
	return found, err
}

func (r Revocations) Remove(ctx context.Context, tokenHash string) error {
	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()
	_, err := r.s.db.ExecContext(ctx, `delete from revoked_tokens where token_hash = $1`, tokenHash)
	return err
}

func (r Revocations) Prune(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := r.s.withTimeout(ctx)
	defer cancel()
	res, err := r.s.db.ExecContext(ctx, `delete from revoked_tokens where expires_at < $1`, before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
