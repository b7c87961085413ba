package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"photoshare.app/internal/auth"
)

var _ auth.PrincipalStore = (*Store)(nil)

// signupLockKey serializes signups so exactly one account becomes the first admin.
const signupLockKey = 0x70686f746f

const userColumns = `id, username, email, password_hash, role, is_active, is_verified,
	coalesce(refresh_token, ''), coalesce(avatar, ''), created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row rowScanner) (auth.Principal, error) {
	var (
		p    auth.Principal
		role string
	)
	if err := row.Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &role,
		&p.Active, &p.Verified, &p.RefreshToken, &p.Avatar, &p.CreatedAt); err != nil {
		return auth.Principal{}, err
	}
	p.Role = auth.Role(role)
	return p, nil
}

func (s *Store) Create(ctx context.Context, u auth.NewUser) (auth.Principal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.Principal{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `select pg_advisory_xact_lock($1)`, signupLockKey); err != nil {
		return auth.Principal{}, fmt.Errorf("signup lock: %w", err)
	}
	row := tx.QueryRowContext(ctx, `
		insert into users (username, email, password_hash, avatar, role)
		values ($1, $2, $3, nullif($4, ''),
			case when exists (select 1 from users) then 'user' else 'admin' end)
		returning `+userColumns,
		u.Username, u.Email, u.PasswordHash, u.Avatar)
	p, err := scanPrincipal(row)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.Principal{}, auth.ErrAlreadyExists
		}
		return auth.Principal{}, fmt.Errorf("insert user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return auth.Principal{}, err
	}
	return p, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*auth.Principal, error) {
	return s.findOne(ctx, `select `+userColumns+` from users where email = $1`, email)
}

func (s *Store) FindByID(ctx context.Context, id int64) (*auth.Principal, error) {
	return s.findOne(ctx, `select `+userColumns+` from users where id = $1`, id)
}

func (s *Store) findOne(ctx context.Context, query string, arg any) (*auth.Principal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	p, err := scanPrincipal(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) List(ctx context.Context, limit, offset int) ([]auth.Principal, error) {
	return s.queryMany(ctx, `select `+userColumns+` from users order by id limit $1 offset $2`, limit, offset)
}

func (s *Store) queryMany(ctx context.Context, query string, args ...any) ([]auth.Principal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auth.Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SearchByUsername(ctx context.Context, fragment string, limit, offset int) ([]auth.Principal, error) {
	return s.queryMany(ctx, `select `+userColumns+` from users
		where lower(username) like '%' || $1 || '%' escape '\'
		order by id limit $2 offset $3`, likeEscape(strings.ToLower(fragment)), limit, offset)
}

// likeEscape quotes the LIKE metacharacters so fragment matches literally.
func likeEscape(fragment string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(fragment)
}

func (s *Store) SetUsername(ctx context.Context, id int64, username string) error {
	return s.execOne(ctx, `update users set username = $2 where id = $1`, id, username)
}

func (s *Store) UpdateRefreshToken(ctx context.Context, id int64, token string) error {
	return s.execOne(ctx, `update users set refresh_token = nullif($2, '') where id = $1`, id, token)
}

func (s *Store) RotateRefreshToken(ctx context.Context, id int64, old, next string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, `update users set refresh_token = $3 where id = $1 and refresh_token = $2`, id, old, next)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) MarkVerified(ctx context.Context, email string) error {
	return s.execOne(ctx, `update users set is_verified = true where email = $1`, email)
}

func (s *Store) SetActive(ctx context.Context, email string, active bool) error {
	return s.execOne(ctx, `update users set is_active = $2 where email = $1`, email, active)
}

func (s *Store) SetRole(ctx context.Context, email string, role auth.Role) error {
	return s.execOne(ctx, `update users set role = $2 where email = $1`, email, string(role))
}

// execOne runs an update expected to touch exactly one row.
func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}
