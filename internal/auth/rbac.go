package auth

import (
	"context"
	"fmt"
	"strings"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListUsers pages through accounts ordered by id.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]Principal, error) {
	limit, offset = pageBounds(limit, offset)
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ChangeRole assigns role to the account with email. It reports false when
// the account already held that role.
func (s *Service) ChangeRole(ctx context.Context, email string, role Role) (bool, error) {
	if !role.Valid() {
		return false, ErrInvalidInput
	}
	p, err := s.findForUpdate(ctx, email)
	if err != nil {
		return false, err
	}
	if p.Role == role {
		return false, nil
	}
	if err := s.users.SetRole(ctx, p.Email, role); err != nil {
		return false, fmt.Errorf("set role: %w", err)
	}
	s.cache.Evict(ctx, p.Email)
	return true, nil
}

// Ban deactivates the account with email and ends its session. It reports
// false when the account was already inactive.
func (s *Service) Ban(ctx context.Context, email string) (bool, error) {
	p, err := s.findForUpdate(ctx, email)
	if err != nil {
		return false, err
	}
	if !p.Active {
		return false, nil
	}
	if err := s.users.SetActive(ctx, p.Email, false); err != nil {
		return false, fmt.Errorf("deactivate user: %w", err)
	}
	if err := s.users.UpdateRefreshToken(ctx, p.ID, ""); err != nil {
		return false, fmt.Errorf("clear refresh token: %w", err)
	}
	s.cache.Evict(ctx, p.Email)
	return true, nil
}

func (s *Service) findForUpdate(ctx context.Context, email string) (*Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrInvalidInput
	}
	p, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return p, nil
}
