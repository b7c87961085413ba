package auth

import (
	"context"
	"fmt"
	"strings"
)

// EditUsername renames the account behind p and returns the updated record.
// The cached snapshot is evicted so the gate serves the new name at once.
func (s *Service) EditUsername(ctx context.Context, p Principal, username string) (Principal, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > maxUsernameLen {
		return Principal{}, fmt.Errorf("%w: username must be 1-%d characters", ErrInvalidInput, maxUsernameLen)
	}
	if username == p.Username {
		return p, nil
	}
	if err := s.users.SetUsername(ctx, p.ID, username); err != nil {
		return Principal{}, fmt.Errorf("set username: %w", err)
	}
	s.cache.Evict(ctx, p.Email)

	updated, err := s.users.FindByID(ctx, p.ID)
	if err != nil {
		return Principal{}, fmt.Errorf("load principal: %w", err)
	}
	return *updated, nil
}

// SearchUsers finds accounts whose username contains fragment.
func (s *Service) SearchUsers(ctx context.Context, fragment string, limit, offset int) ([]Principal, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	limit, offset = pageBounds(limit, offset)
	users, err := s.users.SearchByUsername(ctx, fragment, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// UserByID returns one account; ErrNotFound when the id is unknown.
func (s *Service) UserByID(ctx context.Context, id int64) (Principal, error) {
	if id <= 0 {
		return Principal{}, ErrNotFound
	}
	p, err := s.users.FindByID(ctx, id)
	if err != nil {
		return Principal{}, err
	}
	return *p, nil
}
