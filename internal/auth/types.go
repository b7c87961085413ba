package auth

import (
	"strings"
	"time"
)

// Role is the privilege level of a principal.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// ParseRole accepts the canonical role names, case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleModerator:
		return RoleModerator, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", ErrInvalidInput
	}
}

// Rank orders roles by privilege; unknown roles rank below RoleUser.
func (r Role) Rank() int {
	switch r {
	case RoleUser:
		return 1
	case RoleModerator:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}

func (r Role) Valid() bool { return r.Rank() > 0 }

// Principal is the authenticated user projection handed to route handlers.
// Email is the identity key.
type Principal struct {
	ID           int64
	Username     string
	Email        string
	Role         Role
	Active       bool
	Verified     bool
	PasswordHash string
	RefreshToken string
	Avatar       string
	CreatedAt    time.Time
}

// HasRefreshToken reports whether a refresh token is currently stored.
func (p Principal) HasRefreshToken() bool { return p.RefreshToken != "" }

// NewUser is the registration input accepted by PrincipalStore.Create.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Avatar       string
}

// Revocation is a revoked token record. Tokens are stored by SHA-256 digest;
// ExpiresAt is the natural expiry of the token and bounds how long the record
// must be kept.
type Revocation struct {
	TokenHash string
	RevokedAt time.Time
	ExpiresAt time.Time
}

// TokenPair represents access and refresh tokens along with their expirations.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
