package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultEmailTTL   = 3 * 24 * time.Hour

	minPasswordLen = 6
	maxUsernameLen = 50
	// maxEmailLen is the RFC 5321 path limit.
	maxEmailLen = 254
)

// Service composes the auth primitives into the session flows: signup, login,
// refresh rotation, logout and email confirmation.
type Service struct {
	users   PrincipalStore
	revoked RevocationStore
	codec   *Codec
	hasher  PasswordHasher
	cache   *ClaimsCache
	mailer  Mailer
	log     *zap.Logger
	now     func() time.Time

	accessTTL  time.Duration
	refreshTTL time.Duration
	emailTTL   time.Duration
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithClock overrides the time source used for revocation records.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) error {
		if now == nil {
			return errors.New("auth: clock must not be nil")
		}
		s.now = now
		return nil
	}
}

// WithTokenTTLs sets access, refresh and email token lifetimes. Zero keeps the default.
func WithTokenTTLs(access, refresh, email time.Duration) ServiceOption {
	return func(s *Service) error {
		if access < 0 || refresh < 0 || email < 0 {
			return errors.New("auth: token ttl must not be negative")
		}
		if access > 0 {
			s.accessTTL = access
		}
		if refresh > 0 {
			s.refreshTTL = refresh
		}
		if email > 0 {
			s.emailTTL = email
		}
		return nil
	}
}

// WithMailer sets the confirmation mail sender.
func WithMailer(m Mailer) ServiceOption {
	return func(s *Service) error {
		s.mailer = m
		return nil
	}
}

// WithClaimsCache lets the service evict principals it modifies.
func WithClaimsCache(c *ClaimsCache) ServiceOption {
	return func(s *Service) error {
		s.cache = c
		return nil
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) error {
		if l != nil {
			s.log = l
		}
		return nil
	}
}

// NewService constructs the session service.
func NewService(users PrincipalStore, revoked RevocationStore, codec *Codec, hasher PasswordHasher, opts ...ServiceOption) (*Service, error) {
	if users == nil || revoked == nil || codec == nil {
		return nil, errors.New("auth: users, revocations and codec are required")
	}
	s := &Service{
		users:      users,
		revoked:    revoked,
		codec:      codec,
		hasher:     hasher,
		log:        zap.NewNop(),
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		emailTTL:   defaultEmailTTL,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.log = s.log.With(zap.String("component", "auth.service"))
	return s, nil
}

// Registration is the signup input.
type Registration struct {
	Username string
	Email    string
	Password string
	Avatar   string
}

func (r Registration) normalize() (Registration, error) {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.Username == "" || len(r.Username) > maxUsernameLen {
		return r, fmt.Errorf("%w: username must be 1-%d characters", ErrInvalidInput, maxUsernameLen)
	}
	if len(r.Email) > maxEmailLen {
		return r, fmt.Errorf("%w: email must be at most %d characters", ErrInvalidInput, maxEmailLen)
	}
	if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		return r, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if len(r.Password) < minPasswordLen {
		return r, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	return r, nil
}

// Register creates an account and sends the confirmation token. Delivery
// failures are logged; the account exists either way and the user may ask for
// another mail.
func (s *Service) Register(ctx context.Context, in Registration) (Principal, error) {
	in, err := in.normalize()
	if err != nil {
		return Principal{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Principal{}, fmt.Errorf("hash password: %w", err)
	}
	p, err := s.users.Create(ctx, NewUser{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Avatar:       in.Avatar,
	})
	if err != nil {
		return Principal{}, err
	}
	s.sendConfirmation(ctx, p)
	return p, nil
}

// Login checks credentials, then verification, then activity, and issues a
// fresh token pair. Unknown email and wrong password are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	p, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("load principal: %w", err)
	}
	if !s.hasher.Verify(password, p.PasswordHash) {
		return TokenPair{}, ErrInvalidCredentials
	}
	if !p.Verified {
		return TokenPair{}, ErrEmailNotConfirmed
	}
	if !p.Active {
		return TokenPair{}, ErrUserNotActive
	}
	pair, err := s.issuePair(p.Email)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.users.UpdateRefreshToken(ctx, p.ID, pair.RefreshToken); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return pair, nil
}

// Refresh rotates the session. The presented token must equal the stored one;
// a mismatch means a rotated-out token was replayed, so the stored token is
// cleared and the holder of the newer one has to log in again.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.codec.Decode(refreshToken, ScopeRefresh)
	if err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	p, err := s.users.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("load principal: %w", err)
	}
	if p.RefreshToken != refreshToken {
		if p.HasRefreshToken() {
			s.log.Warn("refresh token reuse detected", zap.Int64("user_id", p.ID))
			if err := s.users.UpdateRefreshToken(ctx, p.ID, ""); err != nil {
				return TokenPair{}, fmt.Errorf("clear refresh token: %w", err)
			}
		}
		return TokenPair{}, ErrInvalidCredentials
	}
	if !p.Active {
		return TokenPair{}, ErrUserNotActive
	}
	pair, err := s.issuePair(p.Email)
	if err != nil {
		return TokenPair{}, err
	}
	swapped, err := s.users.RotateRefreshToken(ctx, p.ID, refreshToken, pair.RefreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !swapped {
		return TokenPair{}, ErrInvalidCredentials
	}
	return pair, nil
}

// Logout revokes the access token until its natural expiry and drops the
// stored refresh token.
func (s *Service) Logout(ctx context.Context, p Principal, accessToken string) error {
	claims, err := s.codec.Decode(accessToken, ScopeAccess)
	if err != nil {
		return ErrInvalidCredentials
	}
	rec := Revocation{
		TokenHash: HashToken(accessToken),
		RevokedAt: s.now().UTC(),
	}
	if claims.ExpiresAt != nil {
		rec.ExpiresAt = claims.ExpiresAt.Time.UTC()
	} else {
		rec.ExpiresAt = rec.RevokedAt.Add(s.accessTTL)
	}
	if err := s.revoked.Add(ctx, rec); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if p.ID != 0 {
		if err := s.users.UpdateRefreshToken(ctx, p.ID, ""); err != nil {
			return fmt.Errorf("clear refresh token: %w", err)
		}
	}
	return nil
}

// ConfirmEmail marks the token subject verified. It reports true when the
// address had already been confirmed.
func (s *Service) ConfirmEmail(ctx context.Context, token string) (bool, error) {
	claims, err := s.codec.Decode(token, ScopeEmail)
	switch {
	case errors.Is(err, ErrInvalidScope):
		return false, ErrInvalidCredentials
	case err != nil:
		return false, ErrInvalidEmailToken
	}
	p, err := s.users.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, ErrVerificationFailed
		}
		return false, fmt.Errorf("load principal: %w", err)
	}
	if p.Verified {
		return true, nil
	}
	if err := s.users.MarkVerified(ctx, p.Email); err != nil {
		return false, fmt.Errorf("mark verified: %w", err)
	}
	s.cache.Evict(ctx, p.Email)
	return false, nil
}

// RequestEmail resends the confirmation token to an unverified account.
// Unknown and already verified addresses are silently ignored.
func (s *Service) RequestEmail(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}
	p, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load principal: %w", err)
	}
	if p.Verified {
		return nil
	}
	s.sendConfirmation(ctx, *p)
	return nil
}

// IssueEmailToken returns a fresh email_token for subject.
func (s *Service) IssueEmailToken(subject string) (string, error) {
	tok, _, err := s.codec.Issue(subject, ScopeEmail, s.emailTTL)
	return tok, err
}

func (s *Service) sendConfirmation(ctx context.Context, p Principal) {
	if s.mailer == nil {
		return
	}
	tok, err := s.IssueEmailToken(p.Email)
	if err != nil {
		s.log.Error("issue email token", zap.Error(err))
		return
	}
	if err := s.mailer.SendConfirmation(ctx, p.Email, p.Username, tok); err != nil {
		s.log.Warn("send confirmation failed", zap.Int64("user_id", p.ID), zap.Error(err))
	}
}

func (s *Service) issuePair(subject string) (TokenPair, error) {
	access, accessExp, err := s.codec.Issue(subject, ScopeAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := s.codec.Issue(subject, ScopeRefresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}
