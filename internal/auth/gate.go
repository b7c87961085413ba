package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"photoshare.app/internal/obs"
)

const bearerPrefix = "bearer "

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", ErrUnauthenticated
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", ErrUnauthenticated
	}
	return token, nil
}

// HashToken returns the hex SHA-256 digest under which revocations are stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Gate authorizes one request: bearer token, signature and expiry, scope,
// revocation, identity. The steps run in that order and each assumes the ones
// before it passed.
type Gate struct {
	codec    *Codec
	users    PrincipalStore
	revoked  RevocationStore
	cache    *ClaimsCache
	cacheTTL time.Duration
	log      *zap.Logger
}

// GateOption configures Gate behavior.
type GateOption func(*Gate)

// WithCacheTTL sets how long resolved principals stay cached.
func WithCacheTTL(ttl time.Duration) GateOption {
	return func(g *Gate) {
		if ttl > 0 {
			g.cacheTTL = ttl
		}
	}
}

// WithGateLogger sets the gate logger.
func WithGateLogger(l *zap.Logger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

// NewGate wires the gate to its collaborators. cache may be nil.
func NewGate(codec *Codec, users PrincipalStore, revoked RevocationStore, cache *ClaimsCache, opts ...GateOption) *Gate {
	g := &Gate{
		codec:    codec,
		users:    users,
		revoked:  revoked,
		cache:    cache,
		cacheTTL: DefaultCacheTTL,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With(zap.String("component", "auth.gate"))
	return g
}

// Authorize runs the full pipeline starting from a raw Authorization header.
func (g *Gate) Authorize(ctx context.Context, header string) (Principal, error) {
	token, err := BearerToken(header)
	if err != nil {
		obs.ObserveGateDecision("unauthenticated")
		return Principal{}, err
	}
	return g.AuthorizeToken(ctx, token)
}

// AuthorizeToken runs the pipeline for an already extracted access token.
// Every token-related failure, including revocation and an unknown subject,
// surfaces as ErrInvalidCredentials.
func (g *Gate) AuthorizeToken(ctx context.Context, token string) (Principal, error) {
	ctx, span := otel.Tracer("photoshare.app/internal/auth").Start(ctx, "auth.gate")
	defer span.End()

	p, outcome, err := g.authorize(ctx, token)
	obs.ObserveGateDecision(outcome)
	span.SetAttributes(attribute.String("auth.outcome", outcome))
	if err != nil {
		span.SetStatus(codes.Error, outcome)
		return Principal{}, err
	}
	return p, nil
}

func (g *Gate) authorize(ctx context.Context, token string) (Principal, string, error) {
	if strings.TrimSpace(token) == "" {
		return Principal{}, "unauthenticated", ErrUnauthenticated
	}

	claims, err := g.codec.Decode(token, ScopeAccess)
	if err != nil {
		return Principal{}, "invalid_credentials", ErrInvalidCredentials
	}
	email := strings.TrimSpace(claims.Subject)
	if email == "" {
		return Principal{}, "invalid_credentials", ErrInvalidCredentials
	}

	revoked, err := g.revoked.Contains(ctx, HashToken(token))
	if err != nil {
		return Principal{}, "error", fmt.Errorf("revocation check: %w", err)
	}
	if revoked {
		return Principal{}, "invalid_credentials", ErrInvalidCredentials
	}

	p, err := g.resolve(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, "invalid_credentials", ErrInvalidCredentials
		}
		return Principal{}, "error", err
	}
	if !p.Active {
		return Principal{}, "inactive", ErrUserNotActive
	}
	return p, "authorized", nil
}

func (g *Gate) resolve(ctx context.Context, email string) (Principal, error) {
	if p, ok := g.cache.Get(ctx, email); ok {
		return p, nil
	}
	found, err := g.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrNotFound
		}
		return Principal{}, fmt.Errorf("load principal: %w", err)
	}
	g.cache.Put(ctx, email, *found, g.cacheTTL)
	return *found, nil
}
