// Package memory provides in-process stores used when no database is
// configured and in tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"photoshare.app/internal/auth"
)

// Users is a mutex-guarded auth.PrincipalStore.
type Users struct {
	mu     sync.RWMutex
	nextID int64
	byMail map[string]*auth.Principal
	now    func() time.Time
}

var _ auth.PrincipalStore = (*Users)(nil)

func NewUsers() *Users {
	return &Users{byMail: make(map[string]*auth.Principal), now: time.Now}
}

func (u *Users) Create(_ context.Context, in auth.NewUser) (auth.Principal, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.byMail[in.Email]; ok {
		return auth.Principal{}, auth.ErrAlreadyExists
	}
	role := auth.RoleUser
	if len(u.byMail) == 0 {
		role = auth.RoleAdmin
	}
	u.nextID++
	p := &auth.Principal{
		ID:           u.nextID,
		Username:     in.Username,
		Email:        in.Email,
		Role:         role,
		Active:       true,
		PasswordHash: in.PasswordHash,
		Avatar:       in.Avatar,
		CreatedAt:    u.now().UTC(),
	}
	u.byMail[in.Email] = p
	return *p, nil
}

func (u *Users) FindByEmail(_ context.Context, email string) (*auth.Principal, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	p, ok := u.byMail[email]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (u *Users) FindByID(_ context.Context, id int64) (*auth.Principal, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, p := range u.byMail {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (u *Users) List(_ context.Context, limit, offset int) ([]auth.Principal, error) {
	u.mu.RLock()
	all := make([]auth.Principal, 0, len(u.byMail))
	for _, p := range u.byMail {
		all = append(all, *p)
	}
	u.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (u *Users) SearchByUsername(_ context.Context, fragment string, limit, offset int) ([]auth.Principal, error) {
	fragment = strings.ToLower(fragment)
	u.mu.RLock()
	var hits []auth.Principal
	for _, p := range u.byMail {
		if strings.Contains(strings.ToLower(p.Username), fragment) {
			hits = append(hits, *p)
		}
	}
	u.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
	if offset >= len(hits) {
		return nil, nil
	}
	hits = hits[offset:]
	if limit > 0 && limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

func (u *Users) SetUsername(_ context.Context, id int64, username string) error {
	return u.updateByID(id, func(p *auth.Principal) { p.Username = username })
}

func (u *Users) UpdateRefreshToken(_ context.Context, id int64, token string) error {
	return u.updateByID(id, func(p *auth.Principal) { p.RefreshToken = token })
}

func (u *Users) RotateRefreshToken(_ context.Context, id int64, old, next string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, p := range u.byMail {
		if p.ID != id {
			continue
		}
		if p.RefreshToken != old {
			return false, nil
		}
		p.RefreshToken = next
		return true, nil
	}
	return false, nil
}

func (u *Users) MarkVerified(_ context.Context, email string) error {
	return u.updateByEmail(email, func(p *auth.Principal) { p.Verified = true })
}

func (u *Users) SetActive(_ context.Context, email string, active bool) error {
	return u.updateByEmail(email, func(p *auth.Principal) { p.Active = active })
}

func (u *Users) SetRole(_ context.Context, email string, role auth.Role) error {
	return u.updateByEmail(email, func(p *auth.Principal) { p.Role = role })
}

func (u *Users) updateByEmail(email string, fn func(*auth.Principal)) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	p, ok := u.byMail[email]
	if !ok {
		return auth.ErrNotFound
	}
	fn(p)
	return nil
}

func (u *Users) updateByID(id int64, fn func(*auth.Principal)) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, p := range u.byMail {
		if p.ID == id {
			fn(p)
			return nil
		}
	}
	return auth.ErrNotFound
}

// Revocations is a mutex-guarded auth.RevocationStore.
type Revocations struct {
	mu      sync.RWMutex
	records map[string]auth.Revocation
}

var _ auth.RevocationStore = (*Revocations)(nil)

func NewRevocations() *Revocations {
	return &Revocations{records: make(map[string]auth.Revocation)}
}

func (r *Revocations) Add(_ context.Context, rec auth.Revocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.TokenHash]; !ok {
		r.records[rec.TokenHash] = rec
	}
	return nil
}

func (r *Revocations) Contains(_ context.Context, tokenHash string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[tokenHash]
	return ok, nil
}

func (r *Revocations) Remove(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, tokenHash)
	return nil
}

func (r *Revocations) Prune(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, rec := range r.records {
		if rec.ExpiresAt.Before(before) {
			delete(r.records, k)
			n++
		}
	}
	return n, nil
}
