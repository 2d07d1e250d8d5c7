// Package memory provides an in-process account store for tests and
// single-node development servers.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	folioAuth "github.com/MrEthical07/folioAuth"
	"github.com/google/uuid"
)

// Store is a mutex-guarded map of accounts. Every method runs under the
// store lock, so conditional updates are atomic.
type Store struct {
	mu      sync.Mutex
	byID    map[string]*folioAuth.Account
	byEmail map[string]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byID:    make(map[string]*folioAuth.Account),
		byEmail: make(map[string]string),
	}
}

var _ folioAuth.AccountStore = (*Store)(nil)

func (s *Store) FindByEmail(_ context.Context, email string) (*folioAuth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, folioAuth.ErrAccountNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *Store) FindByID(_ context.Context, id string) (*folioAuth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return nil, folioAuth.ErrAccountNotFound
	}
	return clone(acct), nil
}

func (s *Store) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.byID)), nil
}

// Create assigns RoleAdmin when the store is empty. The count and insert
// happen under one lock.
func (s *Store) Create(_ context.Context, in folioAuth.CreateAccountInput) (*folioAuth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	first := len(s.byID) == 0
	if in.OnlyIfEmpty && !first {
		return nil, folioAuth.ErrRegistrationDisabled
	}

	email := strings.ToLower(in.Email)
	if _, exists := s.byEmail[email]; exists {
		return nil, folioAuth.ErrAccountExists
	}

	role := folioAuth.RoleUser
	if first {
		role = folioAuth.RoleAdmin
	}

	acct := &folioAuth.Account{
		ID:            uuid.NewString(),
		Email:         email,
		Name:          in.Name,
		PasswordHash:  in.PasswordHash,
		Role:          role,
		Status:        folioAuth.StatusActive,
		EmailVerified: in.EmailVerified || (first && in.VerifyIfFirst),
		AvatarURL:     in.AvatarURL,
		Provider:      in.Provider,
		CreatedAt:     in.Now,
		UpdatedAt:     in.Now,
	}
	s.byID[acct.ID] = acct
	s.byEmail[email] = acct.ID
	return clone(acct), nil
}

func (s *Store) SetPendingToken(_ context.Context, id string, kind folioAuth.TokenKind, token folioAuth.PendingToken, now time.Time) error {
	return s.update(id, now, func(a *folioAuth.Account) {
		t := token
		switch kind {
		case folioAuth.TokenVerification:
			a.Verification = &t
		case folioAuth.TokenReset:
			a.Reset = &t
		}
	})
}

func (s *Store) FindByPendingToken(_ context.Context, kind folioAuth.TokenKind, digest string, now time.Time) (*folioAuth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.matchPending(kind, digest, now)
	if acct == nil {
		return nil, folioAuth.ErrAccountNotFound
	}
	return clone(acct), nil
}

func (s *Store) ConsumePendingToken(_ context.Context, kind folioAuth.TokenKind, digest string, now time.Time, effect folioAuth.TokenEffect) (*folioAuth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.matchPending(kind, digest, now)
	if acct == nil {
		return nil, folioAuth.ErrAccountNotFound
	}

	switch kind {
	case folioAuth.TokenVerification:
		acct.Verification = nil
	case folioAuth.TokenReset:
		acct.Reset = nil
	}
	if effect.MarkVerified {
		acct.EmailVerified = true
		acct.Verification = nil
	}
	if effect.PasswordHash != "" {
		acct.PasswordHash = effect.PasswordHash
		acct.RefreshTokenDigest = ""
	}
	acct.UpdatedAt = now
	return clone(acct), nil
}

func (s *Store) RotateRefreshToken(_ context.Context, id, digest string, now time.Time) error {
	return s.update(id, now, func(a *folioAuth.Account) {
		a.RefreshTokenDigest = digest
	})
}

func (s *Store) SetTwoFactorSecret(_ context.Context, id, secret string, now time.Time) error {
	return s.update(id, now, func(a *folioAuth.Account) {
		a.TwoFactorSecret = secret
		a.TwoFactorEnabled = false
		a.TwoFactorLastStep = 0
	})
}

// EnableTwoFactor enables two-factor login only while secret is still the
// stored secret.
func (s *Store) EnableTwoFactor(_ context.Context, id, secret string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return folioAuth.ErrAccountNotFound
	}
	if acct.TwoFactorSecret == "" || acct.TwoFactorSecret != secret {
		return folioAuth.ErrTwoFactorNotEnrolled
	}
	acct.TwoFactorEnabled = true
	acct.UpdatedAt = now
	return nil
}

// ClaimTwoFactorStep records step only when it is newer than the last
// accepted step.
func (s *Store) ClaimTwoFactorStep(_ context.Context, id string, step int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return folioAuth.ErrAccountNotFound
	}
	if step <= acct.TwoFactorLastStep {
		return folioAuth.ErrTwoFactorInvalid
	}
	acct.TwoFactorLastStep = step
	acct.UpdatedAt = now
	return nil
}

func (s *Store) UpdateAvatar(_ context.Context, id, avatarURL string, now time.Time) error {
	return s.update(id, now, func(a *folioAuth.Account) {
		a.AvatarURL = avatarURL
	})
}

func (s *Store) UpdateStatus(_ context.Context, id string, status folioAuth.AccountStatus, now time.Time) error {
	return s.update(id, now, func(a *folioAuth.Account) {
		a.Status = status
	})
}

func (s *Store) UpdateRole(_ context.Context, id string, role folioAuth.Role, now time.Time) error {
	return s.update(id, now, func(a *folioAuth.Account) {
		a.Role = role
	})
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return folioAuth.ErrAccountNotFound
	}
	delete(s.byEmail, acct.Email)
	delete(s.byID, id)
	return nil
}

func (s *Store) update(id string, now time.Time, fn func(*folioAuth.Account)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return folioAuth.ErrAccountNotFound
	}
	fn(acct)
	acct.UpdatedAt = now
	return nil
}

// matchPending must be called with s.mu held.
func (s *Store) matchPending(kind folioAuth.TokenKind, digest string, now time.Time) *folioAuth.Account {
	for _, acct := range s.byID {
		p := acct.Pending(kind)
		if p != nil && p.Digest == digest && now.Before(p.ExpiresAt) {
			return acct
		}
	}
	return nil
}

func clone(a *folioAuth.Account) *folioAuth.Account {
	out := *a
	if a.Verification != nil {
		v := *a.Verification
		out.Verification = &v
	}
	if a.Reset != nil {
		r := *a.Reset
		out.Reset = &r
	}
	return &out
}
