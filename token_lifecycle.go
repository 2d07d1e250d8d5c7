package folioAuth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/folioAuth/internal"
)

// tokenLifecycle manages the verification and reset token slots on an
// account. Each slot moves NONE -> ISSUED -> {CONSUMED | EXPIRED}; every
// failure is reported as ErrTokenInvalid.
type tokenLifecycle struct {
	store AccountStore
}

// issue stores the digest of a fresh token with expiry now+ttl, replacing
// any pending token of the same kind, and returns the raw token.
func (t *tokenLifecycle) issue(ctx context.Context, kind TokenKind, accountID string, ttl time.Duration, now time.Time) (string, error) {
	raw, err := internal.NewToken()
	if err != nil {
		return "", fmt.Errorf("generate %s token: %w", kind, err)
	}

	pending := PendingToken{
		Digest:    internal.Digest(raw),
		ExpiresAt: now.Add(ttl),
	}
	if err := t.store.SetPendingToken(ctx, accountID, kind, pending, now); err != nil {
		return "", wrapStoreError(err)
	}
	return raw, nil
}

// validate returns the account holding raw as an unexpired pending token.
func (t *tokenLifecycle) validate(ctx context.Context, kind TokenKind, raw string, now time.Time) (*Account, error) {
	digest, err := tokenDigest(raw)
	if err != nil {
		return nil, err
	}

	acct, err := t.store.FindByPendingToken(ctx, kind, digest, now)
	if err != nil {
		return nil, tokenStoreError(err)
	}
	if !pendingMatches(acct.Pending(kind), digest, now) {
		return nil, ErrTokenInvalid
	}
	return acct, nil
}

// consume clears the token and applies effect in one conditional store
// update. A second consume of the same token fails.
func (t *tokenLifecycle) consume(ctx context.Context, kind TokenKind, raw string, now time.Time, effect TokenEffect) (*Account, error) {
	digest, err := tokenDigest(raw)
	if err != nil {
		return nil, err
	}

	acct, err := t.store.ConsumePendingToken(ctx, kind, digest, now, effect)
	if err != nil {
		return nil, tokenStoreError(err)
	}
	return acct, nil
}

func tokenDigest(raw string) (string, error) {
	raw, err := internal.ParseToken(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return "", ErrTokenInvalid
	}
	return internal.Digest(raw), nil
}

func tokenStoreError(err error) error {
	if errors.Is(err, ErrAccountNotFound) {
		return ErrTokenInvalid
	}
	return wrapStoreError(err)
}

func pendingMatches(p *PendingToken, digest string, now time.Time) bool {
	if p == nil || p.Digest == "" {
		return false
	}
	return internal.EqualDigest(p.Digest, digest) && now.Before(p.ExpiresAt)
}
