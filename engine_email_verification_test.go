package folioAuth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func registerUnverified(t *testing.T, te *testEngine, name, email string) (string, string) {
	t.Helper()
	res, err := te.Register(context.Background(), RegisterRequest{Name: name, Email: email, Password: testPassword})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return res.AccountID, te.mailer.lastToken(t, "verification", email)
}

func TestVerifyEmailSingleUse(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	te.verifiedUser(t, "Root", "root@example.com")
	id, token := registerUnverified(t, te, "Alice", "alice@example.com")

	if err := te.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("first VerifyEmail: %v", err)
	}
	acct := te.store.get(t, id)
	if !acct.EmailVerified || acct.Verification != nil {
		t.Fatalf("expected verified with cleared token, got %+v", acct)
	}

	if err := te.VerifyEmail(ctx, token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("replay: expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyEmailExpiryBoundary(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	te.verifiedUser(t, "Root", "root@example.com")
	_, token := registerUnverified(t, te, "Alice", "alice@example.com")

	te.clock.Advance(24 * time.Hour)
	if err := te.VerifyEmail(ctx, token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("token at expiry instant: expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyEmailJustBeforeExpiry(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	te.verifiedUser(t, "Root", "root@example.com")
	_, token := registerUnverified(t, te, "Alice", "alice@example.com")

	te.clock.Advance(24*time.Hour - time.Second)
	if err := te.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("expected success before expiry, got %v", err)
	}
}

func TestVerifyEmailRejectsMalformedTokens(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	for _, raw := range []string{"", "abc", "zz" + string(make([]byte, 62)), "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdeg"} {
		if err := te.VerifyEmail(ctx, raw); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("VerifyEmail(%q): expected ErrTokenInvalid, got %v", raw, err)
		}
	}
}

func TestResendVerificationInvalidatesPreviousToken(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	te.verifiedUser(t, "Root", "root@example.com")
	id, first := registerUnverified(t, te, "Alice", "alice@example.com")

	if err := te.ResendVerification(ctx, "alice@example.com"); err != nil {
		t.Fatalf("ResendVerification: %v", err)
	}
	second := te.mailer.lastToken(t, "verification", "alice@example.com")
	if first == second {
		t.Fatal("reissue must produce a new token")
	}

	if err := te.VerifyEmail(ctx, first); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("superseded token: expected ErrTokenInvalid, got %v", err)
	}
	if err := te.VerifyEmail(ctx, second); err != nil {
		t.Fatalf("current token: %v", err)
	}
	if !te.store.get(t, id).EmailVerified {
		t.Fatal("expected account verified")
	}
}

func TestResendVerificationIsEnumerationSafe(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	te.verifiedUser(t, "Root", "root@example.com")
	before := te.mailer.count()

	for _, email := range []string{"nobody@example.com", "root@example.com", "bogus"} {
		if err := te.ResendVerification(ctx, email); err != nil {
			t.Fatalf("ResendVerification(%s): %v", email, err)
		}
	}
	if te.mailer.count() != before {
		t.Fatalf("no mail expected for unknown or verified addresses, got %d", te.mailer.count()-before)
	}
}

func TestVerifyEmailBannedAccount(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	te.verifiedUser(t, "Root", "root@example.com")
	id, token := registerUnverified(t, te, "Alice", "alice@example.com")
	if err := te.store.UpdateStatus(ctx, id, StatusBanned, te.clock.Now()); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	if err := te.VerifyEmail(ctx, token); !errors.Is(err, ErrAccountBanned) {
		t.Fatalf("expected ErrAccountBanned, got %v", err)
	}
	if te.store.get(t, id).EmailVerified {
		t.Fatal("banned account must not be verified")
	}
}
