package folioAuth

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestLinkExternalIdentityCreatesVerifiedAccount(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	p, err := te.LinkExternalIdentity(ctx, ExternalIdentity{
		Provider:    "GitHub",
		Subject:     "42",
		Email:       "Carol@Example.com",
		Name:        "Carol",
		AvatarURL:   "https://avatars.example.com/carol.png",
		AccessToken: "gho_token",
	})
	if err != nil {
		t.Fatalf("LinkExternalIdentity: %v", err)
	}
	if p.Role != RoleAdmin {
		t.Fatalf("first external account must be admin, got %s", p.Role)
	}
	if p.AccessToken != "gho_token" {
		t.Fatal("provider access token must be carried on the principal")
	}

	acct := te.store.get(t, p.ID)
	if !acct.EmailVerified || acct.Status != StatusActive || acct.Provider != "github" {
		t.Fatalf("unexpected account %+v", acct)
	}
	if acct.Email != "carol@example.com" || acct.PasswordHash != "" {
		t.Fatalf("unexpected email or password digest: %+v", acct)
	}
	if te.mailer.count() != 0 {
		t.Fatal("external accounts need no verification mail")
	}
}

func TestLinkExternalIdentityExistingAccountUpdatesAvatar(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	id := te.verifiedUser(t, "Carol", "carol@example.com")

	p, err := te.LinkExternalIdentity(ctx, ExternalIdentity{Provider: "google", Email: "carol@example.com", AvatarURL: "https://img.example.com/new.png"})
	if err != nil {
		t.Fatalf("LinkExternalIdentity: %v", err)
	}
	if p.ID != id {
		t.Fatalf("expected existing account %s, got %s", id, p.ID)
	}
	if got := te.store.get(t, id).AvatarURL; got != "https://img.example.com/new.png" {
		t.Fatalf("avatar not updated: %q", got)
	}
	if len(te.store.accounts) != 1 {
		t.Fatalf("no new account expected, have %d", len(te.store.accounts))
	}
}

func TestLinkExternalIdentityAvatarFailureDoesNotFail(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	te.verifiedUser(t, "Carol", "carol@example.com")
	te.store.updateErr = errStoreDown

	if _, err := te.LinkExternalIdentity(ctx, ExternalIdentity{Provider: "google", Email: "carol@example.com", AvatarURL: "https://img.example.com/x.png"}); err != nil {
		t.Fatalf("avatar failure must not fail sign-in: %v", err)
	}
}

func TestLinkExternalIdentityBanned(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	te.verifiedUser(t, "Root", "root@example.com")
	id := te.verifiedUser(t, "Mallory", "mallory@example.com")
	_ = te.store.UpdateStatus(ctx, id, StatusBanned, te.clock.Now())

	if _, err := te.LinkExternalIdentity(ctx, ExternalIdentity{Provider: "google", Email: "mallory@example.com"}); !errors.Is(err, ErrAccountBanned) {
		t.Fatalf("expected ErrAccountBanned, got %v", err)
	}
}

func TestLinkExternalIdentityRequiresEmail(t *testing.T) {
	te := newTestEngine(t)
	if _, err := te.LinkExternalIdentity(context.Background(), ExternalIdentity{Provider: "github", Subject: "1"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestLinkExternalIdentityConcurrentFirstSignIn(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	const n = 8
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			p, err := te.LinkExternalIdentity(ctx, ExternalIdentity{Provider: "google", Email: "dave@example.com"})
			errs[i] = err
			if p != nil {
				ids[i] = p.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("sign-in %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("all sign-ins must resolve to one account, got %s and %s", ids[0], ids[i])
		}
	}
}
