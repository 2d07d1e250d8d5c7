package folioAuth

import (
	"context"
	"errors"
	"testing"
)

func TestBanAndUnbanAccount(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	admin := te.verifiedUser(t, "Root", "root@example.com")
	alice := te.verifiedUser(t, "Alice", "alice@example.com")

	if err := te.BanAccount(ctx, admin, alice); err != nil {
		t.Fatalf("BanAccount: %v", err)
	}
	if _, err := te.Authenticate(ctx, "alice@example.com", testPassword, ""); !errors.Is(err, ErrAccountBanned) {
		t.Fatalf("expected ErrAccountBanned after ban, got %v", err)
	}

	if err := te.UnbanAccount(ctx, admin, alice); err != nil {
		t.Fatalf("UnbanAccount: %v", err)
	}
	if _, err := te.Authenticate(ctx, "alice@example.com", testPassword, ""); err != nil {
		t.Fatalf("expected sign-in after unban, got %v", err)
	}

	snap := te.MetricsSnapshot()
	if snap.Counters[MetricAccountBanned] != 1 || snap.Counters[MetricAccountUnbanned] != 1 {
		t.Fatalf("unexpected admin metrics: %+v", snap.Counters)
	}
}

func TestAdminActionsRequireActiveAdmin(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	admin := te.verifiedUser(t, "Root", "root@example.com")
	alice := te.verifiedUser(t, "Alice", "alice@example.com")
	bob := te.verifiedUser(t, "Bob", "bob@example.com")

	tests := []struct {
		name string
		op   func() error
		want error
	}{
		{"user cannot ban", func() error { return te.BanAccount(ctx, alice, bob) }, ErrForbidden},
		{"admin cannot ban self", func() error { return te.BanAccount(ctx, admin, admin) }, ErrForbidden},
		{"user cannot promote", func() error { return te.SetRole(ctx, alice, alice, RoleAdmin) }, ErrForbidden},
		{"unknown role", func() error { return te.SetRole(ctx, admin, alice, Role("owner")) }, ErrValidation},
		{"unknown target", func() error { return te.BanAccount(ctx, admin, "missing") }, ErrAccountNotFound},
		{"unknown actor", func() error { return te.DeleteAccount(ctx, "missing", bob) }, ErrAccountNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.op(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestBannedAdminLosesAdminActions(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	root := te.verifiedUser(t, "Root", "root@example.com")
	second := te.verifiedUser(t, "Second", "second@example.com")
	alice := te.verifiedUser(t, "Alice", "alice@example.com")

	if err := te.SetRole(ctx, root, second, RoleAdmin); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if err := te.BanAccount(ctx, root, second); err != nil {
		t.Fatalf("BanAccount: %v", err)
	}
	if err := te.BanAccount(ctx, second, alice); !errors.Is(err, ErrForbidden) {
		t.Fatalf("banned admin: expected ErrForbidden, got %v", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	admin := te.verifiedUser(t, "Root", "root@example.com")
	alice := te.verifiedUser(t, "Alice", "alice@example.com")

	if err := te.DeleteAccount(ctx, admin, alice); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if _, err := te.Account(ctx, alice); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccountStripsSecrets(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	id := te.verifiedUser(t, "Root", "root@example.com")
	if _, err := te.Authenticate(ctx, "root@example.com", testPassword, ""); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	_ = te.ForgotPassword(ctx, "root@example.com")

	acct, err := te.Account(ctx, id)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if acct.PasswordHash != "" || acct.RefreshTokenDigest != "" || acct.Reset != nil || acct.TwoFactorSecret != "" {
		t.Fatalf("secrets leaked: %+v", acct)
	}
	if acct.Email != "root@example.com" {
		t.Fatalf("unexpected email %q", acct.Email)
	}
}

func TestAuditEventsForAdminActions(t *testing.T) {
	sink := NewChannelSink(64)
	te := newTestEngineWithSink(t, sink, func(c *Config) { c.Audit.Enabled = true })
	ctx := WithClientIP(context.Background(), "203.0.113.7")
	admin := te.verifiedUser(t, "Root", "root@example.com")
	alice := te.verifiedUser(t, "Alice", "alice@example.com")

	if err := te.BanAccount(ctx, admin, alice); err != nil {
		t.Fatalf("BanAccount: %v", err)
	}
	te.Close()

	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType != auditEventAccountStatusChange {
				continue
			}
			if !ev.Success || ev.AccountID != alice || ev.ActorID != admin || ev.IP != "203.0.113.7" {
				t.Fatalf("unexpected event %+v", ev)
			}
			if ev.Metadata["action"] != "ban" {
				t.Fatalf("unexpected metadata %+v", ev.Metadata)
			}
			return
		default:
			t.Fatal("account status change event not emitted")
		}
	}
}
