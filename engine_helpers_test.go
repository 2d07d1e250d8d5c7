package folioAuth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Str0ng!Pass"

type mockAccountStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
	seq      int

	findErr   error
	createErr error
	updateErr error

	// staleCount makes Count report an empty store regardless of contents.
	staleCount bool

	createCalls  int
	consumeCalls int
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{accounts: make(map[string]*Account)}
}

func (m *mockAccountStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, a := range m.accounts {
		if a.Email == strings.ToLower(email) {
			return copyAccount(a), nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *mockAccountStore) FindByID(_ context.Context, id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return copyAccount(a), nil
}

func (m *mockAccountStore) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return 0, m.findErr
	}
	if m.staleCount {
		return 0, nil
	}
	return int64(len(m.accounts)), nil
}

func (m *mockAccountStore) Create(_ context.Context, in CreateAccountInput) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return nil, m.createErr
	}
	first := len(m.accounts) == 0
	if in.OnlyIfEmpty && !first {
		return nil, ErrRegistrationDisabled
	}
	for _, a := range m.accounts {
		if a.Email == in.Email {
			return nil, ErrAccountExists
		}
	}
	role := RoleUser
	if first {
		role = RoleAdmin
	}
	m.seq++
	a := &Account{
		ID:            fmt.Sprintf("acct-%d", m.seq),
		Email:         in.Email,
		Name:          in.Name,
		PasswordHash:  in.PasswordHash,
		Role:          role,
		Status:        StatusActive,
		EmailVerified: in.EmailVerified || (first && in.VerifyIfFirst),
		AvatarURL:     in.AvatarURL,
		Provider:      in.Provider,
		CreatedAt:     in.Now,
		UpdatedAt:     in.Now,
	}
	m.accounts[a.ID] = a
	return copyAccount(a), nil
}

func (m *mockAccountStore) SetPendingToken(_ context.Context, id string, kind TokenKind, token PendingToken, now time.Time) error {
	return m.mutate(id, now, func(a *Account) {
		t := token
		if kind == TokenVerification {
			a.Verification = &t
		} else {
			a.Reset = &t
		}
	})
}

func (m *mockAccountStore) FindByPendingToken(_ context.Context, kind TokenKind, digest string, now time.Time) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a := m.pending(kind, digest, now); a != nil {
		return copyAccount(a), nil
	}
	return nil, ErrAccountNotFound
}

func (m *mockAccountStore) ConsumePendingToken(_ context.Context, kind TokenKind, digest string, now time.Time, effect TokenEffect) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumeCalls++
	a := m.pending(kind, digest, now)
	if a == nil {
		return nil, ErrAccountNotFound
	}
	if kind == TokenVerification {
		a.Verification = nil
	} else {
		a.Reset = nil
	}
	if effect.MarkVerified {
		a.EmailVerified = true
	}
	if effect.PasswordHash != "" {
		a.PasswordHash = effect.PasswordHash
		a.RefreshTokenDigest = ""
	}
	return copyAccount(a), nil
}

func (m *mockAccountStore) RotateRefreshToken(_ context.Context, id, digest string, now time.Time) error {
	return m.mutate(id, now, func(a *Account) { a.RefreshTokenDigest = digest })
}

func (m *mockAccountStore) SetTwoFactorSecret(_ context.Context, id, secret string, now time.Time) error {
	return m.mutate(id, now, func(a *Account) {
		a.TwoFactorSecret = secret
		a.TwoFactorEnabled = false
		a.TwoFactorLastStep = 0
	})
}

func (m *mockAccountStore) EnableTwoFactor(_ context.Context, id, secret string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	if a.TwoFactorSecret != secret {
		return ErrTwoFactorNotEnrolled
	}
	a.TwoFactorEnabled = true
	return nil
}

func (m *mockAccountStore) ClaimTwoFactorStep(_ context.Context, id string, step int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	a, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	if step <= a.TwoFactorLastStep {
		return ErrTwoFactorInvalid
	}
	a.TwoFactorLastStep = step
	a.UpdatedAt = now
	return nil
}

func (m *mockAccountStore) UpdateAvatar(_ context.Context, id, avatarURL string, now time.Time) error {
	return m.mutate(id, now, func(a *Account) { a.AvatarURL = avatarURL })
}

func (m *mockAccountStore) UpdateStatus(_ context.Context, id string, status AccountStatus, now time.Time) error {
	return m.mutate(id, now, func(a *Account) { a.Status = status })
}

func (m *mockAccountStore) UpdateRole(_ context.Context, id string, role Role, now time.Time) error {
	return m.mutate(id, now, func(a *Account) { a.Role = role })
}

func (m *mockAccountStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	delete(m.accounts, id)
	return nil
}

func (m *mockAccountStore) mutate(id string, now time.Time, fn func(*Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	a, ok := m.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	fn(a)
	a.UpdatedAt = now
	return nil
}

func (m *mockAccountStore) pending(kind TokenKind, digest string, now time.Time) *Account {
	for _, a := range m.accounts {
		p := a.Pending(kind)
		if p != nil && p.Digest == digest && now.Before(p.ExpiresAt) {
			return a
		}
	}
	return nil
}

// seed inserts an account directly, bypassing the engine.
func (m *mockAccountStore) seed(t *testing.T, a Account) *Account {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		m.seq++
		a.ID = fmt.Sprintf("acct-%d", m.seq)
	}
	if a.Role == "" {
		a.Role = RoleUser
	}
	if a.Status == "" {
		a.Status = StatusActive
	}
	stored := a
	m.accounts[a.ID] = &stored
	return copyAccount(&stored)
}

func (m *mockAccountStore) get(t *testing.T, id string) *Account {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		t.Fatalf("account %s not found", id)
	}
	return copyAccount(a)
}

func copyAccount(a *Account) *Account {
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

type sentMail struct {
	kind string
	to   string
	link string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error

	// flush waits for asynchronous deliveries before a read.
	flush func()
}

func (f *fakeMailer) SendVerificationEmail(_ context.Context, to, link string) error {
	return f.record("verification", to, link)
}

func (f *fakeMailer) SendPasswordResetEmail(_ context.Context, to, link string) error {
	return f.record("reset", to, link)
}

func (f *fakeMailer) record(kind, to, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{kind: kind, to: to, link: link})
	return nil
}

func (f *fakeMailer) wait() {
	if f.flush != nil {
		f.flush()
	}
}

func (f *fakeMailer) count() int {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// lastToken returns the token query value of the last link sent to to.
func (f *fakeMailer) lastToken(t *testing.T, kind, to string) string {
	t.Helper()
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		m := f.sent[i]
		if m.kind != kind || m.to != to {
			continue
		}
		idx := strings.Index(m.link, "token=")
		if idx < 0 {
			t.Fatalf("link without token: %s", m.link)
		}
		return m.link[idx+len("token="):]
	}
	t.Fatalf("no %s mail sent to %s", kind, to)
	return ""
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEngine struct {
	*Engine
	store  *mockAccountStore
	mailer *fakeMailer
	clock  *testClock
	redis  *miniredis.Miniredis
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Cost = bcrypt.MinCost
	cfg.Session.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Metrics.Enabled = true
	cfg.RateLimit.Register.Limit = 100
	cfg.RateLimit.ForgotPassword.Limit = 100
	cfg.RateLimit.ResendVerification.Limit = 100
	cfg.RateLimit.TwoFactor.Limit = 100
	return cfg
}

func newTestEngine(t *testing.T, mutate ...func(*Config)) *testEngine {
	t.Helper()
	return newTestEngineWithSink(t, nil, mutate...)
}

func newTestEngineWithSink(t *testing.T, sink AuditSink, mutate ...func(*Config)) *testEngine {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	store := newMockAccountStore()
	mailer := &fakeMailer{}
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(store).
		WithMailer(mailer).
		WithAuditSink(sink).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	engine.now = clock.Now
	mailer.flush = engine.deliveries.Wait
	t.Cleanup(engine.Close)

	return &testEngine{Engine: engine, store: store, mailer: mailer, clock: clock, redis: mr}
}

// verifiedUser registers an account and verifies it. The first call on an
// engine yields the bootstrap admin.
func (te *testEngine) verifiedUser(t *testing.T, name, email string) string {
	t.Helper()
	ctx := context.Background()

	res, err := te.Register(ctx, RegisterRequest{Name: name, Email: email, Password: testPassword})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	if res.AdminBootstrap {
		return res.AccountID
	}
	if err := te.VerifyEmail(ctx, te.mailer.lastToken(t, "verification", email)); err != nil {
		t.Fatalf("VerifyEmail(%s): %v", email, err)
	}
	return res.AccountID
}

var errStoreDown = errors.New("connection refused")
