// Package postgres implements the account store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	folioAuth "github.com/MrEthical07/folioAuth"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// bootstrapLockKey serializes account creation so exactly one account can
// observe an empty table.
const bootstrapLockKey int64 = 0x666f6c696f

// DB is the subset of *pgxpool.Pool used by Store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements folioAuth.AccountStore.
type Store struct {
	db DB
}

// New returns a Store backed by db.
func New(db DB) *Store {
	return &Store{db: db}
}

var _ folioAuth.AccountStore = (*Store)(nil)

const accountColumns = `id, email, name, password_hash, role, status, email_verified,
		verification_digest, verification_expires_at, reset_digest, reset_expires_at,
		two_factor_secret, two_factor_enabled, two_factor_last_step, refresh_token_digest,
		avatar_url, provider, created_at, updated_at`

// FindByEmail looks the account up by normalized email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*folioAuth.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(s.db.QueryRow(ctx, query, strings.ToLower(email)), "find account by email")
}

// FindByID looks the account up by id.
func (s *Store) FindByID(ctx context.Context, id string) (*folioAuth.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, folioAuth.ErrAccountNotFound
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(s.db.QueryRow(ctx, query, id), "find account by id")
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

// Create inserts an account under a transaction-scoped advisory lock. The
// first account inserted into an empty table gets the admin role, and the
// OnlyIfEmpty and VerifyIfFirst flags are decided from the same count.
func (s *Store) Create(ctx context.Context, in folioAuth.CreateAccountInput) (*folioAuth.Account, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create account: %w", err)
	}

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockKey); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("acquire bootstrap lock: %w", err)
	}

	var count int64
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM accounts`).Scan(&count); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("count accounts: %w", err)
	}

	first := count == 0
	if in.OnlyIfEmpty && !first {
		_ = tx.Rollback(ctx)
		return nil, folioAuth.ErrRegistrationDisabled
	}

	role := folioAuth.RoleUser
	if first {
		role = folioAuth.RoleAdmin
	}

	now := in.Now.UTC()
	acct := &folioAuth.Account{
		ID:            uuid.NewString(),
		Email:         strings.ToLower(in.Email),
		Name:          in.Name,
		PasswordHash:  in.PasswordHash,
		Role:          role,
		Status:        folioAuth.StatusActive,
		EmailVerified: in.EmailVerified || (first && in.VerifyIfFirst),
		AvatarURL:     in.AvatarURL,
		Provider:      in.Provider,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	query := `
		INSERT INTO accounts (id, email, name, password_hash, role, status, email_verified, avatar_url, provider, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = tx.Exec(ctx, query,
		acct.ID,
		acct.Email,
		acct.Name,
		acct.PasswordHash,
		string(acct.Role),
		string(acct.Status),
		acct.EmailVerified,
		acct.AvatarURL,
		acct.Provider,
		acct.CreatedAt,
		acct.UpdatedAt,
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		if isUniqueViolation(err) {
			return nil, folioAuth.ErrAccountExists
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create account: %w", err)
	}
	return acct, nil
}

// SetPendingToken overwrites the token slot for kind.
func (s *Store) SetPendingToken(ctx context.Context, id string, kind folioAuth.TokenKind, token folioAuth.PendingToken, now time.Time) error {
	digestCol, expiresCol, err := tokenColumns(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE accounts SET %s = $2, %s = $3, updated_at = $4 WHERE id = $1`, digestCol, expiresCol)
	return s.execOne(ctx, "set "+kind.String()+" token", query, id, token.Digest, token.ExpiresAt.UTC(), now.UTC())
}

func (s *Store) FindByPendingToken(ctx context.Context, kind folioAuth.TokenKind, digest string, now time.Time) (*folioAuth.Account, error) {
	digestCol, expiresCol, err := tokenColumns(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE %s = $1 AND %s > $2`, accountColumns, digestCol, expiresCol)
	return scanAccount(s.db.QueryRow(ctx, query, digest, now.UTC()), "find account by "+kind.String()+" token")
}

// ConsumePendingToken clears the token and applies effect in a single
// conditional UPDATE. Of two concurrent calls with the same digest at most
// one matches a row.
func (s *Store) ConsumePendingToken(ctx context.Context, kind folioAuth.TokenKind, digest string, now time.Time, effect folioAuth.TokenEffect) (*folioAuth.Account, error) {
	digestCol, expiresCol, err := tokenColumns(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		UPDATE accounts
		SET %[1]s = NULL, %[2]s = NULL,
		    email_verified = email_verified OR $3,
		    password_hash = CASE WHEN $4 = '' THEN password_hash ELSE $4 END,
		    refresh_token_digest = CASE WHEN $4 = '' THEN refresh_token_digest ELSE '' END,
		    updated_at = $2
		WHERE %[1]s = $1 AND %[2]s > $2
		RETURNING %[3]s`, digestCol, expiresCol, accountColumns)

	return scanAccount(
		s.db.QueryRow(ctx, query, digest, now.UTC(), effect.MarkVerified, effect.PasswordHash),
		"consume "+kind.String()+" token",
	)
}

func (s *Store) RotateRefreshToken(ctx context.Context, id, digest string, now time.Time) error {
	return s.execOne(ctx, "rotate refresh token", `
		UPDATE accounts SET refresh_token_digest = $2, updated_at = $3 WHERE id = $1`, id, digest, now.UTC())
}

func (s *Store) SetTwoFactorSecret(ctx context.Context, id, secret string, now time.Time) error {
	return s.execOne(ctx, "set two-factor secret", `
		UPDATE accounts
		SET two_factor_secret = $2, two_factor_enabled = FALSE, two_factor_last_step = 0, updated_at = $3
		WHERE id = $1`, id, secret, now.UTC())
}

// EnableTwoFactor only succeeds while secret is still the stored secret.
func (s *Store) EnableTwoFactor(ctx context.Context, id, secret string, now time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE accounts SET two_factor_enabled = TRUE, updated_at = $3
		WHERE id = $1 AND two_factor_secret = $2 AND two_factor_secret <> ''`, id, secret, now.UTC())
	if err != nil {
		return fmt.Errorf("enable two-factor: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("enable two-factor: %w", err)
	}
	if !exists {
		return folioAuth.ErrAccountNotFound
	}
	return folioAuth.ErrTwoFactorNotEnrolled
}

// ClaimTwoFactorStep advances two_factor_last_step only when step is newer.
func (s *Store) ClaimTwoFactorStep(ctx context.Context, id string, step int64, now time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE accounts SET two_factor_last_step = $2, updated_at = $3
		WHERE id = $1 AND two_factor_last_step < $2`, id, step, now.UTC())
	if err != nil {
		return fmt.Errorf("claim two-factor step: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return folioAuth.ErrTwoFactorInvalid
	}
	return nil
}

func (s *Store) UpdateAvatar(ctx context.Context, id, avatarURL string, now time.Time) error {
	return s.execOne(ctx, "update avatar", `
		UPDATE accounts SET avatar_url = $2, updated_at = $3 WHERE id = $1`, id, avatarURL, now.UTC())
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status folioAuth.AccountStatus, now time.Time) error {
	return s.execOne(ctx, "update status", `
		UPDATE accounts SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), now.UTC())
}

func (s *Store) UpdateRole(ctx context.Context, id string, role folioAuth.Role, now time.Time) error {
	return s.execOne(ctx, "update role", `
		UPDATE accounts SET role = $2, updated_at = $3 WHERE id = $1`, id, string(role), now.UTC())
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.execOne(ctx, "delete account", `DELETE FROM accounts WHERE id = $1`, id)
}

// execOne runs a statement that must touch exactly one row.
func (s *Store) execOne(ctx context.Context, op, query string, args ...any) error {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return folioAuth.ErrAccountNotFound
	}
	return nil
}

func tokenColumns(kind folioAuth.TokenKind) (string, string, error) {
	switch kind {
	case folioAuth.TokenVerification:
		return "verification_digest", "verification_expires_at", nil
	case folioAuth.TokenReset:
		return "reset_digest", "reset_expires_at", nil
	default:
		return "", "", fmt.Errorf("unknown token kind %d", kind)
	}
}

func scanAccount(row pgx.Row, op string) (*folioAuth.Account, error) {
	var (
		a             folioAuth.Account
		role, status  string
		verifyDigest  *string
		verifyExpires *time.Time
		resetDigest   *string
		resetExpires  *time.Time
	)
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.Name,
		&a.PasswordHash,
		&role,
		&status,
		&a.EmailVerified,
		&verifyDigest,
		&verifyExpires,
		&resetDigest,
		&resetExpires,
		&a.TwoFactorSecret,
		&a.TwoFactorEnabled,
		&a.TwoFactorLastStep,
		&a.RefreshTokenDigest,
		&a.AvatarURL,
		&a.Provider,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, folioAuth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.Role = folioAuth.Role(role)
	a.Status = folioAuth.AccountStatus(status)
	if verifyDigest != nil && verifyExpires != nil {
		a.Verification = &folioAuth.PendingToken{Digest: *verifyDigest, ExpiresAt: *verifyExpires}
	}
	if resetDigest != nil && resetExpires != nil {
		a.Reset = &folioAuth.PendingToken{Digest: *resetDigest, ExpiresAt: *resetExpires}
	}
	return &a, nil
}

// isUniqueViolation reports a PostgreSQL unique constraint violation
// (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
