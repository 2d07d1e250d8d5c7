package folioAuth

import (
	"context"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/folioAuth/internal/audit"
)

// Role is the authorization role carried in session claims.
type Role string

const (
	// RoleUser is the default role for every account after the first.
	RoleUser Role = "user"
	// RoleAdmin is assigned to the first account and to promoted accounts.
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// AccountStatus is the lifecycle status of an account.
type AccountStatus string

const (
	// StatusActive accounts pass status checks.
	StatusActive AccountStatus = "active"
	// StatusBanned accounts fail every capability check except sign-out.
	StatusBanned AccountStatus = "banned"
)

// Valid reports whether s is a known status.
func (s AccountStatus) Valid() bool {
	return s == StatusActive || s == StatusBanned
}

// TokenKind selects one of the single-use token slots on an account.
type TokenKind uint8

const (
	// TokenVerification is the email-verification token slot.
	TokenVerification TokenKind = iota + 1
	// TokenReset is the password-reset token slot.
	TokenReset
)

func (k TokenKind) String() string {
	switch k {
	case TokenVerification:
		return "verification"
	case TokenReset:
		return "reset"
	default:
		return "unknown"
	}
}

// PendingToken is the stored half of a single-use token: the digest of the
// raw value and its expiry. Digest and ExpiresAt are always set together.
type PendingToken struct {
	Digest    string
	ExpiresAt time.Time
}

// Account is the authoritative identity record held by an [AccountStore].
type Account struct {
	ID                 string
	Email              string
	Name               string
	PasswordHash       string
	Role               Role
	Status             AccountStatus
	EmailVerified      bool
	Verification       *PendingToken
	Reset              *PendingToken
	TwoFactorSecret    string
	TwoFactorEnabled   bool
	TwoFactorLastStep  int64
	RefreshTokenDigest string
	AvatarURL          string
	Provider           string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Pending returns the token slot for kind, or nil when none is issued.
func (a *Account) Pending(kind TokenKind) *PendingToken {
	if a == nil {
		return nil
	}
	switch kind {
	case TokenVerification:
		return a.Verification
	case TokenReset:
		return a.Reset
	default:
		return nil
	}
}

// CreateAccountInput is passed to [AccountStore.Create]. The store assigns
// the role: the first account created becomes [RoleAdmin].
//
// VerifyIfFirst marks the account verified when it is the first one.
// OnlyIfEmpty makes Create fail with [ErrRegistrationDisabled] unless the
// store is empty. Both are decided under the same lock as the role.
type CreateAccountInput struct {
	Email         string
	Name          string
	PasswordHash  string
	EmailVerified bool
	VerifyIfFirst bool
	OnlyIfEmpty   bool
	AvatarURL     string
	Provider      string
	Now           time.Time
}

// TokenEffect is applied in the same atomic update that clears a consumed
// token.
type TokenEffect struct {
	MarkVerified bool
	PasswordHash string
}

// AccountStore is the durable account record store.
//
// Lookup methods return [ErrAccountNotFound] when nothing matches. Create
// returns [ErrAccountExists] on an email collision. ConsumePendingToken must
// be a single conditional update: the digest and a future expiry are matched
// and cleared in the same operation that applies the effect.
// ClaimTwoFactorStep records step as the last accepted TOTP step only when it
// is newer than the stored one, and returns [ErrTwoFactorInvalid] otherwise.
// SetTwoFactorSecret resets the last step.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, input CreateAccountInput) (*Account, error)

	SetPendingToken(ctx context.Context, id string, kind TokenKind, token PendingToken, now time.Time) error
	FindByPendingToken(ctx context.Context, kind TokenKind, digest string, now time.Time) (*Account, error)
	ConsumePendingToken(ctx context.Context, kind TokenKind, digest string, now time.Time, effect TokenEffect) (*Account, error)

	RotateRefreshToken(ctx context.Context, id, digest string, now time.Time) error
	SetTwoFactorSecret(ctx context.Context, id, secret string, now time.Time) error
	EnableTwoFactor(ctx context.Context, id, secret string, now time.Time) error
	ClaimTwoFactorStep(ctx context.Context, id string, step int64, now time.Time) error
	UpdateAvatar(ctx context.Context, id, avatarURL string, now time.Time) error

	UpdateStatus(ctx context.Context, id string, status AccountStatus, now time.Time) error
	UpdateRole(ctx context.Context, id string, role Role, now time.Time) error
	Delete(ctx context.Context, id string) error
}

// Mailer delivers out-of-band links. Implementations live in package mail.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, link string) error
	SendPasswordResetEmail(ctx context.Context, to, link string) error
}

// Principal is the verified identity produced by a successful sign-in,
// before it is encoded into a session token.
type Principal struct {
	ID           string
	Email        string
	Name         string
	Role         Role
	Status       AccountStatus
	AvatarURL    string
	AccessToken  string
	RefreshToken string
}

// ExternalIdentity is an identity asserted by an OAuth provider.
type ExternalIdentity struct {
	Provider    string
	Subject     string
	Email       string
	Name        string
	AvatarURL   string
	AccessToken string
}

// RegisterRequest is the input to [Engine.Register].
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

// RegisterResult reports what registration did.
type RegisterResult struct {
	AccountID        string
	Email            string
	Role             Role
	AdminBootstrap   bool
	VerificationSent bool
}

// TwoFactorSetup is returned by [Engine.EnrollTwoFactor].
type TwoFactorSetup struct {
	SharedSecret    string
	ProvisioningURI string
	QRCodeDataURL   string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// LogSink is an [AuditSink] that writes events through a [slog.Logger].
type LogSink = internalaudit.LogSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLogSink creates a [LogSink] writing at info level.
func NewLogSink(logger *slog.Logger) *LogSink {
	return internalaudit.NewLogSink(logger)
}
