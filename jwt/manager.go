package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the session token signature algorithm.
type SigningMethod string

const (
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
)

var (
	ErrNoSigningKey    = errors.New("session manager has no signing key")
	ErrMissingKeyID    = errors.New("session token has no kid")
	ErrUnknownKeyID    = errors.New("session token kid is not trusted")
	ErrIssuedInFuture  = errors.New("session token iat too far in the future")
	ErrMissingAccount  = errors.New("session claims require an account id")
	errUnsupportedAlgo = errors.New("unsupported signing method")
)

// Config configures a Manager. Keys may be raw Ed25519 bytes or PEM.
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	// MaxFutureIAT bounds clock skew on iat. Zero means 10 minutes.
	MaxFutureIAT time.Duration
	// KeyID is written into the kid header. With VerifyKeys set, tokens are
	// verified by kid, which allows key rotation.
	KeyID      string
	VerifyKeys map[string][]byte
}

// SessionClaims is the decoded session token payload.
type SessionClaims struct {
	AccountID    string `json:"uid"`
	Role         string `json:"role"`
	Status       string `json:"status"`
	AccessToken  string `json:"at,omitempty"`
	RefreshToken string `json:"rt,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and parses session tokens. Keys are decoded once at
// construction.
type Manager struct {
	ttl          time.Duration
	method       jwt.SigningMethod
	keyID        string
	maxFutureIAT time.Duration
	signKey      any
	verifyKey    any
	byKeyID      map[string]any
	parser       *jwt.Parser
	issuer       string
	audience     string
	now          func() time.Time
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}

	m := &Manager{
		ttl:          cfg.TTL,
		keyID:        strings.TrimSpace(cfg.KeyID),
		maxFutureIAT: cfg.MaxFutureIAT,
		issuer:       cfg.Issuer,
		audience:     cfg.Audience,
		now:          time.Now,
	}
	if err := m.loadKeys(cfg); err != nil {
		return nil, err
	}
	if m.keyID != "" && m.byKeyID != nil {
		if _, ok := m.byKeyID[m.keyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	m.parser = jwt.NewParser(opts...)
	return m, nil
}

func (m *Manager) loadKeys(cfg Config) error {
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return errors.New("hs256 requires private key")
		}
		m.method = jwt.SigningMethodHS256
		m.signKey = cfg.PrivateKey
		m.verifyKey = cfg.PrivateKey
		if len(cfg.VerifyKeys) > 0 {
			m.byKeyID = make(map[string]any, len(cfg.VerifyKeys))
			for kid, key := range cfg.VerifyKeys {
				if strings.TrimSpace(kid) == "" {
					return errors.New("verify key map contains empty kid")
				}
				m.byKeyID[kid] = key
			}
		}
		return nil

	case MethodEd25519:
		m.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return err
			}
			m.signKey = priv
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return err
			}
			m.verifyKey = pub
		}
		if len(cfg.VerifyKeys) == 0 && m.verifyKey == nil {
			return errors.New("ed25519 requires public key or verify key set")
		}
		if len(cfg.VerifyKeys) > 0 {
			m.byKeyID = make(map[string]any, len(cfg.VerifyKeys))
			for kid, key := range cfg.VerifyKeys {
				if strings.TrimSpace(kid) == "" {
					return errors.New("verify key map contains empty kid")
				}
				pub, err := parseEdPublicKey(key)
				if err != nil {
					return fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
				}
				m.byKeyID[kid] = pub
			}
		}
		return nil

	default:
		return errUnsupportedAlgo
	}
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// CreateSession signs claims. Registered claims (sub, exp, iat, iss, aud)
// are overwritten from the manager configuration.
func (m *Manager) CreateSession(claims SessionClaims) (string, error) {
	if claims.AccountID == "" {
		return "", ErrMissingAccount
	}
	if m.signKey == nil {
		return "", ErrNoSigningKey
	}

	now := m.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.AccountID,
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    m.issuer,
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.keyID != "" {
		token.Header["kid"] = m.keyID
	}
	return token.SignedString(m.signKey)
}

// ParseSession verifies tokenStr and returns its claims. Tokens signed with
// another algorithm or an untrusted kid, with the wrong issuer or audience,
// expired, or missing exp or iat are rejected.
func (m *Manager) ParseSession(tokenStr string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := m.parser.ParseWithClaims(tokenStr, claims, m.keyFor)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.AccountID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(m.now().Add(m.maxFutureIAT)) {
		return nil, ErrIssuedInFuture
	}
	return claims, nil
}

func (m *Manager) keyFor(t *jwt.Token) (any, error) {
	if t.Method.Alg() != m.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}
	if m.byKeyID == nil && m.keyID == "" {
		return m.verifyKey, nil
	}

	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, ErrMissingKeyID
	}
	if m.byKeyID != nil {
		key, ok := m.byKeyID[kid]
		if !ok {
			return nil, ErrUnknownKeyID
		}
		return key, nil
	}
	if kid != m.keyID {
		return nil, ErrUnknownKeyID
	}
	return m.verifyKey, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
