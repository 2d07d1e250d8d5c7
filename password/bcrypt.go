package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the production work factor.
const DefaultCost = 12

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

var (
	// ErrInvalidCost is returned by NewBcrypt for costs outside bcrypt bounds.
	ErrInvalidCost = errors.New("password: invalid bcrypt cost")
	// ErrTooLong is returned when the plaintext exceeds the bcrypt input limit.
	ErrTooLong = errors.New("password: longer than 72 bytes")
	// ErrEmpty is returned when hashing an empty plaintext.
	ErrEmpty = errors.New("password: empty")
)

// Config controls the bcrypt work factor.
type Config struct {
	Cost int
}

// Bcrypt hashes and verifies passwords. It is safe for concurrent use.
type Bcrypt struct {
	cost  int
	dummy []byte
}

// NewBcrypt validates cfg and precomputes the dummy digest used by VerifyDummy.
func NewBcrypt(cfg Config) (*Bcrypt, error) {
	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCost, cfg.Cost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("folioauth-dummy-password"), cfg.Cost)
	if err != nil {
		return nil, err
	}

	return &Bcrypt{cost: cfg.Cost, dummy: dummy}, nil
}

// Cost returns the configured work factor.
func (b *Bcrypt) Cost() int {
	return b.cost
}

// Hash returns a salted bcrypt digest of plaintext.
func (b *Bcrypt) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmpty
	}
	if len(plaintext) > maxPasswordBytes {
		return "", ErrTooLong
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. An empty, truncated or
// otherwise malformed digest is reported as a mismatch.
func (b *Bcrypt) Verify(plaintext, digest string) bool {
	if digest == "" {
		b.VerifyDummy(plaintext)
		return false
	}
	if len(plaintext) > maxPasswordBytes {
		b.VerifyDummy(plaintext[:maxPasswordBytes])
		return false
	}

	if _, err := bcrypt.Cost([]byte(digest)); err != nil {
		b.VerifyDummy(plaintext)
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// VerifyDummy runs one comparison against a fixed digest and discards the result.
func (b *Bcrypt) VerifyDummy(plaintext string) {
	if len(plaintext) > maxPasswordBytes {
		plaintext = plaintext[:maxPasswordBytes]
	}
	_ = bcrypt.CompareHashAndPassword(b.dummy, []byte(plaintext))
}
