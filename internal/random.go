package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

const (
	tokenRawSize = 32

	// TokenLength is the length of an encoded raw token.
	TokenLength = tokenRawSize * 2
)

var errTokenSize = errors.New("invalid token size")

// NewToken returns 32 bytes of crypto/rand output, hex encoded.
func NewToken() (string, error) {
	var raw [tokenRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

// Digest returns the hex SHA-256 of a raw token. Only digests are persisted.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// WellFormedToken reports whether raw has the shape produced by NewToken.
func WellFormedToken(raw string) bool {
	if len(raw) != TokenLength {
		return false
	}
	_, err := hex.DecodeString(raw)
	return err == nil
}

// ParseToken normalizes and checks a raw token received from a client.
func ParseToken(raw string) (string, error) {
	if !WellFormedToken(raw) {
		return "", errTokenSize
	}
	return raw, nil
}

// EqualDigest compares two digests in constant time.
func EqualDigest(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NewState returns a URL-safe random value for OAuth state cookies.
func NewState() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}
