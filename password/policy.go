package password

import (
	"errors"
	"unicode"
)

// MinLength is the minimum accepted password length in characters.
const MinLength = 8

var (
	// ErrPolicyTooShort is returned for passwords below MinLength.
	ErrPolicyTooShort = errors.New("password must be at least 8 characters")
	// ErrPolicyComposition is returned when a character class is missing.
	ErrPolicyComposition = errors.New("password must contain upper and lower case letters, a digit and a symbol")
)

// CheckPolicy enforces the strength rules applied at registration and reset.
func CheckPolicy(plaintext string) error {
	if len([]rune(plaintext)) < MinLength {
		return ErrPolicyTooShort
	}
	if len(plaintext) > maxPasswordBytes {
		return ErrTooLong
	}

	var upper, lower, digit, symbol bool
	for _, r := range plaintext {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}

	if !upper || !lower || !digit || !symbol {
		return ErrPolicyComposition
	}
	return nil
}
