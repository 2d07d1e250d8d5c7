package folioAuth

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want FailureKind
	}{
		{nil, FailureNone},
		{ErrAccountNotFound, FailureNotFound},
		{ErrInvalidCredentials, FailureBadCredentials},
		{ErrAccountBanned, FailureBanned},
		{ErrAccountUnverified, FailureUnverified},
		{ErrTwoFactorRequired, FailureTwoFactorRequired},
		{ErrTwoFactorInvalid, FailureBadTwoFactor},
		{ErrTokenInvalid, FailureInvalidOrExpiredToken},
		{ErrRateLimited, FailureRateLimited},
		{fmt.Errorf("%w: too short", ErrPasswordPolicy), FailureValidation},
		{fmt.Errorf("%w: dial tcp", ErrStoreUnavailable), FailureStoreUnavailable},
		{ErrAccountExists, FailureConflict},
		{ErrRegistrationDisabled, FailureForbidden},
		{ErrUnauthenticated, FailureUnauthenticated},
		{errors.New("boom"), FailureInternal},
	}
	for _, tc := range tests {
		if got := KindOf(tc.err); got != tc.want {
			t.Errorf("KindOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestPublicMessageDoesNotDistinguishUnknownEmail(t *testing.T) {
	if PublicMessage(FailureNotFound) != PublicMessage(FailureBadCredentials) {
		t.Fatal("unknown email and wrong password must share a message")
	}
	if PublicMessage(FailureInternal) == "" || PublicMessage(FailureStoreUnavailable) == "" {
		t.Fatal("internal failures need a generic message")
	}
}

func TestTerminal(t *testing.T) {
	if FailureTwoFactorRequired.Terminal() {
		t.Fatal("two-factor required is a re-prompt")
	}
	if FailureNone.Terminal() {
		t.Fatal("no failure is not terminal")
	}
	if !FailureBanned.Terminal() || !FailureBadTwoFactor.Terminal() {
		t.Fatal("rejections are terminal")
	}
}
