package folioAuth

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"image/png"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const totpSecretBytes = 20

type totpManager struct {
	config TOTPConfig
}

func newTOTPManager(cfg TOTPConfig) *totpManager {
	return &totpManager{config: cfg}
}

func (m *totpManager) digits() otp.Digits {
	if m.config.Digits == 8 {
		return otp.DigitsEight
	}
	return otp.DigitsSix
}

// Generate creates a new shared secret and its otpauth:// provisioning URI.
func (m *totpManager) Generate(accountName string) (secret, uri string, err error) {
	if m == nil {
		return "", "", ErrEngineNotReady
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.config.Issuer,
		AccountName: accountName,
		Period:      m.config.Period,
		SecretSize:  totpSecretBytes,
		Digits:      m.digits(),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// Verify checks code against secret at now with the configured skew and
// returns the time step the code matched. Malformed codes and secrets are a
// mismatch.
func (m *totpManager) Verify(secret, code string, now time.Time) (int64, bool) {
	if m == nil || secret == "" {
		return 0, false
	}
	code = strings.TrimSpace(code)
	if len(code) != m.config.Digits || !isNumericString(code) {
		return 0, false
	}

	period := int64(m.config.Period)
	current := now.Unix() / period
	skew := int64(m.config.Skew)
	for step := current - skew; step <= current+skew; step++ {
		want, err := m.codeAt(secret, time.Unix(step*period, 0))
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return step, true
		}
	}
	return 0, false
}

func (m *totpManager) codeAt(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t.UTC(), totp.ValidateOpts{
		Period:    m.config.Period,
		Digits:    m.digits(),
		Algorithm: otp.AlgorithmSHA1,
	})
}

// QRCode renders uri as a PNG data URL. It returns "" when QR output is off.
func (m *totpManager) QRCode(uri string) (string, error) {
	if m == nil || m.config.QRCodeSize == 0 {
		return "", nil
	}
	if uri == "" {
		return "", errors.New("empty provisioning uri")
	}

	code, err := qr.Encode(uri, qr.M, qr.Auto)
	if err != nil {
		return "", err
	}
	code, err = barcode.Scale(code, m.config.QRCodeSize, m.config.QRCodeSize)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func isNumericString(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
