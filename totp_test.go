package folioAuth

import (
	"strings"
	"testing"
	"time"
)

func testTOTPManager() *totpManager {
	return newTOTPManager(defaultConfig().TOTP)
}

func TestTOTPGenerateProducesProvisioningURI(t *testing.T) {
	m := testTOTPManager()
	secret, uri, err := m.Generate("bob@example.com")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if secret == "" {
		t.Fatal("empty secret")
	}
	if !strings.HasPrefix(uri, "otpauth://totp/") {
		t.Fatalf("unexpected uri %q", uri)
	}
	if !strings.Contains(uri, "secret="+secret) || !strings.Contains(uri, "issuer=folioAuth") {
		t.Fatalf("uri missing secret or issuer: %q", uri)
	}
}

func TestTOTPVerifyWithinSkew(t *testing.T) {
	m := testTOTPManager()
	secret, _, err := m.Generate("bob@example.com")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	now := time.Unix(1_700_000_000, 0)
	code, err := m.codeAt(secret, now)
	if err != nil {
		t.Fatalf("codeAt: %v", err)
	}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{name: "same step", at: now, want: true},
		{name: "one step later", at: now.Add(30 * time.Second), want: true},
		{name: "one step earlier", at: now.Add(-30 * time.Second), want: true},
		{name: "three steps later", at: now.Add(90 * time.Second), want: false},
	}
	wantStep := now.Unix() / 30
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, got := m.Verify(secret, code, tt.at)
			if got != tt.want {
				t.Fatalf("Verify at %v = %v, want %v", tt.at, got, tt.want)
			}
			if got && step != wantStep {
				t.Fatalf("matched step %d, want %d", step, wantStep)
			}
		})
	}
}

func TestTOTPVerifyRejectsMalformed(t *testing.T) {
	m := testTOTPManager()
	secret, _, err := m.Generate("x@example.com")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	now := time.Now()
	for _, code := range []string{"", "12345", "abcdef", "1234567"} {
		if _, ok := m.Verify(secret, code, now); ok {
			t.Fatalf("code %q accepted", code)
		}
	}
	if _, ok := m.Verify("", "123456", now); ok {
		t.Fatal("empty secret accepted")
	}
	if _, ok := m.Verify("!!not-base32!!", "123456", now); ok {
		t.Fatal("malformed secret accepted")
	}
}

func TestTOTPQRCodeDataURL(t *testing.T) {
	m := testTOTPManager()
	_, uri, err := m.Generate("qr@example.com")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	img, err := m.QRCode(uri)
	if err != nil {
		t.Fatalf("QRCode: %v", err)
	}
	if !strings.HasPrefix(img, "data:image/png;base64,") {
		t.Fatalf("unexpected data url prefix: %.40s", img)
	}

	cfg := defaultConfig().TOTP
	cfg.QRCodeSize = 0
	img, err = newTOTPManager(cfg).QRCode(uri)
	if err != nil || img != "" {
		t.Fatalf("expected disabled QR output, got %q, %v", img, err)
	}
}
