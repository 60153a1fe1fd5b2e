package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := "webhook-secret"
	body := []byte(`{"action":"opened"}`)

	tests := []struct {
		name     string
		secret   string
		header   string
		expected bool
	}{
		{"valid signature", secret, sign(secret, body), true},
		{"wrong secret", secret, sign("other-secret", body), false},
		{"missing prefix", secret, hex.EncodeToString([]byte("deadbeef")), false},
		{"empty header", secret, "", false},
		{"garbage header", secret, "sha256=zzzz", false},
		{"empty secret disables verification", "", "", true},
		{"empty secret ignores header", "", "sha256=whatever", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifySignature(tt.secret, body, tt.header); got != tt.expected {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestVerifySignatureBodyTamper(t *testing.T) {
	secret := "webhook-secret"
	header := sign(secret, []byte(`{"action":"opened"}`))

	if VerifySignature(secret, []byte(`{"action":"closed"}`), header) {
		t.Error("tampered body must not verify")
	}
}
