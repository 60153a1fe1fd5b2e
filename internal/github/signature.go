package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature checks the X-Hub-Signature-256 header against the raw
// delivery body. An empty secret disables verification (warned about at
// startup).
func VerifySignature(secret string, body []byte, signatureHeader string) bool {
	if secret == "" {
		return true
	}

	sig := strings.TrimPrefix(signatureHeader, "sha256=")
	if sig == signatureHeader || sig == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(sig))
}
