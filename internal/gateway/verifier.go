package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/billing"
)

var _ billing.Verifier = (*HMACVerifier)(nil)

// HMACVerifier authenticates webhook payloads signed by the payment provider
// with HMAC-SHA256 over the raw request body. The signature header carries
// the hex digest, optionally prefixed with "sha256=".
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier creates a verifier for the given shared webhook secret.
func NewHMACVerifier(secret []byte) *HMACVerifier {
	return &HMACVerifier{secret: secret}
}

// Verify checks the payload against the signature in constant time. Any
// mismatch, including a malformed header, yields billing.ErrBadSignature.
func (v *HMACVerifier) Verify(payload []byte, signature string) error {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return billing.ErrBadSignature
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return billing.ErrBadSignature
	}
	return nil
}
