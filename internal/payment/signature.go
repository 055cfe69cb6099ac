// Package payment talks to the card gateway: it creates gateway orders and
// verifies the signed confirmation the gateway hands back to the browser.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/go-faster/errors"
)

// ErrInvalidSignature is returned when a confirmation was not signed with our
// key secret.
var ErrInvalidSignature = errors.New("invalid payment signature")

// Verifier checks hex(HMAC-SHA256(secret, gatewayOrderID + "|" + gatewayPaymentID)).
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns the signature the gateway would produce for the pair.
func (v *Verifier) Sign(gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares in constant time. An unconfigured secret rejects everything.
func (v *Verifier) Verify(gatewayOrderID, gatewayPaymentID, signature string) error {
	if len(v.secret) == 0 {
		return ErrInvalidSignature
	}

	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return ErrInvalidSignature
	}
	want, _ := hex.DecodeString(v.Sign(gatewayOrderID, gatewayPaymentID))
	if !hmac.Equal(got, want) {
		return ErrInvalidSignature
	}
	return nil
}
