// Package signature signs analysis responses so clients can detect tampering.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"go-herbal-inspector/pkg/models"
)

// ErrNoSecret is returned when signing is attempted without a key
var ErrNoSecret = errors.New("signing secret not configured")

// Signer computes HMAC-SHA256 signatures over analysis responses
type Signer struct {
	secret []byte
}

// NewSigner creates a signer. An empty secret yields a signer whose Sign
// always fails with ErrNoSecret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured
func (s *Signer) Enabled() bool {
	return len(s.secret) > 0
}

// Sign returns the hex signature of resp computed with its
// DigitalSignature field cleared. resp itself is not modified.
func (s *Signer) Sign(resp models.AnalysisResponse) (string, error) {
	if !s.Enabled() {
		return "", ErrNoSecret
	}
	mac, err := s.mac(resp)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(mac), nil
}

// Verify recomputes the signature of resp and compares it in constant time
// against resp.DigitalSignature.
func (s *Signer) Verify(resp models.AnalysisResponse) bool {
	if !s.Enabled() || resp.DigitalSignature == "" {
		return false
	}
	given, err := hex.DecodeString(resp.DigitalSignature)
	if err != nil {
		return false
	}
	expected, err := s.mac(resp)
	if err != nil {
		return false
	}
	return hmac.Equal(given, expected)
}

func (s *Signer) mac(resp models.AnalysisResponse) ([]byte, error) {
	resp.DigitalSignature = ""
	payload, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	h := hmac.New(sha256.New, s.secret)
	h.Write(payload)
	return h.Sum(nil), nil
}
