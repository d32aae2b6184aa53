package sealer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Signer produces and checks integrity tags over opaque payloads. Tags are
// deterministic for a given key and payload, and the key cannot be recovered
// from a tag.
type Signer interface {
	Sign(payload []byte) []byte
	Verify(payload, tag []byte) bool
}

type hmacSigner struct {
	key []byte
}

const minKeyBytes = 32

// NewHMAC builds an HMAC-SHA256 signer from a base64 (std encoding) secret.
// The decoded key must be at least 32 bytes.
func NewHMAC(base64Secret string) (Signer, error) {
	key, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signing secret: %w", err)
	}
	if len(key) < minKeyBytes {
		return nil, fmt.Errorf("signing secret too short: need at least %d bytes, got %d", minKeyBytes, len(key))
	}
	return &hmacSigner{key: key}, nil
}

func (s *hmacSigner) Sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload)
	return mac.Sum(nil)
}

func (s *hmacSigner) Verify(payload, tag []byte) bool {
	expected := s.Sign(payload)
	return hmac.Equal(expected, tag)
}
