package security

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// GenerateAgentToken returns a new random (v4) UUID used as an agent's bearer secret
func GenerateAgentToken() string {
	return uuid.NewString()
}

// MaskToken keeps the first and last 4 characters of a token and stars the rest.
// Tokens of 8 characters or fewer are fully masked.
func MaskToken(token string) string {
	r := []rune(token)
	if len(r) <= 8 {
		return "********"
	}
	return string(r[:4]) + strings.Repeat("*", len(r)-8) + string(r[len(r)-4:])
}

// TokenHasher produces keyed digests of agent tokens for lookup at rest
type TokenHasher struct {
	key []byte
}

// NewTokenHasher creates a hasher; key must be 1 to 64 bytes
func NewTokenHasher(key []byte) (*TokenHasher, error) {
	if len(key) == 0 || len(key) > blake2b.Size {
		return nil, fmt.Errorf("invalid hash key length: %d", len(key))
	}
	return &TokenHasher{key: key}, nil
}

// Hash returns the hex-encoded keyed BLAKE2b-256 digest of token
func (h *TokenHasher) Hash(token string) string {
	mac, _ := blake2b.New256(h.key)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Matches compares token against a stored digest in constant time
func (h *TokenHasher) Matches(token, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(h.Hash(token)), []byte(digest)) == 1
}
