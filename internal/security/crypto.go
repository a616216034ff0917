package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// ErrSealedTokenInvalid is returned when a sealed token cannot be opened
var ErrSealedTokenInvalid = errors.New("sealed token is invalid")

// Encryptor seals agent tokens at rest so admins can reveal them later.
// Each ciphertext is bound to the owning agent id; moved onto another
// agent record it no longer opens.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor creates an AES-GCM encryptor. Key must be 16, 24 or 32 bytes.
func NewEncryptor(key []byte) (*Encryptor, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("invalid key length: %d (must be 16, 24, or 32)", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Encryptor{aead: aead}, nil
}

// DeriveKey stretches a configured secret into a 32-byte key bound to purpose,
// so the same secret yields unrelated keys for encryption and hashing
func DeriveKey(secret, purpose string) []byte {
	sum := blake2b.Sum256([]byte(purpose + ":" + secret))
	return sum[:]
}

// SealToken encrypts token for agentID and returns nonce||ciphertext in base64
func (e *Encryptor) SealToken(agentID, token string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(token)+e.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(token), []byte(agentID))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// OpenToken reverses SealToken. It fails when sealed was produced for a
// different agent or with a different key.
func (e *Encryptor) OpenToken(agentID, sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSealedTokenInvalid, err)
	}

	n := e.aead.NonceSize()
	if len(raw) < n+e.aead.Overhead() {
		return "", fmt.Errorf("%w: too short", ErrSealedTokenInvalid)
	}

	token, err := e.aead.Open(nil, raw[:n], raw[n:], []byte(agentID))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSealedTokenInvalid, err)
	}
	return string(token), nil
}
