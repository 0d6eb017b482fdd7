package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedCiphertext is returned when a sealed value cannot be decoded.
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// Sealer encrypts short identifiers (such as external sender references)
// with AES-256-GCM so they can be stored without keeping them in clear text.
type Sealer struct {
	aead cipher.AEAD
}

// KeyFromConfig returns a 32-byte key. rawKey takes priority and must be a
// base64 encoded 32 byte value; otherwise the key is derived from fallback.
func KeyFromConfig(rawKey, fallback string) ([]byte, error) {
	if v := strings.TrimSpace(rawKey); v != "" {
		b, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("decode sealing key: %w", err)
		}
		if len(b) != 32 {
			return nil, errors.New("sealing key must decode to 32 bytes")
		}
		return b, nil
	}
	if strings.TrimSpace(fallback) == "" {
		return nil, errors.New("sealing key or fallback secret required")
	}
	sum := sha256.Sum256([]byte(fallback))
	return sum[:], nil
}

// NewSealer builds a sealer for a 32 byte key.
func NewSealer(key []byte) (*Sealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: gcm}, nil
}

// Seal encrypts plaintext and returns nonce||ciphertext as base64.
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	payload := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(payload), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	payload, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	ns := s.aead.NonceSize()
	if len(payload) < ns {
		return "", ErrMalformedCiphertext
	}
	pt, err := s.aead.Open(nil, payload[:ns], payload[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	return string(pt), nil
}
