package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidSignedToken covers malformed or tampered download tokens.
	ErrInvalidSignedToken = errors.New("invalid signed token")
	// ErrSignedTokenExpired is returned once the embedded expiry has passed.
	ErrSignedTokenExpired = errors.New("signed token expired")
)

// SignedURLSigner creates and validates short-lived download tokens binding an
// evidence ID to its blob key.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a signed token referencing the evidence and its blob key.
func (s *SignedURLSigner) Generate(evidenceID, key string) (string, time.Time, error) {
	if evidenceID == "" || key == "" {
		return "", time.Time{}, fmt.Errorf("evidenceID and key required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).UTC()
	encodedKey := base64.RawURLEncoding.EncodeToString([]byte(key))
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	token := strings.Join([]string{evidenceID, ts, encodedKey, s.sign(evidenceID, ts, encodedKey)}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded evidence ID and blob key.
func (s *SignedURLSigner) Parse(token string) (evidenceID, key string, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", ErrInvalidSignedToken
	}
	evidenceID, ts, encodedKey, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(evidenceID, ts, encodedKey)), []byte(signature)) {
		return "", "", ErrInvalidSignedToken
	}
	rawKey, err := base64.RawURLEncoding.DecodeString(encodedKey)
	if err != nil {
		return "", "", ErrInvalidSignedToken
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", ErrInvalidSignedToken
	}
	if s.now().After(time.Unix(expUnix, 0)) {
		return "", "", ErrSignedTokenExpired
	}
	return evidenceID, string(rawKey), nil
}

func (s *SignedURLSigner) sign(evidenceID, ts, encodedKey string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(evidenceID + "|" + ts + "|" + encodedKey))
	return hex.EncodeToString(mac.Sum(nil))
}
