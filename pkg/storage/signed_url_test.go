package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("ev-1", "report-1/ev-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	evidenceID, key, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "ev-1", evidenceID)
	require.Equal(t, "report-1/ev-1", key)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Generate("ev-1", "report-1/ev-1")
	require.NoError(t, err)

	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, _, err = signer.Parse(token)
	require.ErrorIs(t, err, ErrSignedTokenExpired)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("ev-1", "report-1/ev-1")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "ev-2"
	_, _, err = signer.Parse(strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrInvalidSignedToken)

	_, _, err = NewSignedURLSigner("other", time.Hour).Parse(token)
	require.ErrorIs(t, err, ErrInvalidSignedToken)

	_, _, err = signer.Parse("garbage")
	require.ErrorIs(t, err, ErrInvalidSignedToken)
}
