package security

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealerRoundTrip(t *testing.T) {
	key, err := KeyFromConfig("", "jwt-secret")
	require.NoError(t, err)
	sealer, err := NewSealer(key)
	require.NoError(t, err)

	a, err := sealer.Seal("+15551234567")
	require.NoError(t, err)
	b, err := sealer.Seal("+15551234567")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "5551234567")

	plain, err := sealer.Open(a)
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", plain)
}

func TestSealerRejectsForeignCiphertext(t *testing.T) {
	k1, _ := KeyFromConfig("", "one")
	k2, _ := KeyFromConfig("", "two")
	s1, err := NewSealer(k1)
	require.NoError(t, err)
	s2, err := NewSealer(k2)
	require.NoError(t, err)

	sealed, err := s1.Seal("ref")
	require.NoError(t, err)
	_, err = s2.Open(sealed)
	assert.Error(t, err)

	_, err = s1.Open("!!!")
	assert.ErrorIs(t, err, ErrMalformedCiphertext)
	_, err = s1.Open(base64.StdEncoding.EncodeToString([]byte("x")))
	assert.ErrorIs(t, err, ErrMalformedCiphertext)
}

func TestKeyFromConfig(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	key, err := KeyFromConfig(raw, "")
	require.NoError(t, err)
	assert.Len(t, key, 32)

	_, err = KeyFromConfig(base64.StdEncoding.EncodeToString([]byte("short")), "")
	assert.Error(t, err)

	_, err = KeyFromConfig("", "")
	assert.Error(t, err)
}
