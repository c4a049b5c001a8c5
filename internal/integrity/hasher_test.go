package integrity

import (
	"crypto/sha256"
	"io"
	"testing"

	"github.com/kesrev/rmanfetch/internal/rman"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/hkdf"
)

func TestSHA256Verify(t *testing.T) {
	hasher, err := For(rman.HashSHA256)
	require.NoError(t, err)
	buf := []byte("HELLO")
	sum := sha256.Sum256(buf)
	var expected [64]byte
	copy(expected[:], sum[:])
	assert.True(t, hasher.Verify(buf, expected))

	var wrong [64]byte
	assert.False(t, hasher.Verify(buf, wrong))
}

func TestRitoHKDFVerifyRoundTrip(t *testing.T) {
	hasher, err := For(rman.HashRitoHKDF)
	require.NoError(t, err)
	buf := []byte("some chunk payload")

	kdf := hkdf.New(sha256.New, buf, nil, nil)
	var expected [64]byte
	_, err = io.ReadFull(kdf, expected[:])
	require.NoError(t, err)

	assert.True(t, hasher.Verify(buf, expected))

	var zero [64]byte
	assert.False(t, hasher.Verify(buf, zero))
}

func TestNoneHasherAcceptsAnything(t *testing.T) {
	hasher, err := For(rman.HashNone)
	require.NoError(t, err)
	var whatever [64]byte
	assert.True(t, hasher.Verify([]byte("anything"), whatever))
}

func TestForUnsupportedHash(t *testing.T) {
	_, err := For(rman.HashType(99))
	require.Error(t, err)
}
