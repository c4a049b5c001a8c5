package integrity

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
)

// verifyPrefixLen matches the original format's convention: only the
// leading 8 bytes of a digest (the width of a ChunkID) are ever
// compared, regardless of which hash kind produced it.
const verifyPrefixLen = 8

// noneHasher accepts every chunk unverified, mirroring codec's identity
// decompressor: a manifest that declares no hash kind gets no
// integrity check, not a broken one.
type noneHasher struct{}

func (noneHasher) Verify(buf []byte, expected [64]byte) bool { return true }

type sha256Hasher struct{}

func (sha256Hasher) Verify(buf []byte, expected [64]byte) bool {
	sum := sha256.Sum256(buf)
	return bytes.Equal(sum[:verifyPrefixLen], expected[:verifyPrefixLen])
}

type sha512Hasher struct{}

func (sha512Hasher) Verify(buf []byte, expected [64]byte) bool {
	sum := sha512.Sum512(buf)
	return bytes.Equal(sum[:verifyPrefixLen], expected[:verifyPrefixLen])
}
