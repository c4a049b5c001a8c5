package integrity

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ritoHKDFHasher implements the manifest's proprietary "Rito HKDF"
// chunk digest: an HKDF-SHA256 expansion of the chunk's decompressed
// bytes used as the HKDF secret, with no salt or info context, read
// out to a 64-byte digest.
type ritoHKDFHasher struct{}

func (ritoHKDFHasher) Verify(buf []byte, expected [64]byte) bool {
	kdf := hkdf.New(sha256.New, buf, nil, nil)
	var out [64]byte
	if _, err := io.ReadFull(kdf, out[:]); err != nil {
		return false
	}
	for i := 0; i < verifyPrefixLen; i++ {
		if out[i] != expected[i] {
			return false
		}
	}
	return true
}
