// Package integrity provides the hash capability chunks are verified
// against: RMANParams names a HashType, and a Hasher implementation
// turns decompressed bytes into a digest comparable to a chunk's
// expected hash.
package integrity

import (
	"fmt"

	"github.com/kesrev/rmanfetch/internal/rman"
)

// Hasher digests buf and reports whether the leading bytes of the
// digest match expected. Only the leading 8 bytes of the digest are
// compared against a ChunkID-sized expectation, matching the
// original format where the chunk ID itself doubles as a truncated
// hash prefix.
type Hasher interface {
	Verify(buf []byte, expected [64]byte) bool
}

// For selects the Hasher bound to kind.
func For(kind rman.HashType) (Hasher, error) {
	switch kind {
	case rman.HashNone:
		return noneHasher{}, nil
	case rman.HashSHA256:
		return sha256Hasher{}, nil
	case rman.HashSHA512:
		return sha512Hasher{}, nil
	case rman.HashRitoHKDF:
		return ritoHKDFHasher{}, nil
	default:
		return nil, fmt.Errorf("unsupported hash type %s", kind)
	}
}
