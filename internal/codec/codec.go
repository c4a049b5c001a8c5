// Package codec provides the decompressor capability chunks are
// verified against: RMANParams names a CompressionType, and a codec
// implementation turns that into decompressed bytes.
package codec

import (
	"fmt"

	"github.com/kesrev/rmanfetch/internal/rman"
)

// Decompressor expands compressed chunk bytes into a caller-provided
// scratch buffer, returning exactly uncompressedSize bytes or an
// error. Implementations must not retain src or dst past the call.
type Decompressor interface {
	Decompress(dst, src []byte) (int, error)
}

// For selects the Decompressor bound to kind.
func For(kind rman.CompressionType) (Decompressor, error) {
	switch kind {
	case rman.CompressionZstd:
		return NewZstd()
	case rman.CompressionNone:
		return identity{}, nil
	default:
		return nil, fmt.Errorf("unsupported compression type %s", kind)
	}
}

// identity is used for CompressionNone: chunks are stored raw.
type identity struct{}

func (identity) Decompress(dst, src []byte) (int, error) {
	if len(dst) != len(src) {
		return 0, fmt.Errorf("identity: expected %d bytes, got %d", len(dst), len(src))
	}
	return copy(dst, src), nil
}
