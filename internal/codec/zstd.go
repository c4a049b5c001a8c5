package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Zstd decompresses chunks via github.com/klauspost/compress/zstd. One
// decoder is reused across every chunk on a connection; the decoder
// itself holds no per-call state so it is safe to share across
// sequential decompress calls on one goroutine.
type Zstd struct {
	dec *zstd.Decoder
}

// NewZstd builds a decoder with no expected-dictionary; RMAN bundles
// do not use zstd dictionaries.
func NewZstd() (*Zstd, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &Zstd{dec: dec}, nil
}

// Decompress expands src into dst, which must already be sized to the
// exact expected uncompressed length; a size mismatch is an error.
func (z *Zstd) Decompress(dst, src []byte) (int, error) {
	out, err := z.dec.DecodeAll(src, dst[:0])
	if err != nil {
		return 0, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(out) != len(dst) {
		return 0, fmt.Errorf("zstd decompress: expected %d bytes, got %d", len(dst), len(out))
	}
	copy(dst, out)
	return len(out), nil
}

// Close releases the decoder's background resources.
func (z *Zstd) Close() {
	z.dec.Close()
}
