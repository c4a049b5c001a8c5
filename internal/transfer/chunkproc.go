package transfer

import (
	"fmt"

	"github.com/kesrev/rmanfetch/internal/codec"
	"github.com/kesrev/rmanfetch/internal/integrity"
	"github.com/kesrev/rmanfetch/internal/planner"
	"github.com/kesrev/rmanfetch/internal/rman"
)

// Writer is the destination a Processor writes decompressed chunk
// payloads to. *os.File satisfies it; nowrite mode uses a sink that
// discards writes but still returns success, so verification still
// happens without touching disk.
type Writer interface {
	WriteAt(p []byte, off int64) (int, error)
}

// DiscardWriter implements Writer by dropping every write, for the
// nowrite verification-only mode.
type DiscardWriter struct{}

func (DiscardWriter) WriteAt(p []byte, off int64) (int, error) { return len(p), nil }

// Processor decompresses each chunk handed to it by a Parser, verifies
// it against the file's hash kind, and writes the result to every
// destination offset. A scratch buffer sized to the bundle's
// MaxUncompressed is reused across chunks on one connection.
type Processor struct {
	dst     Writer
	dec     codec.Decompressor
	hasher  integrity.Hasher
	scratch []byte
}

// NewProcessor builds a Processor for one file's download: dst is
// where decompressed bytes land, params names the file's compression
// and hash kind, and maxUncompressed sizes the reused scratch buffer.
func NewProcessor(dst Writer, params rman.RMANParams, maxUncompressed uint32) (*Processor, error) {
	dec, err := codec.For(params.CompressionType)
	if err != nil {
		return nil, err
	}
	hasher, err := integrity.For(params.HashType)
	if err != nil {
		return nil, err
	}
	return &Processor{
		dst:     dst,
		dec:     dec,
		hasher:  hasher,
		scratch: make([]byte, maxUncompressed),
	}, nil
}

// HandleChunk implements ChunkSink: decompress, verify, write.
func (p *Processor) HandleChunk(chunk *planner.ChunkDownload, compressed []byte) error {
	if uint32(len(compressed)) != chunk.CompressedSize {
		return fmt.Errorf("transfer: chunk %s: expected %d compressed bytes, got %d", rman.Hex(chunk.ID), chunk.CompressedSize, len(compressed))
	}
	out := p.scratch[:chunk.UncompressedSize]
	n, err := p.dec.Decompress(out, compressed)
	if err != nil {
		return fmt.Errorf("transfer: chunk %s: decompress: %w", rman.Hex(chunk.ID), err)
	}
	if uint32(n) != chunk.UncompressedSize {
		return fmt.Errorf("transfer: chunk %s: decompressed to %d bytes, expected %d", rman.Hex(chunk.ID), n, chunk.UncompressedSize)
	}
	if !p.hasher.Verify(out, chunk.Hash) {
		return fmt.Errorf("transfer: chunk %s: hash mismatch", rman.Hex(chunk.ID))
	}
	if _, err := p.dst.WriteAt(out, int64(chunk.UncompressedOffset)); err != nil {
		return fmt.Errorf("transfer: chunk %s: write at %d: %w", rman.Hex(chunk.ID), chunk.UncompressedOffset, err)
	}
	for _, off := range chunk.Offsets {
		if _, err := p.dst.WriteAt(out, int64(off)); err != nil {
			return fmt.Errorf("transfer: chunk %s: write at %d: %w", rman.Hex(chunk.ID), off, err)
		}
	}
	return nil
}

