// Package planner groups one file's chunks into per-bundle byte-range
// requests: the planner is the only component that decides how chunks
// are batched into HTTP Range requests against the bundle store.
package planner

import (
	"fmt"

	"github.com/kesrev/rmanfetch/internal/rman"
)

// ChunkDownload is a FileChunk annotated with the destination offsets
// it's written to beyond its own UncompressedOffset: a chunk that
// contributes to more than one position in the same file (a dedup hit)
// is fetched once and replicated to every offset on write-back.
type ChunkDownload struct {
	rman.FileChunk
	Offsets []uint32
}

// BundleDownload is one planned request against a single bundle: the
// set of chunks it must deliver, the Range header forms that cover
// them, and sizing information needed to allocate transfer scratch.
type BundleDownload struct {
	ID              rman.BundleID
	Path            string
	Chunks          []ChunkDownload
	RangeOne        string
	RangeMulti      string
	TotalSize       uint64
	OffsetCount     uint64
	MaxUncompressed uint32
	RangeMode       rman.RangeMode
}

// CanSimplify reports whether the bundle's chunks form one contiguous
// compressed span, meaning a Multi request for them could equally be
// served as a single-range (One) request with byte-identical results.
// It keeps holding after Plan has downgraded such a bundle to One.
func (b *BundleDownload) CanSimplify() bool {
	if len(b.Chunks) == 0 {
		return false
	}
	next := b.Chunks[0].CompressedOffset
	for _, chunk := range b.Chunks {
		if chunk.CompressedOffset != next {
			return false
		}
		next = chunk.CompressedOffset + chunk.CompressedSize
	}
	return true
}

// ExceedsMaxRange reports whether this bundle's multi-range header has
// grown past maxHeader bytes, the origin's stated limit on Range
// header length. A zero or negative maxHeader disables the check.
func (b *BundleDownload) ExceedsMaxRange(maxHeader int) bool {
	return maxHeader > 0 && b.RangeMode == rman.RangeModeMulti && len(b.RangeMulti) > maxHeader
}

// String renders a short diagnostic summary, used by logging and the
// progress display.
func (b *BundleDownload) String() string {
	return fmt.Sprintf("bundle %s (%d chunks, %s, %d bytes)", rman.Hex(b.ID), len(b.Chunks), b.RangeMode, b.TotalSize)
}
