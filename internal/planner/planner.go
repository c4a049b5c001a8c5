package planner

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/kesrev/rmanfetch/internal/logging"
	"github.com/kesrev/rmanfetch/internal/rman"
)

var planLog = logging.For("planner")

// Config parameterizes Plan. BufferSize bounds how much compressed
// payload one BundleDownload may request at once (the inbound
// assembly cap per connection); MaxRangeHeader bounds the length of a
// generated range_multi header, forcing an additional split when
// crossed (0 disables the check). RangeModePref is consulted only for
// a bundle whose chunks form one contiguous span (always planned as
// One): RangeModeFull turns such a bundle into Full when its span
// starts at compressed offset 0. A bundle with several spans stays
// Multi whatever this field says.
type Config struct {
	Prefix         string
	BufferSize     uint32
	MaxRangeHeader int
	RangeModePref  rman.RangeMode
}

// Plan groups file's chunks by bundle and splits groups that would
// exceed cfg.BufferSize or cfg.MaxRangeHeader into separate
// BundleDownloads. Every chunk of file appears in exactly one returned
// BundleDownload; the union of each ChunkDownload's Offsets covers all
// of that chunk's destination positions in the file. RangeMulti always
// carries one comma-separated span per chunk, even when two chunks'
// spans are adjacent or overlapping — the origin still answers with
// one multipart part per requested span, and Parser tracks exactly one
// part per chunk, so collapsing adjacent spans here would desync the
// two. A bundle's chunks being contiguous as a whole is instead
// reported through CanSimplify, which lets a Multi bundle downgrade to
// a single-span One request.
func Plan(file *rman.FileInfo, cfg Config) ([]*BundleDownload, error) {
	if len(file.Chunks) == 0 {
		return nil, nil
	}
	if cfg.BufferSize == 0 {
		return nil, fmt.Errorf("planner: buffer_size must be positive")
	}

	chunks := make([]rman.FileChunk, len(file.Chunks))
	copy(chunks, file.Chunks)
	sort.Slice(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.BundleID != b.BundleID {
			return a.BundleID < b.BundleID
		}
		if a.CompressedOffset != b.CompressedOffset {
			return a.CompressedOffset < b.CompressedOffset
		}
		return a.UncompressedOffset < b.UncompressedOffset
	})

	var bundles []*BundleDownload
	var bundle *BundleDownload
	var chunk *ChunkDownload
	bundleID := rman.NoneBundle
	chunkID := rman.NoneChunk

	for _, c := range chunks {
		if c.ID == rman.NoneChunk {
			return nil, fmt.Errorf("planner: chunk has no id (bundle %s)", rman.Hex(c.BundleID))
		}
		if c.BundleID == rman.NoneBundle {
			return nil, fmt.Errorf("planner: chunk %s has no bundle", rman.Hex(c.ID))
		}
		if c.CompressedSize > cfg.BufferSize {
			return nil, fmt.Errorf("planner: chunk %s (%d bytes) exceeds buffer_size %d", rman.Hex(c.ID), c.CompressedSize, cfg.BufferSize)
		}

		isNewChunk := c.ID != chunkID
		// headerFull: appending c's span would push the current
		// bundle's RangeMulti past cfg.MaxRangeHeader.
		headerFull := false
		if isNewChunk && c.BundleID == bundleID && cfg.MaxRangeHeader > 0 {
			end := uint64(c.CompressedOffset) + uint64(c.CompressedSize) - 1
			span := fmt.Sprintf(",%d-%d", c.CompressedOffset, end)
			headerFull = len(bundle.RangeMulti)+len(span) > cfg.MaxRangeHeader
		}
		startNew := c.BundleID != bundleID ||
			(isNewChunk && bundle.TotalSize+uint64(c.CompressedSize) > uint64(cfg.BufferSize)) ||
			headerFull
		if startNew {
			bundle = &BundleDownload{
				ID:        c.BundleID,
				Path:      rman.BundlePath(cfg.Prefix, c.BundleID),
				RangeMode: rman.RangeModeMulti,
			}
			bundles = append(bundles, bundle)
			bundleID = c.BundleID
			chunkID = rman.NoneChunk
		}

		if c.ID != chunkID {
			appendRange(bundle, c)
			bundle.TotalSize += uint64(c.CompressedSize)
			if c.UncompressedSize > bundle.MaxUncompressed {
				bundle.MaxUncompressed = c.UncompressedSize
			}
			bundle.Chunks = append(bundle.Chunks, ChunkDownload{FileChunk: c})
			chunk = &bundle.Chunks[len(bundle.Chunks)-1]
			chunkID = c.ID
		} else {
			chunk.Offsets = append(chunk.Offsets, c.UncompressedOffset)
		}
		bundle.OffsetCount++
	}

	for _, b := range bundles {
		if b.CanSimplify() {
			b.RangeMode = rman.RangeModeOne
		}
		start := b.Chunks[0].CompressedOffset
		last := b.Chunks[len(b.Chunks)-1]
		end := last.CompressedOffset + last.CompressedSize - 1
		b.RangeOne = fmt.Sprintf("bytes=%d-%d", start, end)
		if b.RangeMode == rman.RangeModeOne {
			b.RangeMulti = b.RangeOne
			// A policy preference for Full only applies when this
			// bundle's one merged span already starts at the archive's
			// first byte: the origin's whole-object GET would then
			// return exactly the bytes the Range request would have,
			// just without a Range header. Anywhere else the archive
			// carries leading bytes this file doesn't need, and Full
			// would misalign chunk_ against range_pos_.
			if cfg.RangeModePref == rman.RangeModeFull && start == 0 {
				b.RangeMode = rman.RangeModeFull
			}
		}
	}

	planLog.Debug().
		Int("file_id", int(file.ID)).
		Int("chunks", len(file.Chunks)).
		Int("bundles", len(bundles)).
		Msg("planned bundle downloads")

	return bundles, nil
}

// appendRange extends bundle's multi-range header with one more "a-b"
// span for c's compressed range. Spans are never merged with a
// preceding, adjacent, or overlapping one: the origin answers a
// multi-range GET with exactly one multipart part per requested span,
// and Parser expects exactly one part per chunk, so two chunks must
// always produce two spans even when their bytes are contiguous.
func appendRange(b *BundleDownload, c rman.FileChunk) {
	start := uint64(c.CompressedOffset)
	end := start + uint64(c.CompressedSize) - 1
	span := strconv.FormatUint(start, 10) + "-" + strconv.FormatUint(end, 10)
	if b.RangeMulti == "" {
		b.RangeMulti = "bytes=" + span
		return
	}
	b.RangeMulti += "," + span
}
