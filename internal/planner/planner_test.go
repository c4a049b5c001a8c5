package planner

import (
	"testing"

	"github.com/kesrev/rmanfetch/internal/rman"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(id rman.ChunkID, bundle rman.BundleID, co, cs, uo, us uint32) rman.FileChunk {
	return rman.FileChunk{
		ID:                 id,
		BundleID:           bundle,
		CompressedOffset:   co,
		CompressedSize:     cs,
		UncompressedOffset: uo,
		UncompressedSize:   us,
	}
}

func TestPlanSingleChunkSingleBundle(t *testing.T) {
	file := &rman.FileInfo{
		ID:   1,
		Size: 5,
		Chunks: []rman.FileChunk{
			chunk(0xA1, 0xB1, 0, 5, 0, 5),
		},
	}
	bundles, err := Plan(file, Config{Prefix: "http://origin", BufferSize: 1 << 20})
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	b := bundles[0]
	assert.Equal(t, rman.BundleID(0xB1), b.ID)
	assert.Equal(t, rman.RangeModeOne, b.RangeMode)
	assert.Equal(t, "bytes=0-4", b.RangeOne)
	assert.Equal(t, "bytes=0-4", b.RangeMulti)
	assert.Len(t, b.Chunks, 1)
}

func TestPlanTwoNonContiguousChunksOneBundle(t *testing.T) {
	file := &rman.FileInfo{
		ID:   2,
		Size: 10,
		Chunks: []rman.FileChunk{
			chunk(0xA1, 0xB2, 0, 4, 0, 4),
			chunk(0xA2, 0xB2, 16, 4, 4, 4),
		},
	}
	bundles, err := Plan(file, Config{Prefix: "http://origin", BufferSize: 1 << 20})
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	b := bundles[0]
	assert.Equal(t, rman.RangeModeMulti, b.RangeMode)
	assert.Equal(t, "bytes=0-3,16-19", b.RangeMulti)
	assert.False(t, b.CanSimplify())
}

func TestPlanOneChunkTwoFileOffsets(t *testing.T) {
	c := chunk(0xA1, 0xB1, 0, 5, 0, 5)
	dup := c
	dup.UncompressedOffset = 5
	file := &rman.FileInfo{
		ID:     3,
		Size:   10,
		Chunks: []rman.FileChunk{c, dup},
	}
	bundles, err := Plan(file, Config{Prefix: "http://origin", BufferSize: 1 << 20})
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	require.Len(t, bundles[0].Chunks, 1)
	assert.Equal(t, []uint32{5}, bundles[0].Chunks[0].Offsets)
	assert.EqualValues(t, 2, bundles[0].OffsetCount)
}

func TestPlanContiguousChunksMerge(t *testing.T) {
	file := &rman.FileInfo{
		ID:   4,
		Size: 8,
		Chunks: []rman.FileChunk{
			chunk(0xA1, 0xB1, 0, 4, 0, 4),
			chunk(0xA2, 0xB1, 4, 4, 4, 4),
		},
	}
	bundles, err := Plan(file, Config{Prefix: "http://origin", BufferSize: 1 << 20})
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	b := bundles[0]
	assert.True(t, b.CanSimplify())
	assert.Equal(t, rman.RangeModeOne, b.RangeMode)
	assert.Equal(t, "bytes=0-7", b.RangeOne)
}

// TestPlanAdjacentChunksPlusGapStayUnmerged covers a Multi bundle
// whose first two chunks are byte-adjacent but a third chunk leaves a
// gap (so the bundle as a whole can't simplify to One): RangeMulti
// must still carry one span per chunk, not a merged span for the
// adjacent pair, since the origin returns one multipart part per span
// and the parser expects exactly one part per chunk.
func TestPlanAdjacentChunksPlusGapStayUnmerged(t *testing.T) {
	file := &rman.FileInfo{
		ID:   12,
		Size: 20,
		Chunks: []rman.FileChunk{
			chunk(0xA1, 0xB1, 0, 4, 0, 4),
			chunk(0xA2, 0xB1, 4, 4, 4, 4),
			chunk(0xA3, 0xB1, 16, 4, 8, 4),
		},
	}
	bundles, err := Plan(file, Config{Prefix: "http://origin", BufferSize: 1 << 20})
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	b := bundles[0]
	assert.Equal(t, rman.RangeModeMulti, b.RangeMode)
	assert.False(t, b.CanSimplify())
	assert.Equal(t, "bytes=0-3,4-7,16-19", b.RangeMulti)
	assert.Len(t, b.Chunks, 3)
}

func TestPlanSplitsOnBufferSize(t *testing.T) {
	file := &rman.FileInfo{
		ID:   5,
		Size: 20,
		Chunks: []rman.FileChunk{
			chunk(0xA1, 0xB1, 0, 10, 0, 10),
			chunk(0xA2, 0xB1, 10, 10, 10, 10),
			chunk(0xA3, 0xB1, 20, 10, 20, 10),
		},
	}
	bundles, err := Plan(file, Config{Prefix: "http://origin", BufferSize: 15})
	require.NoError(t, err)
	require.Len(t, bundles, 3)
	assert.Len(t, bundles[0].Chunks, 1)
	assert.Len(t, bundles[1].Chunks, 1)
	for _, b := range bundles {
		assert.LessOrEqual(t, b.TotalSize, uint64(15))
	}
}

func TestPlanGroupsByBundle(t *testing.T) {
	file := &rman.FileInfo{
		ID:   6,
		Size: 10,
		Chunks: []rman.FileChunk{
			chunk(0xA1, 0xB1, 0, 5, 0, 5),
			chunk(0xA2, 0xB2, 0, 5, 5, 5),
		},
	}
	bundles, err := Plan(file, Config{Prefix: "http://origin", BufferSize: 1 << 20})
	require.NoError(t, err)
	require.Len(t, bundles, 2)
	ids := map[rman.BundleID]bool{bundles[0].ID: true, bundles[1].ID: true}
	assert.True(t, ids[0xB1])
	assert.True(t, ids[0xB2])
}

// TestPlanPartitionInvariant checks that every source chunk appears in
// exactly one returned BundleDownload and that each bundle's chunks
// are disjoint and ascending by compressed offset.
func TestPlanPartitionInvariant(t *testing.T) {
	file := &rman.FileInfo{
		ID:   7,
		Size: 40,
		Chunks: []rman.FileChunk{
			chunk(0xA1, 0xB1, 0, 5, 0, 5),
			chunk(0xA2, 0xB1, 5, 5, 5, 5),
			chunk(0xA3, 0xB2, 0, 5, 10, 5),
			chunk(0xA4, 0xB2, 20, 5, 15, 5),
		},
	}
	bundles, err := Plan(file, Config{Prefix: "http://origin", BufferSize: 8})
	require.NoError(t, err)

	seen := map[rman.ChunkID]int{}
	for _, b := range bundles {
		var lastOffset uint32
		for i, c := range b.Chunks {
			assert.Equal(t, b.ID, c.BundleID)
			seen[c.ID]++
			if i > 0 {
				assert.GreaterOrEqual(t, c.CompressedOffset, lastOffset)
			}
			lastOffset = c.CompressedOffset
		}
		assert.LessOrEqual(t, b.TotalSize, uint64(8))
	}
	for _, c := range file.Chunks {
		assert.Equal(t, 1, seen[c.ID], "chunk %s should appear in exactly one bundle", rman.Hex(c.ID))
	}
}

func TestPlanRejectsOversizedChunk(t *testing.T) {
	file := &rman.FileInfo{
		ID:   8,
		Size: 10,
		Chunks: []rman.FileChunk{
			chunk(0xA1, 0xB1, 0, 100, 0, 100),
		},
	}
	_, err := Plan(file, Config{Prefix: "http://origin", BufferSize: 10})
	require.Error(t, err)
}

func TestPlanEmptyFile(t *testing.T) {
	bundles, err := Plan(&rman.FileInfo{ID: 9}, Config{BufferSize: 10})
	require.NoError(t, err)
	assert.Nil(t, bundles)
}

func TestPlanMaxRangeHeaderForcesSplit(t *testing.T) {
	file := &rman.FileInfo{
		ID:   10,
		Size: 100,
		Chunks: []rman.FileChunk{
			chunk(0xA1, 0xB1, 0, 2, 0, 2),
			chunk(0xA2, 0xB1, 50, 2, 2, 2),
			chunk(0xA3, 0xB1, 100, 2, 4, 2),
		},
	}
	bundles, err := Plan(file, Config{Prefix: "http://origin", BufferSize: 1 << 20, MaxRangeHeader: 12})
	require.NoError(t, err)
	assert.Greater(t, len(bundles), 1)
}

func TestPlanFullModePreference(t *testing.T) {
	file := &rman.FileInfo{
		ID:   11,
		Size: 8,
		Chunks: []rman.FileChunk{
			chunk(0xA1, 0xB1, 0, 4, 0, 4),
			chunk(0xA2, 0xB1, 4, 4, 4, 4),
		},
	}
	bundles, err := Plan(file, Config{Prefix: "http://origin", BufferSize: 1 << 20, RangeModePref: rman.RangeModeFull})
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	assert.Equal(t, rman.RangeModeFull, bundles[0].RangeMode)
}
