package transfer

import (
	"fmt"
	"testing"

	"github.com/kesrev/rmanfetch/internal/planner"
	"github.com/kesrev/rmanfetch/internal/rman"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a ChunkSink that just remembers what it was handed, for
// asserting parser behavior in isolation from decompression/hashing.
type recorder struct {
	delivered [][]byte
	fail      error
}

func (r *recorder) HandleChunk(chunk *planner.ChunkDownload, compressed []byte) error {
	if r.fail != nil {
		return r.fail
	}
	cp := append([]byte(nil), compressed...)
	r.delivered = append(r.delivered, cp)
	return nil
}

func oneChunkBundle(compressedSize uint32) *planner.BundleDownload {
	return &planner.BundleDownload{
		ID:        0xB1,
		RangeMode: rman.RangeModeOne,
		RangeOne:  "bytes=0-4",
		Chunks: []planner.ChunkDownload{
			{FileChunk: rman.FileChunk{ID: 0xA1, BundleID: 0xB1, CompressedOffset: 0, CompressedSize: compressedSize}},
		},
	}
}

func TestParserSingleRangeWholeChunkOneFeed(t *testing.T) {
	bundle := oneChunkBundle(5)
	rec := &recorder{}
	p := NewParser(bundle, rec)
	require.NoError(t, p.Feed([]byte("HELLO")))
	assert.True(t, p.IsDone())
	require.Len(t, rec.delivered, 1)
	assert.Equal(t, "HELLO", string(rec.delivered[0]))
}

func TestParserSingleRangeSplitAcrossFeeds(t *testing.T) {
	bundle := oneChunkBundle(5)
	rec := &recorder{}
	p := NewParser(bundle, rec)
	require.NoError(t, p.Feed([]byte("HE")))
	assert.False(t, p.IsDone())
	require.NoError(t, p.Feed([]byte("LLO")))
	assert.True(t, p.IsDone())
	require.Len(t, rec.delivered, 1)
	assert.Equal(t, "HELLO", string(rec.delivered[0]))
}

func TestParserMultipartTwoParts(t *testing.T) {
	bundle := &planner.BundleDownload{
		ID:         0xB2,
		RangeMode:  rman.RangeModeMulti,
		RangeMulti: "bytes=0-3,16-19",
		Chunks: []planner.ChunkDownload{
			{FileChunk: rman.FileChunk{ID: 0xA1, BundleID: 0xB2, CompressedOffset: 0, CompressedSize: 4}},
			{FileChunk: rman.FileChunk{ID: 0xA2, BundleID: 0xB2, CompressedOffset: 16, CompressedSize: 4}},
		},
	}
	rec := &recorder{}
	p := NewParser(bundle, rec)

	body := "--boundary\r\n" +
		"Content-Type: application/octet-stream\r\n" +
		"Content-Range: bytes 0-3/100\r\n" +
		"\r\n" +
		"ABCD" +
		"\r\n--boundary\r\n" +
		"Content-Type: application/octet-stream\r\n" +
		"Content-Range: bytes 16-19/100\r\n" +
		"\r\n" +
		"WXYZ" +
		"\r\n--boundary--"

	require.NoError(t, p.Feed([]byte(body)))
	require.Len(t, rec.delivered, 2)
	assert.Equal(t, "ABCD", string(rec.delivered[0]))
	assert.Equal(t, "WXYZ", string(rec.delivered[1]))
}

func TestParserMultipartByteAtATime(t *testing.T) {
	bundle := &planner.BundleDownload{
		ID:         0xB2,
		RangeMode:  rman.RangeModeMulti,
		RangeMulti: "bytes=0-3,16-19",
		Chunks: []planner.ChunkDownload{
			{FileChunk: rman.FileChunk{ID: 0xA1, BundleID: 0xB2, CompressedOffset: 0, CompressedSize: 4}},
			{FileChunk: rman.FileChunk{ID: 0xA2, BundleID: 0xB2, CompressedOffset: 16, CompressedSize: 4}},
		},
	}
	rec := &recorder{}
	p := NewParser(bundle, rec)
	body := "--boundary\r\nContent-Range: bytes 0-3/100\r\n\r\nABCD\r\n--boundary\r\nContent-Range: bytes 16-19/100\r\n\r\nWXYZ\r\n--boundary--"
	for i := 0; i < len(body); i++ {
		require.NoError(t, p.Feed([]byte{body[i]}), fmt.Sprintf("byte %d", i))
	}
	require.Len(t, rec.delivered, 2)
	assert.Equal(t, "ABCD", string(rec.delivered[0]))
	assert.Equal(t, "WXYZ", string(rec.delivered[1]))
	assert.True(t, p.IsDone())
}

// TestParserMultipartAdjacentChunksStayInSeparateParts covers the
// planner emitting one span per chunk even when two chunks are
// byte-adjacent (offsets 0-3 and 4-7): the origin still answers with
// one multipart part per requested span, so the parser must still see
// three parts for three chunks, never two.
func TestParserMultipartAdjacentChunksStayInSeparateParts(t *testing.T) {
	bundle := &planner.BundleDownload{
		ID:         0xB3,
		RangeMode:  rman.RangeModeMulti,
		RangeMulti: "bytes=0-3,4-7,16-19",
		Chunks: []planner.ChunkDownload{
			{FileChunk: rman.FileChunk{ID: 0xA1, BundleID: 0xB3, CompressedOffset: 0, CompressedSize: 4}},
			{FileChunk: rman.FileChunk{ID: 0xA2, BundleID: 0xB3, CompressedOffset: 4, CompressedSize: 4}},
			{FileChunk: rman.FileChunk{ID: 0xA3, BundleID: 0xB3, CompressedOffset: 16, CompressedSize: 4}},
		},
	}
	rec := &recorder{}
	p := NewParser(bundle, rec)

	body := "--boundary\r\n" +
		"Content-Range: bytes 0-3/100\r\n" +
		"\r\n" +
		"ABCD" +
		"\r\n--boundary\r\n" +
		"Content-Range: bytes 4-7/100\r\n" +
		"\r\n" +
		"EFGH" +
		"\r\n--boundary\r\n" +
		"Content-Range: bytes 16-19/100\r\n" +
		"\r\n" +
		"WXYZ" +
		"\r\n--boundary--"

	require.NoError(t, p.Feed([]byte(body)))
	require.Len(t, rec.delivered, 3)
	assert.Equal(t, "ABCD", string(rec.delivered[0]))
	assert.Equal(t, "EFGH", string(rec.delivered[1]))
	assert.Equal(t, "WXYZ", string(rec.delivered[2]))
	assert.True(t, p.IsDone())
}

func TestParserHashMismatchFailsBundle(t *testing.T) {
	bundle := oneChunkBundle(5)
	rec := &recorder{fail: fmt.Errorf("hash mismatch")}
	p := NewParser(bundle, rec)
	err := p.Feed([]byte("HELLO"))
	require.Error(t, err)
	assert.False(t, p.IsDone())
	// further feeds surface the latched failure rather than resetting.
	err = p.Feed([]byte("more"))
	require.Error(t, err)
}
