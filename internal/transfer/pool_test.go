package transfer

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kesrev/rmanfetch/internal/planner"
	"github.com/kesrev/rmanfetch/internal/rman"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPoolSingleBundleEndToEnd drives one S1-shaped bundle (a single
// chunk, identity compression, no hashing) all the way through Push,
// Perform, and Poll against a real HTTP server.
func TestPoolSingleBundleEndToEnd(t *testing.T) {
	const body = "HELLO"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=0-4", r.Header.Get("Range"))
		w.Header().Set("Content-Range", "bytes 0-4/5")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	bundle := &planner.BundleDownload{
		ID:              0xB1,
		Path:            rman.BundlePath("", 0xB1),
		RangeMode:       rman.RangeModeOne,
		RangeOne:        "bytes=0-4",
		MaxUncompressed: 5,
		Chunks: []planner.ChunkDownload{
			{FileChunk: rman.FileChunk{ID: 0xA1, BundleID: 0xB1, CompressedSize: 5, UncompressedSize: 5}},
		},
	}

	w := &memWriter{}
	var updates []bool
	fd := &FileDownload{
		Info:   &rman.FileInfo{Params: rman.RMANParams{CompressionType: rman.CompressionNone, HashType: rman.HashNone}},
		Update: func(good bool, b *planner.BundleDownload) { updates = append(updates, good) },
	}
	fd.out = w
	fd.Attach(1)

	pool := NewPool(http.DefaultClient, srv.URL, 2)
	defer pool.Close()

	queue := []Job{{Bundle: bundle, File: fd}}
	remaining := pool.Push(queue)
	assert.Empty(t, remaining)

	deadline := time.Now().Add(2 * time.Second)
	for pool.inFlight.Load() != 0 && time.Now().Before(deadline) {
		pool.Poll(50 * time.Millisecond)
	}
	require.True(t, pool.Finished())
	require.Len(t, updates, 1)
	assert.True(t, updates[0])
	assert.Equal(t, "HELLO", string(w.buf))
}

// TestPoolAcceptsFullResponseForRangeRequest covers an origin that
// ignores the Range header and answers 200 with the whole archive: the
// bundle was planned as One (a single 4-byte chunk starting at offset
// 1), so the parser must skip the leading byte the server included
// rather than treating the 200 as a transport error.
func TestPoolAcceptsFullResponseForRangeRequest(t *testing.T) {
	const body = "XABCD"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=1-4", r.Header.Get("Range"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	bundle := &planner.BundleDownload{
		ID:              0xB4,
		Path:            rman.BundlePath("", 0xB4),
		RangeMode:       rman.RangeModeOne,
		RangeOne:        "bytes=1-4",
		MaxUncompressed: 4,
		Chunks: []planner.ChunkDownload{
			{FileChunk: rman.FileChunk{ID: 0xA1, BundleID: 0xB4, CompressedOffset: 1, CompressedSize: 4, UncompressedSize: 4}},
		},
	}

	w := &memWriter{}
	var updates []bool
	fd := &FileDownload{
		Info:   &rman.FileInfo{Params: rman.RMANParams{CompressionType: rman.CompressionNone, HashType: rman.HashNone}},
		Update: func(good bool, b *planner.BundleDownload) { updates = append(updates, good) },
	}
	fd.out = w
	fd.Attach(1)

	pool := NewPool(http.DefaultClient, srv.URL, 2)
	defer pool.Close()

	remaining := pool.Push([]Job{{Bundle: bundle, File: fd}})
	assert.Empty(t, remaining)

	deadline := time.Now().Add(2 * time.Second)
	for pool.inFlight.Load() != 0 && time.Now().Before(deadline) {
		pool.Poll(50 * time.Millisecond)
	}
	require.True(t, pool.Finished())
	require.Len(t, updates, 1)
	assert.True(t, updates[0])
	assert.Equal(t, "ABCD", string(w.buf))
}

func TestPoolCanPushReflectsFreeSlots(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer srv.Close()

	bundle := &planner.BundleDownload{
		ID: 0xB1, Path: rman.BundlePath("", 0xB1), RangeMode: rman.RangeModeOne, RangeOne: "bytes=0-0",
		Chunks: []planner.ChunkDownload{{FileChunk: rman.FileChunk{ID: 0xA1, BundleID: 0xB1, CompressedSize: 1, UncompressedSize: 1}}},
	}
	fd := &FileDownload{Info: &rman.FileInfo{}}
	fd.out = &memWriter{}
	fd.Attach(2)

	pool := NewPool(http.DefaultClient, srv.URL, 1)
	defer func() {
		close(release)
		pool.Close()
	}()

	queue := []Job{{Bundle: bundle, File: fd}, {Bundle: bundle, File: fd}}
	remaining := pool.Push(queue)
	assert.Len(t, remaining, 1, "only one connection available")
	assert.False(t, pool.CanPush())
}
