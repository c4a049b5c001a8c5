package rman

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHex(t *testing.T) {
	assert.Equal(t, "00000000000000B1", Hex(BundleID(0xB1)))
	assert.Equal(t, "FFFFFFFFFFFFFFFF", Hex(ChunkID(0xFFFFFFFFFFFFFFFF)))
}

func TestBundlePath(t *testing.T) {
	assert.Equal(t, "https://example.test/bundles/00000000000000B1.bundle",
		BundlePath("https://example.test", BundleID(0xB1)))
}

func TestFilterPath(t *testing.T) {
	list := &FileList{Files: []FileInfo{
		{Path: "data/a.bin"},
		{Path: "data/b.txt"},
		{Path: "other/c.bin"},
	}}
	pat := regexp.MustCompile(`data/.*\.bin`)
	list.FilterPath(pat)
	require.Len(t, list.Files, 1)
	assert.Equal(t, "data/a.bin", list.Files[0].Path)
}

func TestFilterPathNil(t *testing.T) {
	list := &FileList{Files: []FileInfo{{Path: "a"}, {Path: "b"}}}
	list.FilterPath(nil)
	assert.Len(t, list.Files, 2)
}

func TestFilterLangs(t *testing.T) {
	list := &FileList{Files: []FileInfo{
		{Path: "en.bin", Langs: map[string]struct{}{"en_US": {}}},
		{Path: "intl.bin"},
		{Path: "ko.bin", Langs: map[string]struct{}{"ko_KR": {}}},
	}}
	list.FilterLangs([]string{"en_US"})
	require.Len(t, list.Files, 1)
	assert.Equal(t, "en.bin", list.Files[0].Path)
}

func TestRemoveUpToDate(t *testing.T) {
	oldList := &FileList{Files: []FileInfo{
		{ID: FileID(1), Path: "x.bin"},
		{ID: FileID(2), Path: "y.bin"},
	}}
	newList := &FileList{Files: []FileInfo{
		{ID: FileID(1), Path: "x.bin"}, // unchanged
		{ID: FileID(3), Path: "y.bin"}, // changed, same path
		{ID: FileID(4), Path: "z.bin"}, // new file
	}}
	newList.RemoveUpToDate(oldList)
	require.Len(t, newList.Files, 2)
	var paths []string
	for _, f := range newList.Files {
		paths = append(paths, f.Path)
	}
	assert.ElementsMatch(t, []string{"y.bin", "z.bin"}, paths)
}

func TestSanitizeRejectsAbsolutePath(t *testing.T) {
	list := &FileList{Files: []FileInfo{{
		ID:   FileID(1),
		Path: "/etc/passwd",
		Size: 10,
		Params: RMANParams{
			MaxUncompressed: 1024,
		},
	}}}
	err := list.Sanitize()
	require.Error(t, err)
}

func TestSanitizeRejectsDotDot(t *testing.T) {
	list := &FileList{Files: []FileInfo{{
		ID:     FileID(1),
		Path:   "../escape.bin",
		Size:   10,
		Params: RMANParams{MaxUncompressed: 1024},
	}}}
	require.Error(t, list.Sanitize())
}

func TestSanitizeAcceptsWellFormed(t *testing.T) {
	list := &FileList{Files: []FileInfo{{
		ID:   FileID(1),
		Path: "data/a.bin",
		Size: 10,
		Params: RMANParams{
			MaxUncompressed: 1024,
		},
		Chunks: []FileChunk{
			{ID: ChunkID(1), BundleID: BundleID(1), CompressedSize: 4, UncompressedSize: 10},
		},
	}}}
	assert.NoError(t, list.Sanitize())
}

func TestSanitizeRejectsOverlap(t *testing.T) {
	list := &FileList{Files: []FileInfo{{
		ID:   FileID(1),
		Path: "data/a.bin",
		Size: 20,
		Params: RMANParams{
			MaxUncompressed: 1024,
		},
		Chunks: []FileChunk{
			{ID: ChunkID(1), BundleID: BundleID(1), CompressedSize: 4, UncompressedSize: 10, UncompressedOffset: 0},
			{ID: ChunkID(2), BundleID: BundleID(1), CompressedSize: 4, UncompressedSize: 10, UncompressedOffset: 5},
		},
	}}}
	require.Error(t, list.Sanitize())
}
