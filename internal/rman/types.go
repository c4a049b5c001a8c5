package rman

// HashType names which digest a chunk's expected hash is encoded under.
// The concrete algorithm is a capability (internal/integrity), not a
// core concern: the core only ever compares the kind tag through to
// a Hasher.
type HashType uint8

const (
	HashNone HashType = iota
	HashSHA512
	HashSHA256
	HashRitoHKDF
)

func (h HashType) String() string {
	switch h {
	case HashSHA512:
		return "sha512"
	case HashSHA256:
		return "sha256"
	case HashRitoHKDF:
		return "rito-hkdf"
	default:
		return "none"
	}
}

// CompressionType names the codec a chunk's compressed bytes are
// encoded under. Like HashType, the concrete codec is a capability
// (internal/codec).
type CompressionType uint8

const (
	CompressionNone CompressionType = iota
	CompressionZstd
)

func (c CompressionType) String() string {
	switch c {
	case CompressionZstd:
		return "zstd"
	default:
		return "none"
	}
}

// RangeMode names how a BundleDownload's request is framed against the
// origin: a single contiguous range, a multipart/byteranges request
// covering several spans, or the whole archive with no Range header.
type RangeMode uint8

const (
	RangeModeOne RangeMode = iota
	RangeModeMulti
	RangeModeFull
)

func (r RangeMode) String() string {
	switch r {
	case RangeModeMulti:
		return "multi"
	case RangeModeFull:
		return "full"
	default:
		return "one"
	}
}

// RMANParams selects the hash and compression kind for a file, and
// caps the scratch buffer needed to decompress any one of its chunks.
type RMANParams struct {
	HashType        HashType
	CompressionType CompressionType
	MaxUncompressed uint32
}

// FileChunk belongs to exactly one bundle. It is fully described by
// (BundleID, CompressedOffset, CompressedSize) on the wire and by
// (UncompressedOffset, UncompressedSize, Hash) on disk.
type FileChunk struct {
	ID                ChunkID
	BundleID          BundleID
	CompressedSize    uint32
	UncompressedSize  uint32
	CompressedOffset  uint32
	UncompressedOffset uint32
	// Hash is the expected digest of the decompressed payload, whose
	// kind is named by the owning FileInfo's RMANParams.HashType.
	Hash [64]byte
}

// FileInfo describes one destination file: an ordered, contiguous,
// non-overlapping (by UncompressedOffset) set of chunks, a path,
// permissions, language tags, and per-file hash/compression params.
type FileInfo struct {
	ID          FileID
	Size        uint32
	Path        string
	Link        string
	Langs       map[string]struct{}
	Chunks      []FileChunk
	Params      RMANParams
	Permissions uint32
	// SymlinkTarget, if non-empty, makes this entry a symlink instead
	// of a regular file; its chunks (if any) are ignored.
	SymlinkTarget string
}

// HasLang reports whether the file carries lang, or is international
// (carries no language tags at all) when lang == "".
func (f *FileInfo) HasLang(lang string) bool {
	if lang == "" {
		return len(f.Langs) == 0
	}
	_, ok := f.Langs[lang]
	return ok
}

// FileList is the decoded contents of a manifest: every destination
// file plus the set of bundles no file in this list references
// (retained for completeness reporting, never downloaded).
type FileList struct {
	Files        []FileInfo
	Unreferenced map[BundleID]struct{}
}
