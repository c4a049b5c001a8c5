package rman

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// FilterPath keeps only files whose path fully matches pat. A nil
// pattern is a no-op.
func (l *FileList) FilterPath(pat *regexp.Regexp) {
	if pat == nil {
		return
	}
	kept := l.Files[:0]
	for _, f := range l.Files {
		if matchesFully(pat, f.Path) {
			kept = append(kept, f)
		}
	}
	l.Files = kept
}

func matchesFully(pat *regexp.Regexp, s string) bool {
	loc := pat.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

// FilterLangs keeps only files carrying at least one of langs. An
// empty langs is a no-op.
func (l *FileList) FilterLangs(langs []string) {
	if len(langs) == 0 {
		return
	}
	kept := l.Files[:0]
	for _, f := range l.Files {
		for _, lang := range langs {
			if _, ok := f.Langs[lang]; ok {
				kept = append(kept, f)
				break
			}
		}
	}
	l.Files = kept
}

// IsUpToDate reports whether f is guaranteed present from old: the
// original manifest's source truth is that a file is up to date iff
// its FileID is unchanged across manifests (the ID is derived from
// the file's full chunk layout).
func (f *FileInfo) IsUpToDate(old *FileInfo) bool {
	return f.ID == old.ID
}

// RemoveUpToDate drops every file from l that old has at the same
// path with an identical FileID — it is guaranteed present from a
// prior install and needs no chunks fetched.
func (l *FileList) RemoveUpToDate(old *FileList) {
	lookup := make(map[string]*FileInfo, len(old.Files))
	for i := range old.Files {
		lookup[old.Files[i].Path] = &old.Files[i]
	}
	kept := l.Files[:0]
	for _, f := range l.Files {
		if prior, ok := lookup[f.Path]; ok && f.IsUpToDate(prior) {
			continue
		}
		kept = append(kept, f)
	}
	l.Files = kept
}

var langTagPattern = regexp.MustCompile(`^[\w.\-]+$`)

// Sanitize validates every invariant the planner and downloader rely
// on: well-formed paths confined to the output tree, a non-overlapping,
// ascending chunk layout within the file's size, and an in-range
// max_uncompressed. Gaps between chunks are allowed, and the hash and
// compression kinds are not checked here. It returns the first
// violation found.
func (l *FileList) Sanitize() error {
	const chunkLimit = 16 * 1024 * 1024
	for i := range l.Files {
		f := &l.Files[i]
		if f.ID == NoneFile {
			return fmt.Errorf("file %q: zero FileID", f.Path)
		}
		if f.Path == "" || len(f.Path) >= 256 {
			return fmt.Errorf("file %q: invalid path length", f.Path)
		}
		if err := sanitizePath(f.Path); err != nil {
			return fmt.Errorf("file %q: %w", f.Path, err)
		}
		for lang := range f.Langs {
			if !langTagPattern.MatchString(lang) {
				return fmt.Errorf("file %q: invalid lang tag %q", f.Path, lang)
			}
		}
		if f.Params.MaxUncompressed == 0 || f.Params.MaxUncompressed > chunkLimit {
			return fmt.Errorf("file %q: max_uncompressed out of range", f.Path)
		}
		var nextMinOffset uint32
		for _, c := range f.Chunks {
			if c.ID == NoneChunk {
				return fmt.Errorf("file %q: zero ChunkID", f.Path)
			}
			if c.BundleID == NoneBundle {
				return fmt.Errorf("file %q: chunk %s has zero BundleID", f.Path, Hex(c.ID))
			}
			if c.CompressedSize < 4 {
				return fmt.Errorf("file %q: chunk %s compressed_size too small", f.Path, Hex(c.ID))
			}
			if c.UncompressedSize == 0 || c.UncompressedSize > f.Params.MaxUncompressed {
				return fmt.Errorf("file %q: chunk %s uncompressed_size out of range", f.Path, Hex(c.ID))
			}
			if c.UncompressedOffset < nextMinOffset {
				return fmt.Errorf("file %q: chunk %s overlaps previous chunk", f.Path, Hex(c.ID))
			}
			if uint64(c.UncompressedOffset)+uint64(c.UncompressedSize) > uint64(f.Size) {
				return fmt.Errorf("file %q: chunk %s exceeds file size", f.Path, Hex(c.ID))
			}
			nextMinOffset = c.UncompressedOffset + c.UncompressedSize
		}
	}
	return nil
}

// sanitizePath rejects absolute paths, "." / ".." components, and any
// path that is not already in lexically-normal form, so a manifest
// entry can never escape the output directory.
func sanitizePath(p string) error {
	if path.IsAbs(p) || strings.HasPrefix(p, "/") {
		return fmt.Errorf("absolute path not allowed")
	}
	normalized := path.Clean(p)
	if normalized != p {
		return fmt.Errorf("path is not lexically normal")
	}
	for _, part := range strings.Split(p, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("invalid path component %q", part)
		}
	}
	return nil
}
