package rman

import (
	"encoding/json"
	"fmt"
)

// ManifestSource decodes a manifest blob into a FileList. Binary-format
// parsing is an external collaborator per this project's scope (see
// manifest_binary.go); ManifestSource is the seam a real decoder would
// implement.
type ManifestSource interface {
	Decode(data []byte) (*FileList, error)
}

// jsonChunk/jsonFile/jsonManifest mirror the field names the original
// RMAN tooling's "json" action emits, so manifests exported by that
// tooling load here unmodified.
type jsonChunk struct {
	ID                string `json:"id"`
	BundleID          string `json:"bundle_id"`
	CompressedSize    uint32 `json:"compressed_size"`
	UncompressedSize  uint32 `json:"uncompressed_size"`
	CompressedOffset  uint32 `json:"compressed_offset"`
	UncompressedOffset uint32 `json:"uncompressed_offset"`
	Hash              string `json:"hash"`
}

type jsonFile struct {
	ID              string      `json:"id"`
	Path            string      `json:"path"`
	Size            uint32      `json:"size"`
	Link            string      `json:"link,omitempty"`
	Langs           []string    `json:"langs,omitempty"`
	Chunks          []jsonChunk `json:"chunks"`
	HashType        uint8       `json:"hash_type"`
	CompressionType uint8       `json:"compression_type"`
	MaxUncompressed uint32      `json:"max_uncompressed"`
	Permissions     uint32      `json:"permissions,omitempty"`
	SymlinkTarget   string      `json:"symlink_target,omitempty"`
}

type jsonManifest struct {
	Files        []jsonFile `json:"files"`
	Unreferenced []string   `json:"unreferenced,omitempty"`
}

// JSONSource decodes the "json" manifest format: a plain JSON document
// naming every file and chunk, used both as the "json" CLI action's
// export format and as a directly loadable manifest.
type JSONSource struct{}

func (JSONSource) Decode(data []byte) (*FileList, error) {
	var doc jsonManifest
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding json manifest: %w", err)
	}
	list := &FileList{Unreferenced: make(map[BundleID]struct{}, len(doc.Unreferenced))}
	for _, b := range doc.Unreferenced {
		id, err := parseHexID(b)
		if err != nil {
			return nil, fmt.Errorf("unreferenced bundle: %w", err)
		}
		list.Unreferenced[BundleID(id)] = struct{}{}
	}
	for _, jf := range doc.Files {
		fid, err := parseHexID(jf.ID)
		if err != nil {
			return nil, fmt.Errorf("file %q: %w", jf.Path, err)
		}
		info := FileInfo{
			ID:   FileID(fid),
			Path: jf.Path,
			Size: jf.Size,
			Link: jf.Link,
			Params: RMANParams{
				HashType:        HashType(jf.HashType),
				CompressionType: CompressionType(jf.CompressionType),
				MaxUncompressed: jf.MaxUncompressed,
			},
			Permissions:   jf.Permissions,
			SymlinkTarget: jf.SymlinkTarget,
		}
		if len(jf.Langs) > 0 {
			info.Langs = make(map[string]struct{}, len(jf.Langs))
			for _, l := range jf.Langs {
				info.Langs[l] = struct{}{}
			}
		}
		for _, jc := range jf.Chunks {
			chunk, err := decodeJSONChunk(jc)
			if err != nil {
				return nil, fmt.Errorf("file %q: %w", jf.Path, err)
			}
			info.Chunks = append(info.Chunks, chunk)
		}
		list.Files = append(list.Files, info)
	}
	return list, nil
}

func decodeJSONChunk(jc jsonChunk) (FileChunk, error) {
	id, err := parseHexID(jc.ID)
	if err != nil {
		return FileChunk{}, fmt.Errorf("chunk id: %w", err)
	}
	bundleID, err := parseHexID(jc.BundleID)
	if err != nil {
		return FileChunk{}, fmt.Errorf("chunk bundle id: %w", err)
	}
	chunk := FileChunk{
		ID:                 ChunkID(id),
		BundleID:           BundleID(bundleID),
		CompressedSize:     jc.CompressedSize,
		UncompressedSize:   jc.UncompressedSize,
		CompressedOffset:   jc.CompressedOffset,
		UncompressedOffset: jc.UncompressedOffset,
	}
	if jc.Hash != "" {
		raw, err := decodeHexHash(jc.Hash)
		if err != nil {
			return FileChunk{}, fmt.Errorf("chunk hash: %w", err)
		}
		chunk.Hash = raw
	}
	return chunk, nil
}

// Encode renders list in the same JSON shape Decode reads, used by the
// "json" CLI action to dump a loaded manifest.
func (JSONSource) Encode(list *FileList) ([]byte, error) {
	doc := jsonManifest{}
	for b := range list.Unreferenced {
		doc.Unreferenced = append(doc.Unreferenced, Hex(b))
	}
	for _, f := range list.Files {
		jf := jsonFile{
			ID:              Hex(f.ID),
			Path:            f.Path,
			Size:            f.Size,
			Link:            f.Link,
			HashType:        uint8(f.Params.HashType),
			CompressionType: uint8(f.Params.CompressionType),
			MaxUncompressed: f.Params.MaxUncompressed,
			Permissions:     f.Permissions,
			SymlinkTarget:   f.SymlinkTarget,
		}
		for lang := range f.Langs {
			jf.Langs = append(jf.Langs, lang)
		}
		for _, c := range f.Chunks {
			jf.Chunks = append(jf.Chunks, jsonChunk{
				ID:                 Hex(c.ID),
				BundleID:           Hex(c.BundleID),
				CompressedSize:     c.CompressedSize,
				UncompressedSize:   c.UncompressedSize,
				CompressedOffset:   c.CompressedOffset,
				UncompressedOffset: c.UncompressedOffset,
				Hash:               fmt.Sprintf("%X", c.Hash[:]),
			})
		}
		doc.Files = append(doc.Files, jf)
	}
	return json.MarshalIndent(doc, "", "  ")
}

func parseHexID(s string) (uint64, error) {
	var v uint64
	if _, err := fmt.Sscanf(s, "%016X", &v); err != nil {
		return 0, fmt.Errorf("invalid hex id %q: %w", s, err)
	}
	return v, nil
}

func decodeHexHash(s string) ([64]byte, error) {
	var out [64]byte
	var buf [128]byte
	n := copy(buf[:], s)
	if n%2 != 0 {
		return out, fmt.Errorf("odd-length hash string")
	}
	for i := 0; i+1 < n && i/2 < len(out); i += 2 {
		var b byte
		if _, err := fmt.Sscanf(string(buf[i:i+2]), "%02X", &b); err != nil {
			return out, err
		}
		out[i/2] = b
	}
	return out, nil
}
