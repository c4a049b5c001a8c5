// Package rman defines the data model of an RMAN release manifest:
// opaque chunk/bundle/file identifiers, per-file chunk layout, and the
// file list a manifest decodes into.
package rman

import "fmt"

// BundleID identifies a server-side archive of concatenated compressed
// chunks.
type BundleID uint64

// ChunkID identifies one compressed, content-addressed payload.
type ChunkID uint64

// FileID identifies one destination file described by the manifest.
type FileID uint64

// NoneBundle, NoneChunk and NoneFile are the zero values of the three
// ID types; a chunk or bundle ID equal to zero never appears on the wire.
const (
	NoneBundle BundleID = 0
	NoneChunk  ChunkID  = 0
	NoneFile   FileID   = 0
)

// Hex renders an ID as 16 uppercase hex digits, zero-padded, big-endian
// nibble order.
func Hex[T ~uint64](id T) string {
	return fmt.Sprintf("%016X", uint64(id))
}

// BundlePath builds the path component of a bundle's URL under prefix:
// "{prefix}/bundles/{HEX(id)}.bundle".
func BundlePath(prefix string, id BundleID) string {
	return fmt.Sprintf("%s/bundles/%s.bundle", prefix, Hex(id))
}
