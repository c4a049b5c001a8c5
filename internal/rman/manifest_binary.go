package rman

import "errors"

// ErrBinaryManifestUnsupported is returned by BinarySource.Decode.
// Parsing the proprietary binary .manifest container (compressed,
// length-prefixed tables of files/chunks/bundles/langs) is out of
// scope for this project: it is an external collaborator per the
// project's manifest-parsing boundary, and not part of the download
// pipeline this repository implements. BinarySource exists so the CLI
// can name the action and fail with a clear, typed error rather than
// silently misbehaving.
var ErrBinaryManifestUnsupported = errors.New("binary .manifest decoding is not implemented; use a json-exported manifest")

// BinarySource is the ManifestSource seam for the binary container
// format. It always fails; see ErrBinaryManifestUnsupported.
type BinarySource struct{}

func (BinarySource) Decode([]byte) (*FileList, error) {
	return nil, ErrBinaryManifestUnsupported
}
