package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/kesrev/rmanfetch/internal/planner"
	"github.com/kesrev/rmanfetch/internal/rman"
)

// UpdateFunc is invoked once per bundle completion (success or
// failure) for the file that produced it.
type UpdateFunc func(good bool, bundle *planner.BundleDownload)

// FileDownload owns one file's output stream and the bundles planned
// for it. It is shared by every BundleDownload that came out of
// planner.Plan for this file; Release, called once per bundle as it
// finishes, reports when the last one has (the file is "done" the
// instant the shared count reaches zero).
type FileDownload struct {
	Info   *rman.FileInfo
	Update UpdateFunc
	// Done, if set, is invoked exactly once, the moment the last
	// attached bundle releases — the file-level equivalent of the
	// shared-ownership count in the source reaching one.
	Done func()

	out       Writer
	file      *os.File
	tempPath  string
	finalPath string
	pending   int32
}

// NewFileDownload opens a uuid-suffixed temp file beside outPath
// (unless nowrite is set, in which case writes are discarded but
// chunks are still verified). Writing under a
// private temp name and renaming into place on Finish keeps a reader
// of outPath from ever observing a partially written file; the uuid
// suffix rules out a collision with another run writing the same
// destination concurrently.
func NewFileDownload(info *rman.FileInfo, outPath string, nowrite bool, update UpdateFunc) (*FileDownload, error) {
	fd := &FileDownload{Info: info, Update: update}
	if nowrite || outPath == "" {
		fd.out = DiscardWriter{}
		return fd, nil
	}
	tempPath := filepath.Join(filepath.Dir(outPath), fmt.Sprintf(".%s.part-%s", filepath.Base(outPath), uuid.New().String()))
	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, os.FileMode(info.Permissions)|0o200)
	if err != nil {
		return nil, err
	}
	if info.Size > 0 {
		if err := f.Truncate(int64(info.Size)); err != nil {
			f.Close()
			os.Remove(tempPath)
			return nil, err
		}
	}
	fd.file = f
	fd.out = f
	fd.tempPath = tempPath
	fd.finalPath = outPath
	return fd, nil
}

// Writer returns the destination bundles of this file decompress into.
func (fd *FileDownload) Writer() Writer { return fd.out }

// Attach records n bundles as pending against this file, to be
// released one at a time as each finishes.
func (fd *FileDownload) Attach(n int) {
	atomic.AddInt32(&fd.pending, int32(n))
}

// Release marks one bundle of this file as finished and reports
// whether that was the last one outstanding. Callers invoke Update
// before Release so the file-level callback still fires exactly once
// the file concludes.
func (fd *FileDownload) Release() (done bool) {
	return atomic.AddInt32(&fd.pending, -1) == 0
}

// Finish closes the underlying output stream, if one was opened, and
// on success renames its temp file into its final destination. On
// failure the temp file is left under its uuid-suffixed name rather
// than silently discarded, so a partially downloaded file can still be
// inspected; a later run does not reuse it.
func (fd *FileDownload) Finish(success bool) error {
	if fd.file == nil {
		return nil
	}
	if err := fd.file.Close(); err != nil {
		return err
	}
	if !success || fd.tempPath == "" {
		return nil
	}
	return os.Rename(fd.tempPath, fd.finalPath)
}
