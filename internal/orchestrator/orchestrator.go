// Package orchestrator drives a transfer.Pool against the bundle
// requests planner.Plan produces for a whole FileList, in either of
// the two topologies the core supports: a synchronous per-file retry
// loop, or a pipelined two-goroutine producer/consumer that overlaps
// one file's tail with the next file's head.
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kesrev/rmanfetch/internal/logging"
	"github.com/kesrev/rmanfetch/internal/output"
	"github.com/kesrev/rmanfetch/internal/planner"
	"github.com/kesrev/rmanfetch/internal/rman"
	"github.com/kesrev/rmanfetch/internal/transfer"
)

var orchLog = logging.For("orchestrator")

// Config parameterizes a run: where bundles are fetched from, how the
// pool and planner are sized, how many attempts a failed bundle gets,
// and where reconstructed files land on disk.
type Config struct {
	Prefix         string
	OutputDir      string
	MaxConnections int
	BufferSize     uint32
	MaxRangeHeader int
	RangeModePref  rman.RangeMode
	Retry          int
	Nowrite        bool
}

// plannerConfig leaves Prefix empty: planner.Plan only uses it to build
// each BundleDownload's path component, and the Pool supplies the real
// server origin itself at request time (see runTransfer), so baking it
// in here would duplicate it on every request.
func (c Config) plannerConfig() planner.Config {
	return planner.Config{
		BufferSize:     c.BufferSize,
		MaxRangeHeader: c.MaxRangeHeader,
		RangeModePref:  c.RangeModePref,
	}
}

// outputPath joins cfg.OutputDir with file.Path; rman.FileList.Sanitize
// has already guaranteed file.Path carries no ".."/absolute segments,
// so this can never escape OutputDir.
func (c Config) outputPath(file *rman.FileInfo) string {
	if c.Nowrite {
		return ""
	}
	return filepath.Join(c.OutputDir, filepath.FromSlash(file.Path))
}

// planFile runs the planner for one file and registers it with mgr,
// reporting (and returning) a fatal planning error if one occurs.
func planFile(file *rman.FileInfo, cfg Config, mgr *output.Manager, id int) ([]*planner.BundleDownload, error) {
	bundles, err := planner.Plan(file, cfg.plannerConfig())
	if err != nil {
		wrapped := fmt.Errorf("planning %s: %w", file.Path, err)
		mgr.ReportError(id, wrapped)
		return nil, wrapped
	}
	return bundles, nil
}

// openFile prepares the on-disk destination for file (symlinks are
// materialized directly with no chunks to fetch; regular files get
// their parent directory created before the output stream opens).
func openFile(file *rman.FileInfo, cfg Config, mgr *output.Manager, id int, update transfer.UpdateFunc) (*transfer.FileDownload, error) {
	if file.SymlinkTarget != "" {
		return nil, materializeSymlink(file, cfg)
	}
	outPath := cfg.outputPath(file)
	if outPath != "" {
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			wrapped := fmt.Errorf("creating directory for %s: %w", file.Path, err)
			mgr.ReportError(id, wrapped)
			return nil, wrapped
		}
	}
	fd, err := transfer.NewFileDownload(file, outPath, cfg.Nowrite, update)
	if err != nil {
		wrapped := fmt.Errorf("opening %s: %w", file.Path, err)
		mgr.ReportError(id, wrapped)
		return nil, wrapped
	}
	return fd, nil
}

func materializeSymlink(file *rman.FileInfo, cfg Config) error {
	if cfg.Nowrite {
		return nil
	}
	outPath := cfg.outputPath(file)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("creating directory for symlink %s: %w", file.Path, err)
	}
	_ = os.Remove(outPath)
	return os.Symlink(file.SymlinkTarget, outPath)
}
