package orchestrator

import (
	"fmt"
	"time"

	"github.com/kesrev/rmanfetch/internal/output"
	"github.com/kesrev/rmanfetch/internal/planner"
	"github.com/kesrev/rmanfetch/internal/rman"
	"github.com/kesrev/rmanfetch/internal/transfer"
)

const pollInterval = 100 * time.Millisecond

// RunSynchronous downloads every file in list in order, one at a
// time: for each file it builds a fresh Pool, pushes the planned
// bundles, and retries whatever's still failing up to cfg.Retry+1
// attempts before giving up on the file. A planning or I/O error is
// fatal to the whole run; exhausted bundle retries are reported
// per-file and the run continues to the next file.
func RunSynchronous(list *rman.FileList, client transfer.Doer, cfg Config, mgr *output.Manager) error {
	for i := range list.Files {
		file := &list.Files[i]
		if err := downloadFileSync(file, client, cfg, mgr); err != nil {
			return err
		}
	}
	return nil
}

func downloadFileSync(file *rman.FileInfo, client transfer.Doer, cfg Config, mgr *output.Manager) error {
	id := mgr.RegisterFile(file.Path)
	mgr.SetStatus(id, "pending")

	if file.SymlinkTarget != "" {
		if err := materializeSymlink(file, cfg); err != nil {
			wrapped := fmt.Errorf("symlinking %s: %w", file.Path, err)
			mgr.ReportError(id, wrapped)
			return wrapped
		}
		mgr.Complete(id, fmt.Sprintf("Linked %s -> %s", file.Path, file.SymlinkTarget))
		return nil
	}

	bundles, err := planFile(file, cfg, mgr, id)
	if err != nil {
		return err
	}
	if len(bundles) == 0 {
		mgr.Complete(id, fmt.Sprintf("Completed %s (no chunks)", file.Path))
		return nil
	}

	fd, err := openFile(file, cfg, mgr, id, nil)
	if err != nil {
		return err
	}
	fd.Attach(len(bundles))

	var failedBundles []*planner.BundleDownload
	fd.Update = func(good bool, b *planner.BundleDownload) {
		if good {
			mgr.AddBundleProgress(id, int64(b.TotalSize), int64(b.TotalSize), rman.Hex(b.ID))
			return
		}
		failedBundles = append(failedBundles, b)
	}

	queue := make([]transfer.Job, len(bundles))
	for i, b := range bundles {
		queue[i] = transfer.Job{Bundle: b, File: fd}
	}

	pool := transfer.NewPool(client, cfg.Prefix, cfg.MaxConnections)
	defer pool.Close()

	var lastRoundFailed []*planner.BundleDownload
	for attempt := 0; attempt <= cfg.Retry; attempt++ {
		failedBundles = nil
		mgr.SetStatus(id, "downloading")
		mgr.SetMessage(id, fmt.Sprintf("Fetching %s (attempt %d/%d)", file.Path, attempt+1, cfg.Retry+1))
		for len(queue) > 0 || !pool.Finished() {
			queue = pool.Push(queue)
			pool.Perform()
			pool.Poll(pollInterval)
		}
		lastRoundFailed = failedBundles
		if len(lastRoundFailed) == 0 || attempt == cfg.Retry {
			break
		}
		orchLog.Debug().Str("file", file.Path).Int("attempt", attempt+1).Int("failed", len(lastRoundFailed)).Msg("retrying failed bundles")
		// Every bundle in lastRoundFailed already went through
		// Pool.deliver, which released one pending count on fd
		// regardless of good/bad. Re-attaching before resubmitting
		// keeps fd's refcount matching the bundles that are actually
		// still outstanding.
		fd.Attach(len(lastRoundFailed))
		queue = queue[:0]
		for _, b := range lastRoundFailed {
			queue = append(queue, transfer.Job{Bundle: b, File: fd})
		}
	}

	if len(lastRoundFailed) > 0 {
		fd.Finish(false)
		err := fmt.Errorf("%s: %d bundle(s) failed after %d attempt(s)", file.Path, len(lastRoundFailed), cfg.Retry+1)
		orchLog.Warn().Str("file", file.Path).Int("attempts", cfg.Retry+1).Msg("file download gave up")
		mgr.ReportError(id, err)
		return nil
	}
	if err := fd.Finish(true); err != nil {
		wrapped := fmt.Errorf("finalizing %s: %w", file.Path, err)
		mgr.ReportError(id, wrapped)
		return nil
	}
	mgr.Complete(id, fmt.Sprintf("Completed %s", file.Path))
	return nil
}
