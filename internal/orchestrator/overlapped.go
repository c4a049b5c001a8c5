package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/kesrev/rmanfetch/internal/output"
	"github.com/kesrev/rmanfetch/internal/planner"
	"github.com/kesrev/rmanfetch/internal/rman"
	"github.com/kesrev/rmanfetch/internal/transfer"
)

const workerPollInterval = time.Millisecond

// rendezvousState is the three-state handoff a producer and a single
// worker goroutine use to pass one file's planned bundles across:
// Consumed means the slot is free for the producer to fill, Produced
// means a unit is waiting for the worker, Finished means the producer
// has nothing left to send.
type rendezvousState uint8

const (
	stateConsumed rendezvousState = iota
	stateProduced
	stateFinished
)

// fileUnit is one file's handoff payload: its FileDownload (Update
// not yet wired — the worker owns that) and the bundles planned for
// it.
type fileUnit struct {
	id      int
	file    *rman.FileInfo
	fd      *transfer.FileDownload
	bundles []*planner.BundleDownload
}

// rendezvous is a single-slot mailbox guarded by one mutex and
// condition variable, matching the spec's bounded producer/consumer
// handoff.
type rendezvous struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state rendezvousState
	unit  fileUnit
}

func newRendezvous() *rendezvous {
	r := &rendezvous{state: stateConsumed}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Produce blocks until the worker has consumed the previous handoff,
// then deposits unit and wakes the worker.
func (r *rendezvous) Produce(unit fileUnit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.state == stateProduced {
		r.cond.Wait()
	}
	r.unit = unit
	r.state = stateProduced
	r.cond.Signal()
}

// Finish blocks until any pending handoff is consumed, then tells the
// worker no more files are coming.
func (r *rendezvous) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.state == stateProduced {
		r.cond.Wait()
	}
	r.state = stateFinished
	r.cond.Signal()
}

// tryConsume splices a waiting handoff into the worker's local queue
// without blocking.
func (r *rendezvous) tryConsume() (unit fileUnit, ok, finished bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case stateProduced:
		unit, r.unit = r.unit, fileUnit{}
		r.state = stateConsumed
		r.cond.Signal()
		return unit, true, false
	case stateFinished:
		return fileUnit{}, false, true
	default:
		return fileUnit{}, false, false
	}
}

// wait blocks until a handoff is produced or Finish is signaled.
func (r *rendezvous) wait() (unit fileUnit, ok, finished bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.state == stateConsumed {
		r.cond.Wait()
	}
	if r.state == stateFinished {
		return fileUnit{}, false, true
	}
	unit, r.unit = r.unit, fileUnit{}
	r.state = stateConsumed
	r.cond.Signal()
	return unit, true, false
}

// RunOverlapped pipelines the whole list across a single pool: one
// goroutine (the producer) walks the files and plans their bundles
// while a second goroutine (the worker) owns the Pool and performs
// every transfer, so the last bundle of file i can still be in flight
// when the first bundle of file i+1 joins the queue. Per-bundle retry
// is mirrored from synchronous mode (decided per the spec's open
// question rather than left disabled): a failed bundle is resubmitted
// up to cfg.Retry additional times before being reported as a
// file-level error. A planning or I/O error aborts the whole run, the
// same as in synchronous mode.
func RunOverlapped(list *rman.FileList, client transfer.Doer, cfg Config, mgr *output.Manager) error {
	r := newRendezvous()
	pool := transfer.NewPool(client, cfg.Prefix, cfg.MaxConnections)
	defer pool.Close()

	fatalCh := make(chan error, 1)
	var producerWg sync.WaitGroup
	producerWg.Add(1)
	go func() {
		defer producerWg.Done()
		runProducer(list, cfg, mgr, r, fatalCh)
	}()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		runWorker(pool, cfg, mgr, r)
	}()

	producerWg.Wait()
	<-workerDone

	select {
	case err := <-fatalCh:
		return err
	default:
		return nil
	}
}

func runProducer(list *rman.FileList, cfg Config, mgr *output.Manager, r *rendezvous, fatalCh chan<- error) {
	for i := range list.Files {
		file := &list.Files[i]
		id := mgr.RegisterFile(file.Path)
		mgr.SetStatus(id, "pending")

		if file.SymlinkTarget != "" {
			if err := materializeSymlink(file, cfg); err != nil {
				wrapped := fmt.Errorf("symlinking %s: %w", file.Path, err)
				mgr.ReportError(id, wrapped)
				fatalCh <- wrapped
				r.Finish()
				return
			}
			mgr.Complete(id, fmt.Sprintf("Linked %s -> %s", file.Path, file.SymlinkTarget))
			continue
		}

		bundles, err := planFile(file, cfg, mgr, id)
		if err != nil {
			fatalCh <- err
			r.Finish()
			return
		}
		if len(bundles) == 0 {
			mgr.Complete(id, fmt.Sprintf("Completed %s (no chunks)", file.Path))
			continue
		}
		fd, err := openFile(file, cfg, mgr, id, nil)
		if err != nil {
			fatalCh <- err
			r.Finish()
			return
		}
		fd.Attach(len(bundles))
		r.Produce(fileUnit{id: id, file: file, fd: fd, bundles: bundles})
	}
	r.Finish()
}

// runWorker owns pool exclusively: every transfer, every Update
// callback, and every retry decision below happens on this goroutine,
// so none of it needs locking.
func runWorker(pool *transfer.Pool, cfg Config, mgr *output.Manager, r *rendezvous) {
	var queue []transfer.Job
	retries := make(map[*planner.BundleDownload]int)
	failedFile := make(map[*transfer.FileDownload]bool)
	producingDone := false

	for {
		if producingDone && len(queue) == 0 && pool.Finished() {
			return
		}

		if !producingDone {
			if len(queue) == 0 && pool.Finished() {
				// Nothing left to drain: block for the next file
				// rather than spin.
				unit, ok, finished := r.wait()
				if finished {
					producingDone = true
				} else if ok {
					queue = append(queue, attachUnit(unit, cfg, mgr, retries, failedFile, &queue)...)
				}
			} else if unit, ok, finished := r.tryConsume(); finished {
				producingDone = true
			} else if ok {
				queue = append(queue, attachUnit(unit, cfg, mgr, retries, failedFile, &queue)...)
			}
		}

		queue = pool.Push(queue)
		pool.Perform()
		pool.Poll(workerPollInterval)
	}
}

// attachUnit wires unit.fd's Update callback (retry-and-report, since
// the worker — not the producer — is the only goroutine allowed to
// touch the pool/retry state) and returns its bundles as jobs ready
// to queue.
func attachUnit(unit fileUnit, cfg Config, mgr *output.Manager, retries map[*planner.BundleDownload]int, failedFile map[*transfer.FileDownload]bool, queue *[]transfer.Job) []transfer.Job {
	fd := unit.fd
	fd.Update = func(good bool, b *planner.BundleDownload) {
		if good {
			mgr.AddBundleProgress(unit.id, int64(b.TotalSize), int64(b.TotalSize), rman.Hex(b.ID))
			return
		}
		if retries[b] < cfg.Retry {
			retries[b]++
			orchLog.Debug().Str("file", unit.file.Path).Str("bundle", rman.Hex(b.ID)).Int("attempt", retries[b]+1).Msg("retrying failed bundle")
			// See sync.go: Release already fired for this bundle;
			// re-Attach keeps the file's pending count matching what
			// is actually still outstanding before resubmitting.
			fd.Attach(1)
			*queue = append(*queue, transfer.Job{Bundle: b, File: fd})
			return
		}
		failedFile[fd] = true
		orchLog.Warn().Str("file", unit.file.Path).Str("bundle", rman.Hex(b.ID)).Msg("bundle failed after all attempts")
		mgr.ReportError(unit.id, fmt.Errorf("%s: bundle %s failed after %d attempt(s)", unit.file.Path, rman.Hex(b.ID), cfg.Retry+1))
	}
	fd.Done = func() {
		success := !failedFile[fd]
		delete(failedFile, fd)
		if success {
			if err := fd.Finish(true); err != nil {
				mgr.ReportError(unit.id, fmt.Errorf("finalizing %s: %w", unit.file.Path, err))
				return
			}
			mgr.Complete(unit.id, fmt.Sprintf("Completed %s", unit.file.Path))
			return
		}
		fd.Finish(false)
	}

	jobs := make([]transfer.Job, len(unit.bundles))
	for i, b := range unit.bundles {
		jobs[i] = transfer.Job{Bundle: b, File: fd}
	}
	return jobs
}
