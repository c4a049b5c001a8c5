package transfer

import (
	"sync/atomic"
	"time"

	"github.com/kesrev/rmanfetch/internal/logging"
	"github.com/kesrev/rmanfetch/internal/rman"
)

var poolLog = logging.For("pool")

// result is a finished transfer awaiting delivery to its file's Update
// callback and refcount release.
type result struct {
	job  Job
	good bool
}

// Pool holds size connections, all logically "free" until a bundle is
// pushed onto one; each worker goroutine is a long-lived connection
// slot that performs one transfer at a time and reports back on a
// results channel, mirroring a fixed-size curl_multi handle set with
// Go's own concurrency primitives.
type Pool struct {
	client   Doer
	prefix   string
	size     int
	jobs     chan Job
	results  chan result
	inFlight atomic.Int32
}

// NewPool starts size worker goroutines that will perform transfers
// against prefix using client as they're pushed work.
func NewPool(client Doer, prefix string, size int) *Pool {
	p := &Pool{
		client:  client,
		prefix:  prefix,
		size:    size,
		jobs:    make(chan Job, size),
		results: make(chan result, size),
	}
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for job := range p.jobs {
		good, err := runTransfer(p.client, p.prefix, job)
		if err != nil {
			good = false
		}
		p.results <- result{job: job, good: good}
	}
}

// CanPush reports whether at least one connection is free.
func (p *Pool) CanPush() bool {
	return int(p.inFlight.Load()) < p.size
}

// Push moves bundles from the front of queue onto free connections
// until either the queue or the free list is exhausted, and returns
// the remaining, unpushed queue.
func (p *Pool) Push(queue []Job) []Job {
	for len(queue) > 0 && p.CanPush() {
		p.inFlight.Add(1)
		p.jobs <- queue[0]
		queue = queue[1:]
	}
	return queue
}

// Perform drains any transfers that have already finished, invoking
// each one's file Update callback and releasing its FileDownload
// refcount, without blocking for more to arrive.
func (p *Pool) Perform() {
	for {
		select {
		case r := <-p.results:
			p.deliver(r)
		default:
			return
		}
	}
}

// Poll waits up to timeout for at least one transfer to finish, then
// behaves like Perform for anything else already queued up.
func (p *Pool) Poll(timeout time.Duration) {
	select {
	case r := <-p.results:
		p.deliver(r)
	case <-time.After(timeout):
		return
	}
	p.Perform()
}

func (p *Pool) deliver(r result) {
	p.inFlight.Add(-1)
	if !r.good {
		poolLog.Debug().Str("bundle", rman.Hex(r.job.Bundle.ID)).Msg("bundle transfer did not complete")
	}
	if r.job.File.Update != nil {
		r.job.File.Update(r.good, r.job.Bundle)
	}
	if r.job.File.Release() && r.job.File.Done != nil {
		r.job.File.Done()
	}
}

// Finished reports whether no transfers are currently in flight.
func (p *Pool) Finished() bool {
	return p.inFlight.Load() == 0
}

// Close stops every worker goroutine. Callers must not Push after
// calling Close.
func (p *Pool) Close() {
	close(p.jobs)
}
