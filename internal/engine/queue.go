package engine

import (
	"sync"

	"github.com/roach88/activitysync/internal/ir"
)

// pollJob is one unit of work for the poll worker: either a poll to send or
// a barrier that is released when every job queued before it has finished.
type pollJob struct {
	ID       string
	Seq      int64
	Reason   ir.PollReason
	Snapshot []ir.ElementSnapshot

	// done is closed after the job is processed. err is valid once done is closed.
	done chan struct{}
	err  error

	barrier bool
}

func newPollJob(id string, seq int64, reason ir.PollReason, snapshot []ir.ElementSnapshot) *pollJob {
	return &pollJob{
		ID:       id,
		Seq:      seq,
		Reason:   reason,
		Snapshot: snapshot,
		done:     make(chan struct{}),
	}
}

func newBarrier() *pollJob {
	return &pollJob{barrier: true, done: make(chan struct{})}
}

// pollQueue is a thread-safe unbounded FIFO of poll jobs.
//
// Engine turns enqueue under the engine lock and never block on the network.
// The single poll worker dequeues, so requests go out one at a time and
// responses are broadcast in request order.
//
// The queue uses a channel for signaling so the worker can wait without
// spinning.
type pollQueue struct {
	mu     sync.Mutex
	jobs   []*pollJob
	closed bool
	signal chan struct{} // Signals job availability (buffered, size 1)
}

func newPollQueue() *pollQueue {
	return &pollQueue{
		jobs:   make([]*pollJob, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a job to the back of the queue.
// Returns false if the queue is closed.
func (q *pollQueue) Enqueue(j *pollJob) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.jobs = append(q.jobs, j)

	// Non-blocking - buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front job without blocking.
func (q *pollQueue) TryDequeue() (*pollJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return nil, false
	}

	j := q.jobs[0]
	// Nil out the slot so the backing array does not retain snapshots.
	q.jobs[0] = nil
	if len(q.jobs) == 1 {
		q.jobs = q.jobs[:0]
	} else {
		q.jobs = q.jobs[1:]
	}

	return j, true
}

// Wait returns a channel that signals when jobs may be available.
// It is closed by Close.
func (q *pollQueue) Wait() <-chan struct{} {
	return q.signal
}

// Drained reports whether the queue is closed and empty.
func (q *pollQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.jobs) == 0
}

// Len returns the current queue length.
func (q *pollQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close rejects further jobs. Jobs already queued are still delivered.
func (q *pollQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
