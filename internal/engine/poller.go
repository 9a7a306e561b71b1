package engine

import (
	"cmp"
	"context"
	"slices"

	"github.com/roach88/activitysync/internal/ir"
)

// enqueuePoll snapshots the store and queues the poll for the worker.
// Called only inside a turn (or from Stop under the lock).
func (e *Engine) enqueuePoll(reason ir.PollReason) *pollJob {
	job := newPollJob(e.ids.Generate(), e.seq.Next(), reason, e.store.Snapshot())
	if !e.queue.Enqueue(job) {
		// Unreachable while running: the queue closes only in Stop.
		job.err = &RuntimeError{Code: ErrCodeNotRunning, Message: "poll queue closed", PollID: job.ID}
		close(job.done)
		return job
	}
	e.logger.Debug("poll queued",
		"poll_id", job.ID,
		"seq", job.Seq,
		"reason", job.Reason,
		"elements", len(job.Snapshot),
	)
	return job
}

// runWorker sends queued polls one at a time until the queue is closed and
// drained.
func (e *Engine) runWorker(q *pollQueue, done chan struct{}) {
	defer close(done)

	for {
		if job, ok := q.TryDequeue(); ok {
			if !job.barrier {
				job.err = e.send(job)
			}
			close(job.done)
			continue
		}

		if q.Drained() {
			return
		}
		<-q.Wait()
	}
}

// send performs one poll: POST the snapshot, sort the response, broadcast it.
// Failures are logged and journaled, never retried or broadcast.
func (e *Engine) send(job *pollJob) error {
	ctx := context.Background()
	if e.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.requestTimeout)
		defer cancel()
	}

	started := e.clock.Now()
	var resp []ir.ElementActivity
	err := e.client.PostJSON(ctx, e.endpoint, job.Snapshot, &resp)
	latency := e.clock.Now().Sub(started)

	rec := ir.PollRecord{
		ID:        job.ID,
		Seq:       job.Seq,
		Reason:    job.Reason,
		LatencyMS: latency.Milliseconds(),
	}
	rec.Body, _ = ir.MarshalCanonical(job.Snapshot)
	rec.SnapshotHash, _ = ir.SnapshotHash(job.Snapshot)

	if err != nil {
		rec.Status = ir.PollFailed
		rec.Error = err.Error()
		e.recordPoll(rec)

		e.logger.Error("poll failed",
			"poll_id", job.ID,
			"seq", job.Seq,
			"reason", job.Reason,
			"error", err,
		)
		return NewPollError(job.ID, err)
	}

	if resp == nil {
		resp = []ir.ElementActivity{}
	}
	SortActivities(resp)

	rec.Status = ir.PollOK
	rec.Response, _ = ir.MarshalCanonical(resp)
	rec.ResponseHash, _ = ir.ResponseHash(resp)
	e.recordPoll(rec)

	e.logger.Debug("poll complete",
		"poll_id", job.ID,
		"seq", job.Seq,
		"reason", job.Reason,
		"elements", len(resp),
		"latency_ms", rec.LatencyMS,
	)
	e.bus.Publish(BroadcastEvent, resp)
	return nil
}

func (e *Engine) recordPoll(rec ir.PollRecord) {
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordPoll(context.Background(), rec); err != nil {
		e.logger.Warn("journal poll write failed", "poll_id", rec.ID, "error", err)
	}
}

// SortActivities orders each element's activities by ascending timestamp.
// The sort is stable; activities without a timestamp sort first.
func SortActivities(resp []ir.ElementActivity) {
	for i := range resp {
		slices.SortStableFunc(resp[i].Activities, func(a, b ir.UserActivity) int {
			switch {
			case a.Timestamp == nil && b.Timestamp == nil:
				return 0
			case a.Timestamp == nil:
				return -1
			case b.Timestamp == nil:
				return 1
			default:
				return cmp.Compare(*a.Timestamp, *b.Timestamp)
			}
		})
	}
}
