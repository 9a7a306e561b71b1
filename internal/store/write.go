package store

import (
	"context"
	"fmt"

	"github.com/roach88/activitysync/internal/ir"
)

// RecordSignal appends a routed signal. Payload is stored as given; the
// engine encodes it as canonical JSON.
func (s *Store) RecordSignal(ctx context.Context, rec ir.SignalRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (seq, event, element, payload, outcome)
		VALUES (?, ?, ?, ?, ?)
	`,
		rec.Seq,
		rec.Event,
		rec.Element,
		nullText(rec.Payload),
		string(rec.Outcome),
	)
	if err != nil {
		return fmt.Errorf("record signal: %w", err)
	}
	return nil
}

// RecordPoll appends a poll outcome.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) RecordPoll(ctx context.Context, rec ir.PollRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record poll: id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO polls
		(id, seq, reason, body, snapshot_hash, status, response, response_hash, error, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Seq,
		string(rec.Reason),
		string(rec.Body),
		rec.SnapshotHash,
		string(rec.Status),
		nullText(rec.Response),
		nullString(rec.ResponseHash),
		nullString(rec.Error),
		rec.LatencyMS,
	)
	if err != nil {
		return fmt.Errorf("record poll: %w", err)
	}
	return nil
}
