package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/activitysync/internal/ir"
)

// Entry is one row of the merged timeline. Exactly one of Signal and Poll is set.
type Entry struct {
	Seq    int64            `json:"seq"`
	Signal *ir.SignalRecord `json:"signal,omitempty"`
	Poll   *ir.PollRecord   `json:"poll,omitempty"`
}

// Stats summarizes the journal.
type Stats struct {
	Signals     int `json:"signals"`
	Malformed   int `json:"malformed"`
	Polls       int `json:"polls"`
	FailedPolls int `json:"failed_polls"`
}

type rowScanner interface {
	Scan(dest ...any) error
}

const signalColumns = `id, seq, event, element, payload, outcome`

const pollColumns = `id, seq, reason, body, snapshot_hash, status, response, response_hash, error, latency_ms`

// ReadSignals returns every signal ordered by seq ASC, id ASC.
// Returns an empty slice (not nil) if the journal is empty.
func (s *Store) ReadSignals(ctx context.Context) ([]ir.SignalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+signalColumns+`
		FROM signals
		ORDER BY seq ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	signals := []ir.SignalRecord{}
	for rows.Next() {
		rec, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		signals = append(signals, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return signals, nil
}

// ReadPolls returns every poll ordered by seq ASC, id ASC COLLATE BINARY.
func (s *Store) ReadPolls(ctx context.Context) ([]ir.PollRecord, error) {
	return s.queryPolls(ctx, `
		SELECT `+pollColumns+`
		FROM polls
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// PollsByHash returns the polls that sent the given snapshot.
func (s *Store) PollsByHash(ctx context.Context, hash string) ([]ir.PollRecord, error) {
	return s.queryPolls(ctx, `
		SELECT `+pollColumns+`
		FROM polls
		WHERE snapshot_hash = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, hash)
}

// ReadPoll retrieves a single poll by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadPoll(ctx context.Context, id string) (ir.PollRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+pollColumns+`
		FROM polls
		WHERE id = ?
	`, id)
	return scanPoll(row)
}

// Timeline merges signals and polls into one seq-ordered trace.
// A signal and a poll never share a seq; ties keep signals first.
func (s *Store) Timeline(ctx context.Context) ([]Entry, error) {
	signals, err := s.ReadSignals(ctx)
	if err != nil {
		return nil, err
	}
	polls, err := s.ReadPolls(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(signals)+len(polls))
	i, j := 0, 0
	for i < len(signals) || j < len(polls) {
		if j >= len(polls) || (i < len(signals) && signals[i].Seq <= polls[j].Seq) {
			sig := signals[i]
			entries = append(entries, Entry{Seq: sig.Seq, Signal: &sig})
			i++
			continue
		}
		p := polls[j]
		entries = append(entries, Entry{Seq: p.Seq, Poll: &p})
		j++
	}
	return entries, nil
}

// LastSeq returns the highest seq recorded in either table, 0 when empty.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var last int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(
			COALESCE((SELECT MAX(seq) FROM signals), 0),
			COALESCE((SELECT MAX(seq) FROM polls), 0)
		)
	`).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return last, nil
}

// Stats counts journal rows.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = 'malformed' THEN 1 ELSE 0 END), 0)
		FROM signals
	`).Scan(&st.Signals, &st.Malformed)
	if err != nil {
		return Stats{}, fmt.Errorf("count signals: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM polls
	`).Scan(&st.Polls, &st.FailedPolls)
	if err != nil {
		return Stats{}, fmt.Errorf("count polls: %w", err)
	}
	return st, nil
}

func (s *Store) queryPolls(ctx context.Context, query string, args ...any) ([]ir.PollRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query polls: %w", err)
	}
	defer rows.Close()

	polls := []ir.PollRecord{}
	for rows.Next() {
		rec, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		polls = append(polls, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate polls: %w", err)
	}
	return polls, nil
}

func scanSignal(row rowScanner) (ir.SignalRecord, error) {
	var (
		rec     ir.SignalRecord
		payload sql.NullString
		outcome string
	)
	if err := row.Scan(&rec.ID, &rec.Seq, &rec.Event, &rec.Element, &payload, &outcome); err != nil {
		return ir.SignalRecord{}, fmt.Errorf("scan signal: %w", err)
	}
	rec.Payload = textBytes(payload)
	rec.Outcome = ir.SignalOutcome(outcome)
	return rec, nil
}

func scanPoll(row rowScanner) (ir.PollRecord, error) {
	var (
		rec                   ir.PollRecord
		reason, status, body  string
		response              sql.NullString
		responseHash, errText sql.NullString
	)
	err := row.Scan(
		&rec.ID,
		&rec.Seq,
		&reason,
		&body,
		&rec.SnapshotHash,
		&status,
		&response,
		&responseHash,
		&errText,
		&rec.LatencyMS,
	)
	if err == sql.ErrNoRows {
		return ir.PollRecord{}, err
	}
	if err != nil {
		return ir.PollRecord{}, fmt.Errorf("scan poll: %w", err)
	}
	rec.Reason = ir.PollReason(reason)
	rec.Status = ir.PollStatus(status)
	rec.Body = []byte(body)
	rec.Response = textBytes(response)
	rec.ResponseHash = responseHash.String
	rec.Error = errText.String
	return rec, nil
}
