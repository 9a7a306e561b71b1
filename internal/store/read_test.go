package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/activitysync/internal/ir"
)

func TestReadSignals_Empty(t *testing.T) {
	s := createTestStore(t)

	signals, err := s.ReadSignals(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, signals)
	assert.Empty(t, signals)
}

func TestReadSignals_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordSignal(ctx, testSignal(5, "c", ir.SignalApplied)))
	require.NoError(t, s.RecordSignal(ctx, testSignal(1, "a", ir.SignalApplied)))
	require.NoError(t, s.RecordSignal(ctx, testSignal(3, "b", ir.SignalRenamed)))

	signals, err := s.ReadSignals(ctx)
	require.NoError(t, err)
	require.Len(t, signals, 3)
	assert.Equal(t, "a", signals[0].Element)
	assert.Equal(t, "b", signals[1].Element)
	assert.Equal(t, "c", signals[2].Element)
}

func TestReadPoll_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadPoll(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReadPolls_Empty(t *testing.T) {
	s := createTestStore(t)

	polls, err := s.ReadPolls(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, polls)
	assert.Empty(t, polls)
}

func TestPollsByHash(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	a := testPoll("poll-1", 1, ir.PollOK)
	b := testPoll("poll-2", 2, ir.PollOK)
	c := testPoll("poll-3", 3, ir.PollOK)
	c.SnapshotHash = a.SnapshotHash
	for _, p := range []ir.PollRecord{a, b, c} {
		require.NoError(t, s.RecordPoll(ctx, p))
	}

	polls, err := s.PollsByHash(ctx, a.SnapshotHash)
	require.NoError(t, err)
	require.Len(t, polls, 2)
	assert.Equal(t, "poll-1", polls[0].ID)
	assert.Equal(t, "poll-3", polls[1].ID)
}

func TestTimeline_MergesBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordSignal(ctx, testSignal(1, "doc", ir.SignalApplied)))
	require.NoError(t, s.RecordPoll(ctx, testPoll("poll-1", 2, ir.PollOK)))
	require.NoError(t, s.RecordSignal(ctx, testSignal(3, "doc", ir.SignalApplied)))
	require.NoError(t, s.RecordSignal(ctx, ir.SignalRecord{Seq: 4, Element: "doc", Outcome: ir.SignalTimeout}))
	require.NoError(t, s.RecordPoll(ctx, testPoll("poll-2", 5, ir.PollFailed)))

	entries, err := s.Timeline(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 5)

	var seqs []int64
	for _, e := range entries {
		seqs = append(seqs, e.Seq)
		assert.True(t, (e.Signal == nil) != (e.Poll == nil), "exactly one record per entry")
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, seqs)
	assert.NotNil(t, entries[1].Poll)
	assert.Equal(t, ir.SignalTimeout, entries[3].Signal.Outcome)
	assert.Equal(t, "poll-2", entries[4].Poll.ID)
}

func TestTimeline_Empty(t *testing.T) {
	s := createTestStore(t)

	entries, err := s.Timeline(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStats(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)

	require.NoError(t, s.RecordSignal(ctx, testSignal(1, "doc", ir.SignalApplied)))
	require.NoError(t, s.RecordSignal(ctx, ir.SignalRecord{Seq: 2, Event: "editor.focus", Outcome: ir.SignalMalformed}))
	require.NoError(t, s.RecordPoll(ctx, testPoll("poll-1", 3, ir.PollOK)))
	require.NoError(t, s.RecordPoll(ctx, testPoll("poll-2", 4, ir.PollFailed)))

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Signals: 2, Malformed: 1, Polls: 2, FailedPolls: 1}, st)
}

func TestLastSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	last, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)

	require.NoError(t, s.RecordSignal(ctx, testSignal(5, "doc", ir.SignalApplied)))
	last, err = s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), last)

	require.NoError(t, s.RecordPoll(ctx, testPoll("poll-1", 9, ir.PollOK)))
	last, err = s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), last)
}
