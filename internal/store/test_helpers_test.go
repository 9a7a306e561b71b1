package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/activitysync/internal/ir"
)

// createTestStore opens a fresh journal in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSignal(seq int64, element string, outcome ir.SignalOutcome) ir.SignalRecord {
	return ir.SignalRecord{
		Seq:     seq,
		Event:   "editor.focus",
		Element: element,
		Payload: []byte(`{"id":"` + element + `"}`),
		Outcome: outcome,
	}
}

func testPoll(id string, seq int64, status ir.PollStatus) ir.PollRecord {
	return ir.PollRecord{
		ID:           id,
		Seq:          seq,
		Reason:       ir.PollCadence,
		Body:         []byte(`[{"activities":["editing"],"element":"doc"}]`),
		SnapshotHash: "hash-" + id,
		Status:       status,
		LatencyMS:    12,
	}
}
