package ir

// NOTE: Journal records are diagnostic. The engine never reads them back to
// rebuild its state.

// SignalOutcome classifies what the router did with one bus signal.
type SignalOutcome string

const (
	SignalApplied   SignalOutcome = "applied"
	SignalMalformed SignalOutcome = "malformed"
	SignalRenamed   SignalOutcome = "renamed"
	SignalTimeout   SignalOutcome = "timeout"
)

// SignalRecord is one routed signal.
type SignalRecord struct {
	ID      int64         `json:"id"` // Auto-increment (store)
	Seq     int64         `json:"seq"`
	Event   string        `json:"event"`
	Element string        `json:"element,omitempty"`
	Payload []byte        `json:"payload,omitempty"` // Canonical JSON
	Outcome SignalOutcome `json:"outcome"`
}

// PollReason tells why a poll was issued.
type PollReason string

const (
	PollCadence PollReason = "cadence"
	PollSignOff PollReason = "signoff"
)

// PollStatus is the terminal state of one poll request.
type PollStatus string

const (
	PollOK     PollStatus = "ok"
	PollFailed PollStatus = "failed"
)

// PollRecord is one outbound snapshot and its outcome.
type PollRecord struct {
	ID           string     `json:"id"` // UUIDv7
	Seq          int64      `json:"seq"`
	Reason       PollReason `json:"reason"`
	Body         []byte     `json:"body"` // Canonical JSON of the snapshot
	SnapshotHash string     `json:"snapshot_hash"`
	Status       PollStatus `json:"status"`
	Response     []byte     `json:"response,omitempty"`
	ResponseHash string     `json:"response_hash,omitempty"`
	Error        string     `json:"error,omitempty"`
	LatencyMS    int64      `json:"latency_ms,omitempty"`
}
