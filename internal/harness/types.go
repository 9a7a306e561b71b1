package harness

import "encoding/json"

// TraceEvent is one journal entry of a scenario run.
type TraceEvent struct {
	Seq      int64           `json:"seq"`
	Type     string          `json:"type"` // "signal" or "poll"
	Event    string          `json:"event,omitempty"`
	Element  string          `json:"element,omitempty"`
	Outcome  string          `json:"outcome,omitempty"`
	PollID   string          `json:"poll_id,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Body     json.RawMessage `json:"body,omitempty"`
	Status   string          `json:"status,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Trace event types.
const (
	TraceSignal = "signal"
	TracePoll   = "poll"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Trace is the merged journal timeline.
	Trace []TraceEvent `json:"trace"`

	// Polls holds each poll body sent, as canonical JSON, in send order.
	Polls []string `json:"polls"`

	// Broadcasts holds each broadcast payload, as canonical JSON.
	Broadcasts []string `json:"broadcasts"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Trace:      []TraceEvent{},
		Polls:      []string{},
		Broadcasts: []string{},
		Errors:     []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
