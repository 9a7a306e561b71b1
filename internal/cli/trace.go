package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/activitysync/internal/ir"
	"github.com/roach88/activitysync/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Element  string // optional - only entries touching this element
	Failed   bool   // optional - only malformed signals and failed polls
}

// TraceEntry is one row of the printed timeline.
type TraceEntry struct {
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
	Latency  int64           `json:"latency_ms,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Journal  string       `json:"journal"`
	Timeline []TraceEntry `json:"timeline"`
	Stats    store.Stats  `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print the sync journal timeline",
		Long: `Print the signals and polls recorded in a journal written by "run --journal".

Signals and polls share one sequence, so the timeline shows which signal
triggered which poll.

Examples:
  activitysync trace --db ./sync.db
  activitysync trace --db ./sync.db --element doc-1
  activitysync trace --db ./sync.db --failed --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Element, "element", "", "filter to one element")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "only malformed signals and failed polls")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// store.Open would create an empty journal at a mistyped path.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "journal not found", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	entries, err := st.Timeline(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read timeline", err)
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read stats", err)
	}

	result := TraceResult{
		Journal:  opts.Database,
		Timeline: []TraceEntry{},
		Stats:    stats,
	}
	for _, e := range entries {
		if !keepEntry(e, opts) {
			continue
		}
		result.Timeline = append(result.Timeline, toTraceEntry(e))
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: result})
	}
	outputTraceText(cmd.OutOrStdout(), result)
	return nil
}

func keepEntry(e store.Entry, opts *TraceOptions) bool {
	if opts.Failed {
		switch {
		case e.Signal != nil && e.Signal.Outcome != ir.SignalMalformed:
			return false
		case e.Poll != nil && e.Poll.Status != ir.PollFailed:
			return false
		}
	}
	if opts.Element == "" {
		return true
	}
	if e.Signal != nil {
		return e.Signal.Element == opts.Element
	}
	return pollMentions(e.Poll, opts.Element)
}

// pollMentions reports whether a poll's snapshot or response names element.
func pollMentions(p *ir.PollRecord, element string) bool {
	var snapshot []ir.ElementSnapshot
	if json.Unmarshal(p.Body, &snapshot) == nil {
		for _, s := range snapshot {
			if s.Element == element {
				return true
			}
		}
	}
	var response []ir.ElementActivity
	if len(p.Response) > 0 && json.Unmarshal(p.Response, &response) == nil {
		for _, r := range response {
			if r.Element == element {
				return true
			}
		}
	}
	return false
}

func toTraceEntry(e store.Entry) TraceEntry {
	if e.Signal != nil {
		return TraceEntry{
			Seq:     e.Seq,
			Type:    "signal",
			Event:   e.Signal.Event,
			Element: e.Signal.Element,
			Outcome: string(e.Signal.Outcome),
		}
	}
	p := e.Poll
	entry := TraceEntry{
		Seq:     e.Seq,
		Type:    "poll",
		PollID:  p.ID,
		Reason:  string(p.Reason),
		Body:    json.RawMessage(p.Body),
		Status:  string(p.Status),
		Error:   p.Error,
		Latency: p.LatencyMS,
	}
	if len(p.Response) > 0 {
		entry.Response = json.RawMessage(p.Response)
	}
	return entry
}

func outputTraceText(w io.Writer, result TraceResult) {
	fmt.Fprintf(w, "Journal: %s\n\n", result.Journal)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No entries.")
	} else {
		fmt.Fprintln(w, "Timeline:")
		for _, e := range result.Timeline {
			switch e.Type {
			case "signal":
				element := e.Element
				if element == "" {
					element = "-"
				}
				fmt.Fprintf(w, "  [%d] signal %s %s %s\n", e.Seq, e.Event, element, e.Outcome)
			default:
				fmt.Fprintf(w, "  [%d] poll %s %s %s body=%s", e.Seq, e.PollID, e.Reason, e.Status, e.Body)
				if e.Error != "" {
					fmt.Fprintf(w, " error=%q", e.Error)
				}
				fmt.Fprintf(w, " (%dms)\n", e.Latency)
			}
		}
	}

	s := result.Stats
	fmt.Fprintf(w, "\nStats: %d signal(s) (%d malformed), %d poll(s) (%d failed)\n",
		s.Signals, s.Malformed, s.Polls, s.FailedPolls)
}
