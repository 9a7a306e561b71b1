package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"cuelang.org/go/cue"

	"github.com/roach88/activitysync/internal/bus"
	"github.com/roach88/activitysync/internal/compiler"
	"github.com/roach88/activitysync/internal/engine"
	"github.com/roach88/activitysync/internal/ir"
	"github.com/roach88/activitysync/internal/store"
	"github.com/roach88/activitysync/internal/testutil"
)

// ServiceURL is the base URL scenarios poll.
const ServiceURL = "http://activitysync.test"

// stepTimeout bounds each wait on the poll worker.
const stepTimeout = 5 * time.Second

// Harness is the test execution engine for one scenario run.
type Harness struct {
	store      *store.Store
	engine     *engine.Engine
	bus        *bus.Memory
	clock      *testutil.FakeClock
	client     *testutil.RecordingClient
	logger     *slog.Logger
	broadcasts *broadcastLog
}

type broadcastLog struct {
	mu       sync.Mutex
	payloads []string
	err      error
}

func (b *broadcastLog) record(payload any) {
	data, err := ir.MarshalCanonical(payload)
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.err = errors.Join(b.err, err)
		return
	}
	b.payloads = append(b.payloads, string(data))
}

func (b *broadcastLog) all() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.payloads))
	copy(out, b.payloads)
	return out, b.err
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh engine and in-memory journal.
//
// Execution flow:
// 1. Compile and validate the descriptors
// 2. Start the engine with a fake clock and recording client
// 3. Execute steps, waiting for the poll worker after each one
// 4. Collect polls, broadcasts and the journal trace
// 5. Evaluate assertions
//
// A scenario without a stop step is stopped after collection; that sign-off
// poll is not part of the result.
func Run(scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	descs, err := loadDescriptors(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:      st,
		bus:        bus.NewMemory(),
		clock:      testutil.NewFakeClock(),
		client:     testutil.NewRecordingClient(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		broadcasts: &broadcastLog{},
	}
	h.client.RespondWith(respondFrom(scenario.Responses))
	h.bus.Subscribe(engine.BroadcastEvent, h.broadcasts.record)

	opts := []engine.Option{
		engine.WithClock(h.clock),
		engine.WithLogger(h.logger),
		engine.WithJournal(st),
		engine.WithPollIDs(testutil.NewSequentialIDs("")),
	}
	if scenario.Interval > 0 {
		opts = append(opts, engine.WithPollInterval(scenario.Interval))
	}

	h.engine, err = engine.New(h.bus, h.client, ServiceURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	if err := h.engine.Start(descs...); err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	defer h.engine.Stop(context.Background())

	for i, step := range scenario.Steps {
		if err := h.executeStep(step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	result, err := h.collect()
	if err != nil {
		return nil, err
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

func loadDescriptors(s *Scenario) ([]ir.ActivityDescriptor, error) {
	var (
		v   cue.Value
		err error
	)
	if s.CUE != "" {
		v, err = compiler.CompileBytes(s.Name+".cue", []byte(s.CUE))
	} else {
		v, _, err = compiler.LoadValue(s.Descriptors)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load descriptors: %w", err)
	}

	descs, errs := compiler.CompileDescriptors(v)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to compile descriptors: %w", errors.Join(errs...))
	}
	if verrs := compiler.Validate(descs); len(verrs) > 0 {
		joined := make([]error, len(verrs))
		for i, e := range verrs {
			joined[i] = e
		}
		return nil, fmt.Errorf("invalid descriptors: %w", errors.Join(joined...))
	}
	return descs, nil
}

// respondFrom serves responses in order, repeating the last one.
func respondFrom(responses []Response) testutil.Responder {
	var mu sync.Mutex
	next := 0
	return func(testutil.RecordedRequest) (any, error) {
		if len(responses) == 0 {
			return []ir.ElementActivity{}, nil
		}
		mu.Lock()
		r := responses[min(next, len(responses)-1)]
		next++
		mu.Unlock()

		if r.Error != "" {
			return nil, errors.New(r.Error)
		}
		if r.Body == nil {
			return []ir.ElementActivity{}, nil
		}
		return r.Body, nil
	}
}

// executeStep applies one step and waits until every poll it queued has
// been sent and broadcast.
func (h *Harness) executeStep(step Step) error {
	switch {
	case step.Publish != "":
		h.bus.Publish(step.Publish, step.Payload)
	case step.Advance > 0:
		h.clock.Advance(step.Advance)
	case step.Stop:
		ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
		defer cancel()
		// A failed sign-off poll is part of the trace, not a harness error.
		if err := h.engine.Stop(ctx); err != nil && !engine.IsPollError(err) {
			return fmt.Errorf("stop: %w", err)
		}
		return nil
	}
	return h.flush()
}

func (h *Harness) flush() error {
	if !h.engine.Running() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()
	if err := h.engine.Flush(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// collect gathers what the engine sent, broadcast and journaled so far.
func (h *Harness) collect() (*Result, error) {
	if err := h.flush(); err != nil {
		return nil, err
	}

	result := NewResult()

	for i, req := range h.client.Requests() {
		body, err := canonicalJSON(req.Body)
		if err != nil {
			return nil, fmt.Errorf("poll %d body: %w", i, err)
		}
		result.Polls = append(result.Polls, body)
	}

	broadcasts, err := h.broadcasts.all()
	if err != nil {
		return nil, fmt.Errorf("broadcast payload: %w", err)
	}
	result.Broadcasts = append(result.Broadcasts, broadcasts...)

	entries, err := h.store.Timeline(context.Background())
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	for _, e := range entries {
		result.Trace = append(result.Trace, traceEvent(e))
	}
	return result, nil
}

func traceEvent(e store.Entry) TraceEvent {
	if e.Signal != nil {
		return TraceEvent{
			Seq:     e.Seq,
			Type:    TraceSignal,
			Event:   e.Signal.Event,
			Element: e.Signal.Element,
			Outcome: string(e.Signal.Outcome),
		}
	}
	return TraceEvent{
		Seq:      e.Seq,
		Type:     TracePoll,
		PollID:   e.Poll.ID,
		Reason:   string(e.Poll.Reason),
		Body:     json.RawMessage(e.Poll.Body),
		Status:   string(e.Poll.Status),
		Response: json.RawMessage(e.Poll.Response),
		Error:    e.Poll.Error,
	}
}

// canonicalJSON re-encodes a JSON document canonically.
func canonicalJSON(data []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	out, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
