package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/activitysync/internal/activity"
	"github.com/roach88/activitysync/internal/bus"
	"github.com/roach88/activitysync/internal/clock"
	"github.com/roach88/activitysync/internal/ir"
)

const (
	// BroadcastEvent is the bus event carrying every successful poll response.
	BroadcastEvent = "user.activity.updated"

	// EndpointPath is appended to the service URL for every poll.
	EndpointPath = "/user-activity"
)

// Client performs the outbound poll request.
// Implemented by transport.Client (production) and testutil.RecordingClient.
type Client interface {
	PostJSON(ctx context.Context, url string, body, out any) error
}

// Journal records processed signals and polls for diagnostics.
// Implemented by store.Store. Journal failures are logged, never fatal.
type Journal interface {
	RecordSignal(ctx context.Context, rec ir.SignalRecord) error
	RecordPoll(ctx context.Context, rec ir.PollRecord) error
}

// Engine aggregates activity signals and synchronizes them with the remote
// collaboration endpoint.
//
// Every entry point (bus handler, timeout expiry, scheduler tick, Stop) runs
// as one turn under mu, so the store, timeout registry and scheduler are
// only mutated by one goroutine at a time and their invariants hold at the
// end of every turn. The network call and the broadcast happen on a single
// poll worker goroutine fed by a FIFO queue; turns never block on the network.
//
// Thread-safety model:
//   - Start, Stop, Flush, Snapshot: safe from any goroutine
//   - bus handlers and timer callbacks: serialized through turn
//   - poll worker: exactly one per Start, owns all remote calls
type Engine struct {
	bus            bus.Bus
	client         Client
	endpoint       string
	clock          clock.Clock
	interval       time.Duration
	requestTimeout time.Duration
	seq            *Sequence
	ids            PollIDGenerator
	journal        Journal
	logger         *slog.Logger

	mu          sync.Mutex
	running     bool
	descriptors []ir.ActivityDescriptor
	subs        []bus.Subscription
	store       *activity.Store
	timeouts    *timeoutRegistry
	scheduler   *pollScheduler
	queue       *pollQueue
	workerDone  chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the wall clock driving timeouts and the poll cadence.
// Default: clock.Real.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.interval = d
	}
}

// WithRequestTimeout bounds each remote call. Zero means no engine-side bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.requestTimeout = d
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithJournal records signals and polls. Default: no journal.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithPollIDs sets the poll id generator. Default: UUIDv7Generator.
func WithPollIDs(g PollIDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithSequence sets the logical clock stamping polls and signals.
func WithSequence(s *Sequence) Option {
	return func(e *Engine) {
		e.seq = s
	}
}

// New creates a stopped Engine posting to serviceURL + EndpointPath.
func New(b bus.Bus, client Client, serviceURL string, opts ...Option) (*Engine, error) {
	if b == nil {
		return nil, fmt.Errorf("bus is required")
	}
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if strings.TrimSpace(serviceURL) == "" {
		return nil, fmt.Errorf("service URL is required")
	}

	e := &Engine{
		bus:      b,
		client:   client,
		endpoint: strings.TrimRight(serviceURL, "/") + EndpointPath,
		clock:    clock.Real{},
		interval: DefaultPollInterval,
		seq:      NewSequence(),
		ids:      UUIDv7Generator{},
		logger:   slog.Default(),
		store:    activity.New(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", e.interval)
	}

	e.timeouts = newTimeoutRegistry(e.clock, e.turn, e.expire)
	e.scheduler = newPollScheduler(e.clock, e.interval, e.turn, func() { e.enqueuePoll(ir.PollCadence) })

	return e, nil
}

// Start subscribes one bus handler per descriptor and starts the poll worker.
//
// Polling does not begin here: the first processed signal starts the cadence.
// Descriptors are copied; later mutation by the caller has no effect.
func (e *Engine) Start(descriptors ...ir.ActivityDescriptor) error {
	if err := ValidateDescriptors(descriptors); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return &RuntimeError{Code: ErrCodeAlreadyRunning, Message: "engine already started"}
	}

	e.descriptors = make([]ir.ActivityDescriptor, len(descriptors))
	copy(e.descriptors, descriptors)

	e.queue = newPollQueue()
	e.workerDone = make(chan struct{})
	go e.runWorker(e.queue, e.workerDone)

	e.running = true
	for _, d := range e.descriptors {
		e.subs = append(e.subs, e.bus.Subscribe(d.Name, func(payload any) {
			e.handleSignal(d, payload)
		}))
	}

	e.logger.Info("engine started",
		"descriptors", len(e.descriptors),
		"endpoint", e.endpoint,
		"interval", e.interval,
	)
	return nil
}

// Stop unsubscribes every handler, stops the cadence, cancels all timeouts,
// clears the store and sends the sign-off poll with an empty snapshot.
//
// Stop waits until the sign-off poll (and every poll queued before it) has
// been sent and broadcast, and returns the sign-off poll's error. Stopping a
// stopped engine is a no-op. If ctx ends first, Stop returns ctx.Err() and
// the worker finishes in the background.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}

	for _, sub := range e.subs {
		sub.Unsubscribe()
	}
	e.subs = nil
	e.scheduler.Stop()
	e.timeouts.CancelAll()
	e.store.Reset()

	signOff := e.enqueuePoll(ir.PollSignOff)
	e.queue.Close()
	e.running = false
	workerDone := e.workerDone
	e.mu.Unlock()

	e.logger.Info("engine stopping", "sign_off_poll", signOff.ID)

	select {
	case <-signOff.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-workerDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	e.logger.Info("engine stopped")
	return signOff.err
}

// Flush waits until every poll queued before the call has been sent and
// broadcast.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return &RuntimeError{Code: ErrCodeNotRunning, Message: "engine is not running"}
	}
	barrier := newBarrier()
	e.queue.Enqueue(barrier)
	e.mu.Unlock()

	select {
	case <-barrier.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current poll body.
func (e *Engine) Snapshot() []ir.ElementSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Snapshot()
}

// Running reports whether the engine is started.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Polling reports whether the poll cadence is active.
func (e *Engine) Polling() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scheduler.Running()
}

// PendingTimeouts returns the number of armed activity timeouts.
func (e *Engine) PendingTimeouts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeouts.Len()
}

// Endpoint returns the full poll URL.
func (e *Engine) Endpoint() string {
	return e.endpoint
}

// Descriptors returns the started descriptors in declaration order.
func (e *Engine) Descriptors() []ir.ActivityDescriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ir.ActivityDescriptor, len(e.descriptors))
	copy(out, e.descriptors)
	return out
}

// turn runs f under the engine lock if the engine is running.
// Timer callbacks and bus handlers enter through here.
func (e *Engine) turn(f func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	f()
}

// ValidateDescriptors rejects descriptors the router cannot dispatch.
func ValidateDescriptors(descriptors []ir.ActivityDescriptor) error {
	for i, d := range descriptors {
		if d.Name == "" {
			return NewInvalidDescriptorError("", fmt.Sprintf("descriptor %d: name is required", i))
		}
		if d.ElementKey == "" {
			return NewInvalidDescriptorError(d.Name, "element key is required")
		}
		if d.Type.IsZero() {
			return NewInvalidDescriptorError(d.Name, "activity type is required")
		}
		if d.Type.IsTransitions() {
			for j, t := range d.Type.TransitionList() {
				if t.To == "" {
					return NewInvalidDescriptorError(d.Name, fmt.Sprintf("transition %d: to is required", j))
				}
			}
		}
		if d.Timeout < 0 {
			return NewInvalidDescriptorError(d.Name, "timeout must not be negative")
		}
	}
	return nil
}
