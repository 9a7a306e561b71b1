package engine

import (
	"time"

	"github.com/roach88/activitysync/internal/clock"
)

// DefaultPollInterval is the cadence between periodic polls.
const DefaultPollInterval = 5000 * time.Millisecond

// pollScheduler drives the poll cadence with a generation token.
//
// States: idle (no generation) and running. Restart starts a new generation:
// an immediate tick, then one tick per interval. A scheduled tick captures its
// generation and does nothing if a later Restart or Stop has moved on.
//
// All methods assume the engine lock is held.
type pollScheduler struct {
	clock    clock.Clock
	interval time.Duration
	turn     func(func())
	tick     func()

	gen     uint64
	running bool
	timer   clock.Timer
}

func newPollScheduler(c clock.Clock, interval time.Duration, turn func(func()), tick func()) *pollScheduler {
	return &pollScheduler{
		clock:    c,
		interval: interval,
		turn:     turn,
		tick:     tick,
	}
}

// Restart cancels the current generation and starts a new one.
func (s *pollScheduler) Restart() {
	s.cancelTimer()
	s.gen++
	s.running = true
	s.tick()
	s.schedule(s.gen)
}

func (s *pollScheduler) schedule(gen uint64) {
	s.timer = s.clock.AfterFunc(s.interval, func() {
		s.turn(func() {
			if !s.running || s.gen != gen {
				return
			}
			s.tick()
			s.schedule(gen)
		})
	})
}

// Stop cancels the current generation. No further ticks occur.
func (s *pollScheduler) Stop() {
	s.cancelTimer()
	s.gen++
	s.running = false
}

// Running reports whether a generation is active.
func (s *pollScheduler) Running() bool {
	return s.running
}

// Generation returns the current generation token.
func (s *pollScheduler) Generation() uint64 {
	return s.gen
}

func (s *pollScheduler) cancelTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
