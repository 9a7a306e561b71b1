package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/activitysync/internal/testutil"
)

func newTestScheduler() (*pollScheduler, *testutil.FakeClock, *[]time.Duration) {
	c := testutil.NewFakeClock()
	var ticks []time.Duration
	s := newPollScheduler(c, 5*time.Second,
		func(f func()) { f() },
		func() { ticks = append(ticks, c.Elapsed()) },
	)
	return s, c, &ticks
}

func TestPollScheduler_IdleUntilRestart(t *testing.T) {
	s, c, ticks := newTestScheduler()

	c.Advance(time.Minute)
	assert.Empty(t, *ticks)
	assert.False(t, s.Running())
}

func TestPollScheduler_RestartTicksImmediatelyThenPeriodically(t *testing.T) {
	s, c, ticks := newTestScheduler()

	s.Restart()
	c.Advance(15 * time.Second)

	assert.Equal(t, []time.Duration{0, 5 * time.Second, 10 * time.Second, 15 * time.Second}, *ticks)
}

func TestPollScheduler_RestartResetsCountdown(t *testing.T) {
	s, c, ticks := newTestScheduler()

	s.Restart()
	c.Advance(3 * time.Second)
	s.Restart()
	c.Advance(5 * time.Second)

	assert.Equal(t, []time.Duration{0, 3 * time.Second, 8 * time.Second}, *ticks)
	assert.Equal(t, 1, c.Pending(), "superseded generation left no timer behind")
}

func TestPollScheduler_Stop(t *testing.T) {
	s, c, ticks := newTestScheduler()

	s.Restart()
	s.Stop()
	c.Advance(time.Minute)

	assert.Equal(t, []time.Duration{0}, *ticks)
	assert.False(t, s.Running())
	assert.Equal(t, 0, c.Pending())
}

func TestPollScheduler_StaleGenerationIgnored(t *testing.T) {
	s, c, ticks := newTestScheduler()
	s.Restart()

	// A callback already dispatched by the old timer must not tick.
	stale := s.Generation()
	s.Restart()
	s.schedule(stale)
	c.Advance(5 * time.Second)

	assert.Equal(t, []time.Duration{0, 0, 5 * time.Second}, *ticks)
}
