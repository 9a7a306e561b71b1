package engine

import (
	"time"

	"github.com/roach88/activitysync/internal/clock"
)

type timeoutKey struct {
	element string
	typ     string
}

// timeoutHandle is one re-armable countdown. gen changes on every arm, so a
// callback from a superseded timer recognises itself and does nothing.
type timeoutHandle struct {
	key   timeoutKey
	timer clock.Timer
	gen   uint64
}

// timeoutRegistry auto-deactivates (element, type) pairs.
//
// All methods assume the engine lock is held. Timer callbacks re-enter
// through turn, which takes the lock and checks the engine is running.
type timeoutRegistry struct {
	clock   clock.Clock
	turn    func(func())
	expire  func(element, typ string)
	handles map[timeoutKey]*timeoutHandle
	nextGen uint64
}

func newTimeoutRegistry(c clock.Clock, turn func(func()), expire func(element, typ string)) *timeoutRegistry {
	return &timeoutRegistry{
		clock:   c,
		turn:    turn,
		expire:  expire,
		handles: make(map[timeoutKey]*timeoutHandle),
	}
}

// Arm (re)starts the countdown for (element, typ). Last arm wins.
func (r *timeoutRegistry) Arm(element, typ string, d time.Duration) {
	key := timeoutKey{element: element, typ: typ}
	h, ok := r.handles[key]
	if ok {
		h.timer.Stop()
	} else {
		h = &timeoutHandle{key: key}
		r.handles[key] = h
	}

	r.nextGen++
	gen := r.nextGen
	h.gen = gen
	h.timer = r.clock.AfterFunc(d, func() {
		r.turn(func() { r.fire(h, gen) })
	})
}

func (r *timeoutRegistry) fire(h *timeoutHandle, gen uint64) {
	if h.gen != gen || r.handles[h.key] != h {
		return
	}
	delete(r.handles, h.key)
	r.expire(h.key.element, h.key.typ)
}

// Cancel deletes the handle for (element, typ) without firing it.
func (r *timeoutRegistry) Cancel(element, typ string) {
	key := timeoutKey{element: element, typ: typ}
	if h, ok := r.handles[key]; ok {
		h.timer.Stop()
		delete(r.handles, key)
	}
}

// Rename moves every handle of from to to. Handles already on to are
// cancelled, matching the store replacing to's activities.
func (r *timeoutRegistry) Rename(from, to string) {
	if from == to {
		return
	}
	for key, h := range r.handles {
		if key.element == to {
			h.timer.Stop()
			delete(r.handles, key)
		}
	}
	for key, h := range r.handles {
		if key.element != from {
			continue
		}
		delete(r.handles, key)
		h.key = timeoutKey{element: to, typ: key.typ}
		r.handles[h.key] = h
	}
}

// CancelAll stops every timer.
func (r *timeoutRegistry) CancelAll() {
	for key, h := range r.handles {
		h.timer.Stop()
		delete(r.handles, key)
	}
}

// Len returns the number of armed handles.
func (r *timeoutRegistry) Len() int {
	return len(r.handles)
}
