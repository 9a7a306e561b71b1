// Package engine implements the activitysync aggregator and poll synchronizer.
//
// ARCHITECTURE:
//
// Turns:
// Every entry point runs as one turn under the engine lock:
//   - a bus signal for a started descriptor
//   - a timeout expiry
//   - a scheduler tick
//   - Stop
//
// The store, the timeout registry and the scheduler are mutated only inside
// turns, so their invariants hold between turns.
//
// Signal Processing Flow:
// 1. Bus handler resolves the payload (element, rename target, activation)
// 2. Store / transitions / timeouts are updated
// 3. The scheduler restarts: a new generation, an immediate poll, then one
// poll per interval
// 4. Each poll snapshots the store inside the turn and is queued
// 5. The poll worker POSTs snapshots one at a time and broadcasts responses
// in request order on BroadcastEvent
//
// Polls never overlap. A slow response delays later polls instead of racing
// them, so subscribers always see responses in request order.
//
// Stop unsubscribes, stops the cadence, cancels timeouts and clears the store
// before computing the sign-off snapshot, so no local mutation can follow it.
//
// Journal ordering uses the logical Sequence, never wall-clock time.
package engine
