// Package store provides the SQLite journal of routed signals and polls.
//
// The journal is append-only and diagnostic: the engine writes to it but
// never reads it back, so activity state does not survive a restart.
//
//   - signals: one row per routed signal, timeout expiry or rejected payload
//   - polls: one row per outbound snapshot with its outcome
//
// Both tables share the engine's logical clock in seq, so Timeline can merge
// them into a single ordered trace.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
