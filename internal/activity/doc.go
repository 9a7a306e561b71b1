// Package activity holds the in-memory activity state of one engine.
//
// The Store maps element -> group -> active type with insertion-ordered
// iteration, so snapshots serialize deterministically:
//   - elements appear in the order they first became active
//   - activities appear in the order their group was first set
//
// INVARIANTS (hold after every method returns):
//   - a group is present only while it maps to an active type
//   - an element is present only while it has at least one group
//
// The Store is not safe for concurrent use. The engine serializes access.
package activity
