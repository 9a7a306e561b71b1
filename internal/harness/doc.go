// Package harness runs conformance scenarios against the sync engine.
//
// A scenario compiles a set of activity descriptors, drives a real engine
// with a fake clock and a recording client, and checks the polls and
// broadcasts it produced.
//
// # Scenario Format
//
//	name: focus_blur
//	description: "Focus then blur clears the activity"
//	cue: |
//	  activity: focus: {element: "id", type: "editing"}
//	  activity: blur:  {element: "id", type: "editing", active: false}
//	interval: 5s
//	responses:
//	  - body: [{element: doc, activities: [{user: ana, type: editing, timestamp: 2}]}]
//	  - error: "service unavailable"
//	steps:
//	  - publish: focus
//	    payload: {id: doc}
//	  - advance: 5s
//	  - publish: blur
//	    payload: {id: doc}
//	  - stop: true
//	assertions:
//	  - type: poll_count
//	    count: 4
//	  - type: last_poll_body
//	    body: []
//
// Descriptors come either inline (cue) or from a file or directory path
// (descriptors) relative to the scenario file. Responses are served in
// order; the last one repeats and the default is an empty list.
//
// # Assertion Types
//
//   - poll_count: number of polls sent
//   - poll_body: body of the poll at index
//   - last_poll_body: body of the most recent poll
//   - broadcast_count: number of broadcasts published
//   - broadcast_body: payload of the broadcast at index
//
// Bodies are compared as canonical JSON, so key order and number formatting
// in the YAML do not matter.
//
// # Deterministic Testing
//
// Each run uses a fresh in-memory journal, a fake clock starting at
// testutil.Epoch and sequential poll ids, and waits for the poll worker
// after every step. Identical scenarios produce identical traces, which
// RunWithGolden compares against testdata/golden.
package harness
