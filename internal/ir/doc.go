// Package ir provides the shared types of activitysync.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Descriptors are immutable values once compiled
//   - All JSON tags use snake_case
//   - Journal ordering uses logical sequence numbers, wall-clock time is diagnostic only
package ir
