// Package store provides SQLite-backed state for the bridge.
//
// The store holds:
//   - State: the polling cursor (an opaque Trello date string)
//   - Deliveries: one row per action the bridge finished with, keyed by
//     content fingerprint, so overlapping polls never post twice
//   - Failures: actions that failed to narrate or post, with the location of
//     the saved payload
//
// Deliveries carry a seq from the bridge's logical clock. Listing queries
// order by seq, never by wall time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
