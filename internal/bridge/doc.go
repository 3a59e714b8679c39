// Package bridge drives actions from a feed to a destination.
//
// ARCHITECTURE:
//
// Single-Writer Loop:
// One goroutine handles every action, in batch order. Pull sources
// (files, the Trello poller) call the Runner directly; push sources (the
// webhook receiver, the inbox watcher) enqueue batches into a Queue that the
// Runner drains.
//
// Action Flow:
//  1. Fingerprint the raw payload (Trello id, or canonical JSON hash)
//  2. Skip fingerprints already in the delivery log
//  3. Interpret: narration + subject, or a deliberate suppression
//  4. Post to the destination
//  5. Record the delivery with the next seq from the logical clock
//  6. Advance the cursor to the action's date (live batches only)
//
// FAILURE ISOLATION:
//
// A failure at any step is logged with the action id and kind, counted, and
// recorded in the store with the payload saved as an artifact. The next
// action is processed as usual. Only batch-level errors (an unreadable
// file, an unknown document shape) stop a run.
package bridge
