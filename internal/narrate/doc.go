// Package narrate turns Trello actions into chat narrations.
//
// Dispatch is a closed type switch over the action.Event variants with a
// generic fallback for kinds that have no variant:
//
//	bob performed somethingNew on [Card](https://trello.com/c/abc)
//
// Update kinds (updateCard, updateBoard, updateChecklist) are first run
// through a classifier that picks exactly one changed field from the "old"
// snapshot in a fixed priority order. Some kinds are always suppressed
// because Trello reports the same event twice; see Pairs.
//
// Everything here is pure. No I/O, no shared state.
package narrate
