// Package payload provides the value model for raw Trello action payloads.
//
// Trello delivers actions as free-form nested JSON. This package decodes that
// JSON into a sealed set of value types so that callers probe fields
// with explicit presence checks instead of type assertions on
// map[string]any.
//
// Key design constraints:
//   - JSON null decodes to Null{}, never to a Go nil. A key that is present
//     with a null value is distinguishable from a key that is absent.
//   - Integers decode to Int, everything else numeric to Float.
//   - Object key iteration uses SortedKeys for deterministic output.
//
// This package imports nothing internal.
package payload
