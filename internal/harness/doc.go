// Package harness checks narrations against fixtures.
//
// # Fixture Format
//
// A fixture directory holds pairs of files:
//
//	card_created.json      raw Trello action
//	card_created.expected  exact narration (absent = must be suppressed)
//
// and, optionally, YAML suites with inline cases:
//
//	name: cards
//	cases:
//	  - name: create
//	    action: { type: createCard, data: { card: { id: c1, name: Card } } }
//	    expected: "<unknown> created card [Card](https://trello.com/c/c1)"
//
// # Reports
//
// Run narrates every case and collects a Report. Failing cases carry a
// unified diff; WriteActuals saves the actual narration of every failing
// .json fixture as name.actual. Report.Print ends with "N passed, M failed".
//
// # Golden Files
//
// AssertGolden is for package tests: it snapshots the full interpretation
// result (kind, subject, body) under testdata/golden and compares with
// goldie.
package harness
