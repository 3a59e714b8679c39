package harness

import (
	"fmt"

	"github.com/ysamlan/trello-to-zulip/internal/payload"
)

// Case is one narration fixture: a raw action and the exact narration it
// must produce. An empty Expected means the action must be suppressed.
type Case struct {
	Name     string
	Action   payload.Object
	Expected string

	// Path is the fixture file the case came from. For .json fixtures the
	// .actual file is written next to it on mismatch.
	Path string

	// Suite is set for cases loaded from a YAML suite.
	Suite string
}

// Outcome is the result of running one case.
type Outcome struct {
	Case   Case
	Actual string
	Pass   bool

	// Diff is a unified diff of expected against actual, empty on success.
	Diff string

	// Err is set when the action could not be interpreted at all.
	Err error
}

// Report collects outcomes in case order.
type Report struct {
	Outcomes []Outcome
	Passed   int
	Failed   int
}

// NewReport creates an empty report.
func NewReport() *Report {
	return &Report{Outcomes: []Outcome{}}
}

// Add appends an outcome and updates the counts.
func (r *Report) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

// OK reports whether every case passed.
func (r *Report) OK() bool {
	return r.Failed == 0
}

// Summary returns the closing line of a check run.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d passed, %d failed", r.Passed, r.Failed)
}
