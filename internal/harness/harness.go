package harness

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/ysamlan/trello-to-zulip/internal/narrate"
)

// Narrate returns the narration for a case, or "" when it is suppressed.
func Narrate(c Case) (string, error) {
	res, err := narrate.Interpret(c.Action)
	if err != nil {
		return "", err
	}
	if res.Suppressed {
		return "", nil
	}
	return res.Body, nil
}

// RunCase narrates one case and compares it with the expectation.
func RunCase(c Case) Outcome {
	actual, err := Narrate(c)
	if err != nil {
		return Outcome{Case: c, Err: err}
	}
	if actual == c.Expected {
		return Outcome{Case: c, Actual: actual, Pass: true}
	}
	return Outcome{Case: c, Actual: actual, Diff: Diff(c.Expected, actual)}
}

// Run executes every case in order.
func Run(cases []Case) *Report {
	report := NewReport()
	for _, c := range cases {
		report.Add(RunCase(c))
	}
	return report
}

// Diff returns a unified diff of expected against actual.
func Diff(expected, actual string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
	if err != nil {
		return fmt.Sprintf("diff failed: %v", err)
	}
	return diff
}

// WriteActuals writes name.actual next to every failing .json fixture so
// the narration can be inspected or promoted to name.expected.
func WriteActuals(r *Report) error {
	for _, o := range r.Outcomes {
		if o.Pass || o.Err != nil || o.Case.Path == "" {
			continue
		}
		path := strings.TrimSuffix(o.Case.Path, ExtAction) + ExtActual
		if err := os.WriteFile(path, []byte(o.Actual), 0o644); err != nil {
			return fmt.Errorf("write actual: %w", err)
		}
	}
	return nil
}

// Print writes failing cases with their diffs, then the summary line.
func (r *Report) Print(w io.Writer) {
	for _, o := range r.Outcomes {
		if o.Pass {
			continue
		}
		fmt.Fprintln(w, o.Case.Name)
		body := o.Diff
		if o.Err != nil {
			body = o.Err.Error()
		}
		for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
			fmt.Fprintln(w, "   "+line)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, r.Summary())
}
