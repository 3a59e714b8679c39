package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/ysamlan/trello-to-zulip/internal/narrate"
)

// Snapshot renders an interpretation result as golden file text:
//
//	kind: createCard
//	subject: Card Name
//
//	<body>
//
// Suppressed results replace the subject line with the suppression reason.
func Snapshot(res narrate.Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "kind: %s\n", res.Kind)
	if res.Suppressed {
		fmt.Fprintf(&b, "suppressed: %s\n", res.Reason)
		return []byte(b.String())
	}
	fmt.Fprintf(&b, "subject: %s\n\n%s\n", res.Subject, res.Body)
	return []byte(b.String())
}

// AssertGolden interprets a case and compares its snapshot against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, c Case) {
	t.Helper()

	res, err := narrate.Interpret(c.Action)
	if err != nil {
		t.Fatalf("interpret %s: %v", c.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(res))
}
