package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ysamlan/trello-to-zulip/internal/payload"
)

// Fixture file extensions.
const (
	ExtAction   = ".json"
	ExtExpected = ".expected"
	ExtActual   = ".actual"
	ExtSuite    = ".yaml"
)

// Suite is a YAML file holding several cases inline.
//
//	name: cards
//	cases:
//	  - name: create
//	    action: {type: createCard, data: {card: {id: c1, name: Card}}}
//	    expected: "<unknown> created card [Card](https://trello.com/c/c1)"
type Suite struct {
	Name  string      `yaml:"name"`
	Cases []SuiteCase `yaml:"cases"`
}

// SuiteCase is one inline case. Omitting expected asserts suppression.
type SuiteCase struct {
	Name     string         `yaml:"name"`
	Action   map[string]any `yaml:"action"`
	Expected string         `yaml:"expected,omitempty"`
}

// LoadDir loads every fixture in dir: each name.json with its optional
// name.expected, then every *.yaml suite. Cases are sorted by name within
// each group.
func LoadDir(dir string) ([]Case, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read fixture dir: %w", err)
	}

	var jsonFiles, suiteFiles []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ExtAction:
			jsonFiles = append(jsonFiles, filepath.Join(dir, e.Name()))
		case ExtSuite, ".yml":
			suiteFiles = append(suiteFiles, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(jsonFiles)
	slices.Sort(suiteFiles)

	var cases []Case
	for _, path := range jsonFiles {
		c, err := LoadFixture(path)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	for _, path := range suiteFiles {
		suite, err := LoadSuite(path)
		if err != nil {
			return nil, err
		}
		cases = append(cases, suite...)
	}
	return cases, nil
}

// LoadFixture loads name.json and its sibling name.expected. A missing
// expected file means the action must be suppressed. One trailing newline
// is trimmed from the expected text.
func LoadFixture(path string) (Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Case{}, fmt.Errorf("read fixture: %w", err)
	}
	obj, err := payload.DecodeObject(data)
	if err != nil {
		return Case{}, fmt.Errorf("%s: %w", path, err)
	}

	base := strings.TrimSuffix(path, ExtAction)
	expected, err := os.ReadFile(base + ExtExpected)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Case{}, fmt.Errorf("read expected: %w", err)
	}

	return Case{
		Name:     filepath.Base(base),
		Action:   obj,
		Expected: strings.TrimSuffix(string(expected), "\n"),
		Path:     path,
	}, nil
}

// LoadSuite reads a YAML suite. Unknown fields are rejected so typos like
// "expect:" fail loudly.
func LoadSuite(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML %s: %w", path, err)
	}

	if err := validateSuite(&suite); err != nil {
		return nil, fmt.Errorf("invalid suite %s: %w", path, err)
	}

	cases := make([]Case, 0, len(suite.Cases))
	for i, sc := range suite.Cases {
		v, err := payload.FromGo(sc.Action)
		if err != nil {
			return nil, fmt.Errorf("%s: cases[%d].action: %w", path, i, err)
		}
		cases = append(cases, Case{
			Name:     suite.Name + "/" + sc.Name,
			Action:   v.(payload.Object),
			Expected: strings.TrimSuffix(sc.Expected, "\n"),
			Suite:    suite.Name,
		})
	}
	return cases, nil
}

func validateSuite(s *Suite) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}
	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("cases[%d]: duplicate name %q", i, c.Name)
		}
		seen[c.Name] = true
		if c.Action == nil {
			return fmt.Errorf("cases[%d]: action is required", i)
		}
	}
	return nil
}
