package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/ysamlan/trello-to-zulip/internal/harness"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	NoWrite bool
}

// CheckCaseJSON is one fixture outcome in JSON output.
type CheckCaseJSON struct {
	Name  string `json:"name"`
	Pass  bool   `json:"pass"`
	Diff  string `json:"diff,omitempty"`
	Error string `json:"error,omitempty"`
}

// CheckResultJSON is the JSON payload of the check command.
type CheckResultJSON struct {
	Passed int             `json:"passed"`
	Failed int             `json:"failed"`
	Cases  []CheckCaseJSON `json:"cases"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <fixtures-dir>",
		Short: "Check narrations against expected fixtures",
		Long: `Narrate every fixture in a directory and compare with the expected text.

A fixture is NAME.json holding one action, with the expected narration in
NAME.expected. A fixture without NAME.expected must produce no narration.
YAML suites (*.yaml) group several cases in one file.

For each mismatch the unified diff is printed and the actual narration is
written to NAME.actual next to the fixture.

Example:
  trello-to-zulip check ./testdata/actions
  trello-to-zulip check --no-write --format json ./testdata/actions`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.NoWrite, "no-write", false, "do not write .actual files")

	return cmd
}

func runCheck(opts *CheckOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", dir)
		}
		code := ErrCodeReadFailed
		if errors.Is(err, fs.ErrNotExist) {
			code = ErrCodeNotFound
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "fixtures directory", err)
	}

	cases, err := harness.LoadDir(dir)
	if err != nil {
		_ = formatter.Error(ErrCodeReadFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load fixtures", err)
	}

	report := harness.Run(cases)

	if !opts.NoWrite {
		if err := harness.WriteActuals(report); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to write actuals", err)
		}
	}

	if opts.Format == "json" {
		result := CheckResultJSON{Passed: report.Passed, Failed: report.Failed, Cases: []CheckCaseJSON{}}
		for _, o := range report.Outcomes {
			c := CheckCaseJSON{Name: o.Case.Name, Pass: o.Pass, Diff: o.Diff}
			if o.Err != nil {
				c.Error = o.Err.Error()
			}
			result.Cases = append(result.Cases, c)
		}
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		report.Print(cmd.OutOrStdout())
	}

	if !report.OK() {
		return NewExitError(ExitFailure, "fixtures did not match")
	}
	return nil
}
