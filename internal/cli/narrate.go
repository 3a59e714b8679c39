package cli

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ysamlan/trello-to-zulip/internal/bridge"
	"github.com/ysamlan/trello-to-zulip/internal/destination"
	"github.com/ysamlan/trello-to-zulip/internal/feed"
)

// NarrateOptions holds flags for the narrate command.
type NarrateOptions struct {
	*RootOptions

	// RunIDs allows overriding the run ID generator (for testing).
	RunIDs bridge.RunIDGenerator
}

// NarrationJSON is one narration in JSON output.
type NarrationJSON struct {
	ActionID string `json:"action_id"`
	Kind     string `json:"kind"`
	Date     string `json:"date,omitempty"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

// NarrateResultJSON is the JSON payload of the narrate command.
type NarrateResultJSON struct {
	Narrations []NarrationJSON `json:"narrations"`
	Summary    bridge.Summary  `json:"summary"`
}

// NewNarrateCommand creates the narrate command.
func NewNarrateCommand(rootOpts *RootOptions) *cobra.Command {
	return newNarrateCommand(&NarrateOptions{RootOptions: rootOpts})
}

func newNarrateCommand(opts *NarrateOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "narrate [file...]",
		Short: "Print narrations for saved actions without posting",
		Long: `Print the narration of every action in the given files.

Nothing is posted and no state is read or written. Without files, the
actions are read from standard input. Each file may be a board or
organization export, or a bare list of actions.

Example:
  trello-to-zulip narrate ./export.json
  curl ... | trello-to-zulip narrate --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNarrate(opts, args, cmd)
		},
	}

	return cmd
}

// collector keeps every delivery it is given.
type collector struct {
	mu         sync.Mutex
	narrations []NarrationJSON
}

func (c *collector) Post(_ context.Context, d destination.Delivery) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.narrations = append(c.narrations, NarrationJSON{
		ActionID: d.ActionID,
		Kind:     string(d.Kind),
		Date:     d.Date,
		Subject:  d.Subject,
		Body:     d.Body,
	})
	return nil
}

func runNarrate(opts *NarrateOptions, files []string, cmd *cobra.Command) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	s, err := loadSettings(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		files = []string{feed.StdinPath}
	}

	var (
		poster destination.Poster = destination.NewDryRun(cmd.OutOrStdout())
		coll   *collector
	)
	if opts.Format == "json" {
		coll = &collector{narrations: []NarrationJSON{}}
		poster = coll
	}

	runner, err := bridge.New(ctx, bridge.Config{
		Poster: poster,
		RunIDs: opts.RunIDs,
		DryRun: true,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start bridge", err)
	}

	src := &feed.FileSource{Paths: files, BoardIDs: s.TrelloBoardIDs, Stdin: cmd.InOrStdin()}
	runErr := runner.Run(ctx, src)

	if coll != nil && runErr == nil {
		if err := json.NewEncoder(cmd.OutOrStdout()).Encode(CLIResponse{
			Status: "ok",
			Data:   NarrateResultJSON{Narrations: coll.narrations, Summary: runner.Summary()},
			RunID:  runner.RunID(),
		}); err != nil {
			return err
		}
		return exitOnFailures(runner.Summary())
	}
	return finishRun(cmd, opts.RootOptions, runner, runErr)
}
