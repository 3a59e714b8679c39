package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ysamlan/trello-to-zulip/internal/bridge"
	"github.com/ysamlan/trello-to-zulip/internal/config"
	"github.com/ysamlan/trello-to-zulip/internal/feed"
	"github.com/ysamlan/trello-to-zulip/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	All    bool
	NoPost bool
	Once   bool
	Sleep  int

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs bridge.RunIDGenerator

	// Now is the clock used to start a fresh cursor (for testing).
	Now func() time.Time
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [file...]",
		Short: "Poll Trello and post new actions to Zulip",
		Long: `Poll the organization's boards for new actions and post a narration of
each one to Zulip.

Without files, the command polls Trello every --sleep seconds, resuming
from the cursor saved in the database (or from now on first start). With
files, each one is read as a saved Trello export or action list; "-"
reads standard input. Files never move the cursor.

Example:
  trello-to-zulip run
  trello-to-zulip run --once --no-post --verbose
  trello-to-zulip run --no-post ./export.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridge(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.All, "all", "a", false, "read from the beginning of time instead of the saved cursor")
	cmd.Flags().BoolVarP(&opts.NoPost, "no-post", "n", false, "print narrations instead of posting them")
	cmd.Flags().BoolVarP(&opts.Once, "once", "o", false, "poll once and exit")
	cmd.Flags().IntVarP(&opts.Sleep, "sleep", "s", 60, "seconds between polls")

	return cmd
}

func runBridge(opts *RunOptions, files []string, cmd *cobra.Command) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	var (
		required   []string
		withCursor func(*store.Store) (*bridge.Cursor, error)
	)
	if len(files) == 0 {
		required = config.TrelloSettings
		now := opts.Now
		if now == nil {
			now = time.Now
		}
		withCursor = func(st *store.Store) (*bridge.Cursor, error) {
			return bridge.NewCursor(ctx, st, opts.All, now())
		}
	}

	setup, err := setupBridge(ctx, cmd, opts.RootOptions, opts.NoPost, opts.RunIDs, withCursor, required...)
	if err != nil {
		return err
	}
	defer setup.Close()

	s := setup.settings
	var src feed.Source
	if len(files) > 0 {
		src = &feed.FileSource{Paths: files, BoardIDs: s.TrelloBoardIDs, Stdin: cmd.InOrStdin()}
	} else {
		src = &feed.Poller{
			API:      s.TrelloAPI,
			Org:      s.TrelloOrg,
			Key:      s.TrelloKey,
			Token:    s.TrelloToken,
			BoardIDs: s.TrelloBoardIDs,
			Cursor:   setup.cursor,
			Interval: time.Duration(opts.Sleep) * time.Second,
			Once:     opts.Once,
		}
	}

	err = setup.runner.Run(ctx, src)
	return finishRun(cmd, opts.RootOptions, setup.runner, err)
}
