package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ysamlan/trello-to-zulip/internal/bridge"
	"github.com/ysamlan/trello-to-zulip/internal/feed"
)

var errQueueClosed = errors.New("queue closed")

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	NoPost   bool
	Debounce time.Duration

	// RunIDs allows overriding the run ID generator (for testing).
	RunIDs bridge.RunIDGenerator
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return newWatchCommand(&WatchOptions{RootOptions: rootOpts})
}

func newWatchCommand(opts *WatchOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <inbox-dir>",
		Short: "Post actions from files dropped into a directory",
		Long: `Watch a directory and post the actions of every *.json file placed in it.

Files already in the directory are read first, then new files as they
appear. Each file is read once per process; actions already posted by an
earlier run are skipped. Files never move the polling cursor.

Example:
  trello-to-zulip watch ./inbox
  trello-to-zulip watch --no-post ./inbox`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.NoPost, "no-post", "n", false, "print narrations instead of posting them")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 0, "quiet period before new files are read (default 200ms)")

	return cmd
}

func runWatch(opts *WatchOptions, dir string, cmd *cobra.Command) error {
	info, err := os.Stat(dir)
	if err != nil {
		reportJSON(cmd, opts.RootOptions, ErrCodeNotFound, err)
		return WrapExitError(ExitCommandError, "inbox directory", err)
	}
	if !info.IsDir() {
		return NewExitError(ExitCommandError, dir+" is not a directory")
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	setup, err := setupBridge(ctx, cmd, opts.RootOptions, opts.NoPost, opts.RunIDs, nil)
	if err != nil {
		return err
	}
	defer setup.Close()

	queue := bridge.NewQueue()
	src := &feed.DirSource{
		Dir:      dir,
		BoardIDs: setup.settings.TrelloBoardIDs,
		Debounce: opts.Debounce,
	}

	watchErr := make(chan error, 1)
	go func() {
		defer queue.Close()
		watchErr <- src.Run(ctx, func(b feed.Batch) error {
			if !queue.Enqueue(b) {
				return errQueueClosed
			}
			return nil
		})
	}()

	slog.Info("watching inbox", "dir", dir)
	runErr := setup.runner.Run(context.WithoutCancel(ctx), queue)

	if err := <-watchErr; err != nil && !errors.Is(err, errQueueClosed) {
		return WrapExitError(ExitCommandError, "inbox watcher failed", err)
	}
	return finishRun(cmd, opts.RootOptions, setup.runner, runErr)
}
