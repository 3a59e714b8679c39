package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ysamlan/trello-to-zulip/internal/store"
)

// CursorJSON is the JSON payload of the cursor commands.
type CursorJSON struct {
	Cursor string `json:"cursor"`
	Set    bool   `json:"set"`
}

// NewCursorCommand creates the cursor command and its subcommands.
func NewCursorCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cursor",
		Short: "Show or change the polling cursor",
		Long: `The cursor is the date of the newest Trello action the poller has seen.
The next poll asks Trello for actions since that date.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Print the stored cursor",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(ctx context.Context, st *store.Store) error {
				v, ok, err := st.Cursor(ctx)
				if err != nil {
					return err
				}
				return printCursor(cmd, rootOpts, v, ok)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <date>",
		Short: "Replace the stored cursor",
		Long: `Replace the stored cursor with an RFC 3339 date, for example
2013-06-14T17:53:18.146Z. The next poll starts from that date.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := time.Parse(time.RFC3339Nano, args[0]); err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("invalid cursor %q", args[0]), err)
			}
			return withStore(cmd, rootOpts, func(ctx context.Context, st *store.Store) error {
				if err := st.SetCursor(ctx, args[0]); err != nil {
					return err
				}
				return printCursor(cmd, rootOpts, args[0], true)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "clear",
		Short:         "Forget the stored cursor",
		Long:          `Forget the stored cursor. The next poll starts from the current time.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(ctx context.Context, st *store.Store) error {
				if err := st.ClearCursor(ctx); err != nil {
					return err
				}
				return printCursor(cmd, rootOpts, "", false)
			})
		},
	})

	return cmd
}

// withStore opens the database for a short command. Errors from fn are
// reported as store errors.
func withStore(cmd *cobra.Command, opts *RootOptions, fn func(context.Context, *store.Store) error) error {
	s, err := loadSettings(cmd, opts)
	if err != nil {
		return err
	}
	st, err := openStore(cmd, opts, s)
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := fn(ctx, st); err != nil {
		reportJSON(cmd, opts, ErrCodeStore, err)
		return WrapExitError(ExitCommandError, "database", err)
	}
	return nil
}

func printCursor(cmd *cobra.Command, opts *RootOptions, v string, ok bool) error {
	if opts.Format == "json" {
		return newFormatter(cmd, opts).Success(CursorJSON{Cursor: v, Set: ok})
	}
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "no cursor stored")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), v)
	return nil
}
