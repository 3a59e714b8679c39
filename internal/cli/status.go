package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ysamlan/trello-to-zulip/internal/store"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Limit int
	RunID string
}

// DeliveryJSON is one delivery in status output.
type DeliveryJSON struct {
	Seq         int64  `json:"seq"`
	ActionID    string `json:"action_id"`
	Kind        string `json:"kind"`
	ActionDate  string `json:"action_date"`
	Subject     string `json:"subject,omitempty"`
	Suppressed  bool   `json:"suppressed"`
	RunID       string `json:"run_id"`
	DeliveredAt string `json:"delivered_at"`
}

// FailureJSON is one failure in status output.
type FailureJSON struct {
	ID          int64  `json:"id"`
	Fingerprint string `json:"fingerprint"`
	RunID       string `json:"run_id"`
	Stage       string `json:"stage"`
	Kind        string `json:"kind"`
	Error       string `json:"error"`
	Artifact    string `json:"artifact,omitempty"`
	FailedAt    string `json:"failed_at"`
}

// StatusJSON is the JSON payload of the status command.
type StatusJSON struct {
	Cursor     string         `json:"cursor,omitempty"`
	Deliveries []DeliveryJSON `json:"deliveries"`
	Failures   []FailureJSON  `json:"failures"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the cursor, recent deliveries and failures",
		Long: `Show what the bridge has done: the stored polling cursor, the most
recent deliveries (posted or suppressed), and recorded failures.

Example:
  trello-to-zulip status --limit 20
  trello-to-zulip status --run 0190c1b2-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, rootOpts, func(ctx context.Context, st *store.Store) error {
				return runStatus(ctx, opts, st, cmd)
			})
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", 10, "number of recent deliveries to show")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "only show failures from this run")

	return cmd
}

func runStatus(ctx context.Context, opts *StatusOptions, st *store.Store, cmd *cobra.Command) error {
	cursor, _, err := st.Cursor(ctx)
	if err != nil {
		return err
	}
	deliveries, err := st.RecentDeliveries(ctx, opts.Limit)
	if err != nil {
		return err
	}
	failures, err := st.Failures(ctx, opts.RunID)
	if err != nil {
		return err
	}

	status := StatusJSON{Cursor: cursor, Deliveries: []DeliveryJSON{}, Failures: []FailureJSON{}}
	for _, d := range deliveries {
		status.Deliveries = append(status.Deliveries, DeliveryJSON{
			Seq:         d.Seq,
			ActionID:    d.ActionID,
			Kind:        d.Kind,
			ActionDate:  d.ActionDate,
			Subject:     d.Subject,
			Suppressed:  d.Suppressed,
			RunID:       d.RunID,
			DeliveredAt: d.DeliveredAt,
		})
	}
	for _, f := range failures {
		status.Failures = append(status.Failures, FailureJSON(f))
	}

	if opts.Format == "json" {
		return newFormatter(cmd, opts.RootOptions).Success(status)
	}
	return printStatus(cmd.OutOrStdout(), status)
}

func printStatus(w io.Writer, s StatusJSON) error {
	cursor := s.Cursor
	if cursor == "" {
		cursor = "(none)"
	}
	fmt.Fprintf(w, "Cursor: %s\n\n", cursor)

	fmt.Fprintf(w, "Recent deliveries (%d):\n", len(s.Deliveries))
	if len(s.Deliveries) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  SEQ\tDATE\tKIND\tSUBJECT")
		for _, d := range s.Deliveries {
			subject := d.Subject
			if d.Suppressed {
				subject = "(suppressed)"
			}
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\n", d.Seq, d.ActionDate, d.Kind, subject)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\nFailures (%d):\n", len(s.Failures))
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  [%s] %s %s: %s\n", f.Stage, f.FailedAt, f.Kind, f.Error)
		if f.Artifact != "" {
			fmt.Fprintf(w, "      payload: %s\n", f.Artifact)
		}
	}
	return nil
}
