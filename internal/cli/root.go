package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ysamlan/trello-to-zulip/internal/config"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // config file; environment takes priority

	// Environ replaces the process environment when loading settings
	// (for testing). Nil means os.Environ.
	Environ map[string]string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the trello-to-zulip CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trello-to-zulip",
		Short: "Narrate Trello activity into a Zulip stream",
		Long: `Read actions from Trello and post them to Zulip.

Each Trello action becomes one Markdown message, posted to the configured
stream under a topic named after the card (or board). Settings come from
the environment, or from a JSON/CUE file given with --config; the
environment takes priority.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			setupLogging(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose progress output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "file to load settings from (environment takes priority)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewNarrateCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewCursorCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// setupLogging installs a text handler on w as the default logger. Verbose
// output lowers the level to Debug.
func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// loadSettings resolves settings and checks the named ones are present.
// In JSON mode the failure is also reported on stdout.
func loadSettings(cmd *cobra.Command, opts *RootOptions, required ...string) (*config.Settings, error) {
	s, err := config.Load(config.Options{Path: opts.Config, Environ: opts.Environ})
	if err != nil {
		reportJSON(cmd, opts, ErrCodeConfig, err)
		return nil, WrapExitError(ExitCommandError, "failed to load settings", err)
	}
	if err := s.Require(required...); err != nil {
		reportJSON(cmd, opts, ErrCodeMissingSetting, err)
		return nil, WrapExitError(ExitCommandError, "config", err)
	}
	return s, nil
}

// reportJSON writes an error response when the output format is JSON.
// Text mode leaves reporting to the returned ExitError.
func reportJSON(cmd *cobra.Command, opts *RootOptions, code string, err error) {
	if opts.Format != "json" {
		return
	}
	_ = newFormatter(cmd, opts).Error(code, err.Error(), nil)
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "trello-to-zulip", Version)
			return nil
		},
	}
}
