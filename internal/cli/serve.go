package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/ysamlan/trello-to-zulip/internal/bridge"
	"github.com/ysamlan/trello-to-zulip/internal/feed"
)

// shutdownTimeout bounds how long in-flight webhook requests may take once
// the server is stopping.
const shutdownTimeout = 10 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr   string
	NoPost bool

	// RunIDs allows overriding the run ID generator (for testing).
	RunIDs bridge.RunIDGenerator

	// Ready is called with the listening address once the server accepts
	// connections (for testing).
	Ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive Trello webhooks and post them to Zulip",
		Long: `Listen for Trello webhook callbacks and post a narration of each action.

Trello checks the callback URL with HEAD /trello before it creates a
webhook, then POSTs each action to /trello. GET /health reports liveness.
Callbacks are queued and posted in arrival order; an action Trello
retries is posted once.

Example:
  trello-to-zulip serve --addr :8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default $T2Z_WEBHOOK_ADDR or :8080)")
	cmd.Flags().BoolVarP(&opts.NoPost, "no-post", "n", false, "print narrations instead of posting them")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	setup, err := setupBridge(ctx, cmd, opts.RootOptions, opts.NoPost, opts.RunIDs, nil)
	if err != nil {
		return err
	}
	defer setup.Close()

	addr := opts.Addr
	if addr == "" {
		addr = setup.settings.WebhookAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to listen on %s", addr), err)
	}

	queue := bridge.NewQueue()
	srv := &http.Server{
		Handler:           feed.NewWebhookHandler(feed.WebhookOptions{Enqueue: queue.Enqueue}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	// The runner outlives ctx so queued callbacks are posted before exit.
	runDone := make(chan error, 1)
	go func() {
		runDone <- setup.runner.Run(context.WithoutCancel(ctx), queue)
	}()

	slog.Info("webhook server listening", "addr", ln.Addr().String())
	if opts.Ready != nil {
		opts.Ready(ln.Addr().String())
	}

	var listenErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			listenErr = err
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("webhook server shutdown", "error", err)
	}
	queue.Close()
	runErr := <-runDone
	slog.Info("webhook server stopped")

	if listenErr != nil {
		return WrapExitError(ExitFailure, "webhook server failed", listenErr)
	}
	return finishRun(cmd, opts.RootOptions, setup.runner, runErr)
}
