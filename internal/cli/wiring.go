package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ysamlan/trello-to-zulip/internal/artifact"
	"github.com/ysamlan/trello-to-zulip/internal/bridge"
	"github.com/ysamlan/trello-to-zulip/internal/config"
	"github.com/ysamlan/trello-to-zulip/internal/destination"
	"github.com/ysamlan/trello-to-zulip/internal/feed"
	"github.com/ysamlan/trello-to-zulip/internal/store"
)

// signalContext returns a context cancelled on SIGINT or SIGTERM, derived
// from the command's context when it has one (for testing).
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// openStore opens the state database named by the settings.
func openStore(cmd *cobra.Command, opts *RootOptions, s *config.Settings) (*store.Store, error) {
	slog.Debug("opening database", "path", s.DB)
	st, err := store.Open(s.DB)
	if err != nil {
		reportJSON(cmd, opts, ErrCodeStore, err)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// buildPoster returns the destinations for a run. With noPost, narrations
// are printed to out and nothing leaves the process.
func buildPoster(s *config.Settings, noPost bool, out io.Writer) (destination.Multi, error) {
	if noPost {
		return destination.Multi{destination.NewDryRun(out)}, nil
	}

	posters := destination.Multi{destination.NewZulip(s.ZulipSite, s.ZulipEmail, s.ZulipKey, s.ZulipStream)}
	if s.NATSURL != "" {
		nc, err := destination.NewNATS(s.NATSURL, s.NATSSubject, s.ZulipStream)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to connect to NATS", err)
		}
		posters = append(posters, nc)
	}
	return posters, nil
}

// buildRecorder picks where failed payloads are saved: S3 when a bucket is
// configured, else a local directory, else nowhere.
func buildRecorder(ctx context.Context, s *config.Settings) (artifact.Recorder, error) {
	switch {
	case s.FailureS3Bucket != "":
		rec, err := artifact.NewS3(ctx, s.FailureS3Bucket, s.FailureS3Prefix, s.FailureS3Region, s.FailureS3Endpoint)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to configure S3 artifacts", err)
		}
		return rec, nil
	case s.FailureDir != "":
		return artifact.Dir{Path: s.FailureDir}, nil
	default:
		return artifact.Discard{}, nil
	}
}

// bridgeSetup is everything a bridge command needs, with one cleanup.
type bridgeSetup struct {
	settings *config.Settings
	store    *store.Store
	poster   destination.Multi
	cursor   *bridge.Cursor
	runner   *bridge.Runner
}

func (b *bridgeSetup) Close() {
	if err := b.poster.Close(); err != nil {
		slog.Error("error closing destinations", "error", err)
	}
	closeStore(b.store)
}

// setupBridge loads settings, opens the store and builds the runner. The
// cursor is optional; pull sources that talk to Trello pass one.
func setupBridge(ctx context.Context, cmd *cobra.Command, opts *RootOptions, noPost bool, runIDs bridge.RunIDGenerator, withCursor func(*store.Store) (*bridge.Cursor, error), required ...string) (*bridgeSetup, error) {
	if !noPost {
		required = append(required, config.ZulipSettings...)
	}
	s, err := loadSettings(cmd, opts, required...)
	if err != nil {
		return nil, err
	}

	st, err := openStore(cmd, opts, s)
	if err != nil {
		return nil, err
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		out = cmd.ErrOrStderr()
	}
	poster, err := buildPoster(s, noPost, out)
	if err != nil {
		closeStore(st)
		return nil, err
	}
	setup := &bridgeSetup{settings: s, store: st, poster: poster}

	rec, err := buildRecorder(ctx, s)
	if err != nil {
		setup.Close()
		return nil, err
	}

	var cursor *bridge.Cursor
	if withCursor != nil {
		cursor, err = withCursor(st)
		if err != nil {
			setup.Close()
			return nil, WrapExitError(ExitCommandError, "failed to load cursor", err)
		}
		setup.cursor = cursor
	}

	setup.runner, err = bridge.New(ctx, bridge.Config{
		Poster:    poster,
		Store:     st,
		Cursor:    cursor,
		Artifacts: rec,
		RunIDs:    runIDs,
		DryRun:    noPost,
	})
	if err != nil {
		setup.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start bridge", err)
	}
	return setup, nil
}

// finishRun maps a run's outcome to output and an exit code.
func finishRun(cmd *cobra.Command, opts *RootOptions, r *bridge.Runner, err error) error {
	if err != nil && !errors.Is(err, context.Canceled) {
		reportJSON(cmd, opts, ErrCodeReadFailed, err)
		if errors.Is(err, feed.ErrUnknownFormat) {
			return WrapExitError(ExitFailure, "unknown input format", err)
		}
		return WrapExitError(ExitCommandError, "failed to read actions", err)
	}

	sum := r.Summary()
	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: sum, RunID: r.RunID()}
		if sum.Failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeActionsFailed,
				Message: fmt.Sprintf("%d of %d actions failed", sum.Failed, sum.Seen),
			}
		}
		if encErr := json.NewEncoder(cmd.OutOrStdout()).Encode(resp); encErr != nil {
			return encErr
		}
	}

	return exitOnFailures(sum)
}

func exitOnFailures(sum bridge.Summary) error {
	if sum.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d actions failed", sum.Failed, sum.Seen))
	}
	return nil
}
