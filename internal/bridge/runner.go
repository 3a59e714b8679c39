package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ysamlan/trello-to-zulip/internal/action"
	"github.com/ysamlan/trello-to-zulip/internal/artifact"
	"github.com/ysamlan/trello-to-zulip/internal/destination"
	"github.com/ysamlan/trello-to-zulip/internal/feed"
	"github.com/ysamlan/trello-to-zulip/internal/narrate"
	"github.com/ysamlan/trello-to-zulip/internal/payload"
	"github.com/ysamlan/trello-to-zulip/internal/store"
)

// Config holds the collaborators of a Runner. Only Poster is required.
type Config struct {
	Poster destination.Poster

	// Store enables delivery dedup and failure records. Optional.
	Store *store.Store

	// Cursor is advanced for every action seen in a live batch. Optional.
	Cursor *Cursor

	// Artifacts receives the payload of every failed action. Defaults to
	// artifact.Discard.
	Artifacts artifact.Recorder

	// RunIDs defaults to UUIDv7Generator.
	RunIDs RunIDGenerator

	// DryRun leaves the delivery log and the stored cursor untouched. The
	// cursor still moves in memory so polling does not repeat itself.
	DryRun bool

	Logger *slog.Logger
}

// Summary counts what a run did with the actions it saw.
type Summary struct {
	Batches    int `json:"batches"`
	Seen       int `json:"seen"`
	Posted     int `json:"posted"`
	Suppressed int `json:"suppressed"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`

	// SecondaryFailed counts posted actions that a secondary destination
	// rejected.
	SecondaryFailed int `json:"secondary_failed,omitempty"`
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("batches", s.Batches),
		slog.Int("seen", s.Seen),
		slog.Int("posted", s.Posted),
		slog.Int("suppressed", s.Suppressed),
		slog.Int("duplicates", s.Duplicates),
		slog.Int("failed", s.Failed),
		slog.Int("secondary_failed", s.SecondaryFailed),
	)
}

// Runner turns batches of raw actions into posted narrations.
//
// Each action is fingerprinted, checked against the delivery log,
// interpreted, and posted. A failure in any step is logged, counted and
// recorded with the payload saved as an artifact; processing continues with
// the next action.
//
// CRITICAL: Process must be called from exactly one goroutine. Push sources
// go through a Queue to guarantee this.
type Runner struct {
	poster    destination.Poster
	store     *store.Store
	cursor    *Cursor
	artifacts artifact.Recorder
	dryRun    bool
	logger    *slog.Logger

	runID   string
	clock   *Clock
	summary Summary
}

// New creates a Runner. The delivery clock resumes from the highest seq in
// the store.
func New(ctx context.Context, cfg Config) (*Runner, error) {
	if cfg.Poster == nil {
		return nil, errors.New("bridge: poster is required")
	}
	r := &Runner{
		poster:    cfg.Poster,
		store:     cfg.Store,
		cursor:    cfg.Cursor,
		artifacts: cfg.Artifacts,
		dryRun:    cfg.DryRun,
		logger:    cfg.Logger,
	}
	if r.artifacts == nil {
		r.artifacts = artifact.Discard{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	gen := cfg.RunIDs
	if gen == nil {
		gen = UUIDv7Generator{}
	}
	r.runID = gen.Generate()

	var start int64
	if r.store != nil {
		seq, err := r.store.MaxSeq(ctx)
		if err != nil {
			return nil, fmt.Errorf("resume clock: %w", err)
		}
		start = seq
	}
	r.clock = NewClockAt(start)
	return r, nil
}

// RunID returns the identifier stamped on this run's records.
func (r *Runner) RunID() string {
	return r.runID
}

// Summary returns the counts so far.
func (r *Runner) Summary() Summary {
	return r.summary
}

// Run drains src until it is exhausted or ctx is cancelled, then logs the
// summary. Batch-level errors from the source are returned.
func (r *Runner) Run(ctx context.Context, src feed.Source) error {
	r.logger.Info("bridge starting", "run_id", r.runID, "dry_run", r.dryRun)
	err := src.Run(ctx, func(b feed.Batch) error {
		return r.Process(ctx, b)
	})
	r.logger.Info("bridge finished", "run_id", r.runID, "summary", r.summary)
	return err
}

// Process handles every action in a batch, in order.
func (r *Runner) Process(ctx context.Context, b feed.Batch) error {
	r.summary.Batches++
	r.logger.Debug("batch", "origin", b.Origin, "actions", len(b.Actions), "live", b.Live)
	for _, raw := range b.Actions {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.handle(ctx, b, raw)
	}
	return nil
}

func (r *Runner) handle(ctx context.Context, b feed.Batch, raw payload.Object) {
	r.summary.Seen++
	defer r.advance(ctx, b, raw)

	id, _ := raw.String("id")
	kind, _ := raw.String("type")

	fp, err := payload.Fingerprint(raw)
	if err != nil {
		r.fail(ctx, raw, "", store.StageInterpret, kind, err)
		return
	}

	if r.store != nil && !r.dryRun {
		done, err := r.store.Delivered(ctx, fp)
		if err != nil {
			r.logger.Error("delivery lookup failed", "error", err, "action_id", id)
		} else if done {
			r.summary.Duplicates++
			r.logger.Debug("already delivered", "action_id", id, "fingerprint", fp)
			return
		}
	}

	res, err := narrate.Interpret(raw)
	if err != nil {
		r.fail(ctx, raw, fp, store.StageInterpret, kind, err)
		return
	}

	if res.Suppressed {
		r.summary.Suppressed++
		r.logger.Debug("suppressed", "action_id", id, "kind", kind, "reason", res.Reason)
		r.record(ctx, raw, fp, res)
		return
	}

	r.logger.Debug("narration",
		"action_id", id,
		"subject", res.Subject,
		"content", strings.ReplaceAll(res.Body, "\n", "\t"),
	)

	date, _ := raw.String("date")
	err = r.poster.Post(ctx, destination.Delivery{
		Message:  res.Message,
		ActionID: id,
		Kind:     res.Kind,
		Date:     date,
	})
	switch {
	case destination.IsSecondary(err):
		r.summary.SecondaryFailed++
		r.logger.Warn("secondary destination failed", "error", err, "action_id", id, "kind", kind)
	case err != nil:
		r.fail(ctx, raw, fp, store.StagePost, kind, err)
		return
	}

	r.summary.Posted++
	r.record(ctx, raw, fp, res)
}

// record appends the action to the delivery log.
func (r *Runner) record(ctx context.Context, raw payload.Object, fp string, res narrate.Result) {
	if r.store == nil || r.dryRun {
		return
	}
	id, _ := raw.String("id")
	date, _ := raw.String("date")
	_, err := r.store.RecordDelivery(ctx, store.Delivery{
		Fingerprint: fp,
		Seq:         r.clock.Next(),
		RunID:       r.runID,
		ActionID:    id,
		Kind:        string(res.Kind),
		ActionDate:  date,
		Subject:     res.Subject,
		Suppressed:  res.Suppressed,
	})
	if err != nil {
		r.logger.Error("record delivery failed", "error", err, "action_id", id)
	}
}

// advance moves the cursor past an action from a live batch. Actions are
// seen whether or not they were narrated. Dry runs never persist it.
func (r *Runner) advance(ctx context.Context, b feed.Batch, raw payload.Object) {
	if r.cursor == nil || !b.Live {
		return
	}
	date, ok := raw.String("date")
	if !ok || date == "" {
		return
	}
	if r.dryRun {
		r.cursor.Move(date)
		return
	}
	if err := r.cursor.Advance(ctx, date); err != nil {
		r.logger.Error("cursor advance failed", "error", err, "date", date)
	}
}

// fail logs a per-action failure with full context, saves the payload and
// records the failure. Processing continues with the next action.
func (r *Runner) fail(ctx context.Context, raw payload.Object, fp, stage, kind string, cause error) {
	r.summary.Failed++
	id, _ := raw.String("id")

	attrs := []any{
		"error", cause,
		"stage", stage,
		"action_id", id,
		"kind", kind,
		"fingerprint", fp,
	}
	var missing *action.MissingFieldError
	if errors.As(cause, &missing) {
		attrs = append(attrs, "field", missing.Field)
	}
	r.logger.Error("action failed", attrs...)

	name := fp
	if name == "" {
		name = "unfingerprinted-" + r.runID
	}

	var loc string
	data, err := payload.Marshal(raw)
	if err != nil {
		r.logger.Error("marshal failed payload", "error", err, "action_id", id)
	} else {
		loc, err = r.artifacts.Record(ctx, name, data)
		if err != nil {
			r.logger.Error("save failed payload", "error", err, "action_id", id)
		}
	}

	if r.store == nil {
		return
	}
	_, err = r.store.RecordFailure(ctx, store.Failure{
		Fingerprint: name,
		RunID:       r.runID,
		Stage:       stage,
		Kind:        kind,
		Error:       cause.Error(),
		Artifact:    loc,
	})
	if err != nil {
		r.logger.Error("record failure failed", "error", err, "action_id", id)
	}
}
