package bridge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ysamlan/trello-to-zulip/internal/artifact"
	"github.com/ysamlan/trello-to-zulip/internal/destination"
	"github.com/ysamlan/trello-to-zulip/internal/feed"
	"github.com/ysamlan/trello-to-zulip/internal/payload"
	"github.com/ysamlan/trello-to-zulip/internal/store"
	"github.com/ysamlan/trello-to-zulip/internal/testutil"
)

// recordingPoster keeps every delivery and fails those whose action id is
// in failIDs.
type recordingPoster struct {
	got     []destination.Delivery
	failIDs map[string]bool
}

func (p *recordingPoster) Post(_ context.Context, d destination.Delivery) error {
	if p.failIDs[d.ActionID] {
		return errors.New("zulip returned 500: boom")
	}
	p.got = append(p.got, d)
	return nil
}

type harness struct {
	store     *store.Store
	poster    *recordingPoster
	artifacts string
	cursor    *Cursor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "bridge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cur, err := NewCursor(context.Background(), st, false, time.Date(2013, 6, 14, 17, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	return &harness{
		store:     st,
		poster:    &recordingPoster{failIDs: map[string]bool{}},
		artifacts: filepath.Join(t.TempDir(), "failures"),
		cursor:    cur,
	}
}

func (h *harness) runner(t *testing.T, dryRun bool) *Runner {
	t.Helper()
	r, err := New(context.Background(), Config{
		Poster:    h.poster,
		Store:     h.store,
		Cursor:    h.cursor,
		Artifacts: artifact.Dir{Path: h.artifacts},
		RunIDs:    testutil.NewFixedRunIDGenerator("run-1"),
		DryRun:    dryRun,
	})
	require.NoError(t, err)
	return r
}

func createCard(id, date string) payload.Object {
	return testutil.NewAction("createCard").
		ID(id).
		Date(date).
		Card(testutil.CardID, testutil.CardName).
		Object()
}

func TestNew_RequiresPoster(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}

func TestRunner_PostsAndRecords(t *testing.T) {
	h := newHarness(t)
	r := h.runner(t, false)
	ctx := context.Background()

	b := feed.Batch{Origin: "test", Live: true, Actions: []payload.Object{
		createCard("a1", "2013-06-14T17:53:18.146Z"),
		createCard("a2", "2013-06-14T17:54:00.000Z"),
	}}
	require.NoError(t, r.Process(ctx, b))

	require.Len(t, h.poster.got, 2)
	d := h.poster.got[0]
	assert.Equal(t, "a1", d.ActionID)
	assert.Equal(t, testutil.CardName, d.Subject)
	assert.Contains(t, d.Body, testutil.CreatorName+" created card ["+testutil.CardName+"](https://trello.com/c/"+testutil.CardID+")")
	assert.Equal(t, "2013-06-14T17:53:18.146Z", d.Date)

	ok, err := h.store.Delivered(ctx, "a2")
	require.NoError(t, err)
	assert.True(t, ok)

	seq, err := h.store.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)

	assert.Equal(t, "2013-06-14T17:54:00.000Z", h.cursor.Value())
	stored, _, err := h.store.Cursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2013-06-14T17:54:00.000Z", stored)

	assert.Equal(t, Summary{Batches: 1, Seen: 2, Posted: 2}, r.Summary())
	assert.Equal(t, "run-1", r.RunID())
}

func TestRunner_SkipsDuplicates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	b := feed.Batch{Live: true, Actions: []payload.Object{createCard("a1", testutil.ActionDate)}}

	require.NoError(t, h.runner(t, false).Process(ctx, b))

	// A second run resumes the clock and skips the delivered action.
	r := h.runner(t, false)
	require.NoError(t, r.Process(ctx, b))

	assert.Len(t, h.poster.got, 1)
	assert.Equal(t, 1, r.Summary().Duplicates)
	assert.Equal(t, int64(1), r.clock.Current())
}

func TestRunner_SuppressedIsRecordedNotPosted(t *testing.T) {
	h := newHarness(t)
	r := h.runner(t, false)
	ctx := context.Background()

	paired := testutil.NewAction("moveCardToBoard").ID("m1").Object()
	require.NoError(t, r.Process(ctx, feed.Batch{Live: true, Actions: []payload.Object{paired}}))

	assert.Empty(t, h.poster.got)
	assert.Equal(t, 1, r.Summary().Suppressed)

	recent, err := h.store.RecentDeliveries(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.True(t, recent[0].Suppressed)
	assert.Equal(t, "moveCardToBoard", recent[0].Kind)
}

func TestRunner_FailureIsolation(t *testing.T) {
	h := newHarness(t)
	h.poster.failIDs["bad-post"] = true
	r := h.runner(t, false)
	ctx := context.Background()

	broken := testutil.NewAction("createCard").ID("bad-shape").Object() // no data.card
	b := feed.Batch{Live: true, Actions: []payload.Object{
		broken,
		createCard("bad-post", "2013-06-14T17:54:00.000Z"),
		createCard("good", "2013-06-14T17:55:00.000Z"),
	}}
	require.NoError(t, r.Process(ctx, b))

	require.Len(t, h.poster.got, 1)
	assert.Equal(t, "good", h.poster.got[0].ActionID)
	assert.Equal(t, Summary{Batches: 1, Seen: 3, Posted: 1, Failed: 2}, r.Summary())

	failures, err := h.store.Failures(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, failures, 2)
	assert.Equal(t, store.StageInterpret, failures[0].Stage)
	assert.Equal(t, "createCard: missing field data.card", failures[0].Error)
	assert.Equal(t, store.StagePost, failures[1].Stage)

	saved, err := os.ReadFile(failures[0].Artifact)
	require.NoError(t, err)
	doc, err := payload.DecodeObject(saved)
	require.NoError(t, err)
	assert.Equal(t, broken, doc)

	ok, err := h.store.Delivered(ctx, "bad-post")
	require.NoError(t, err)
	assert.False(t, ok, "failed posts are not recorded as delivered")

	// Every action was seen, so the cursor moved past all of them.
	assert.Equal(t, "2013-06-14T17:55:00.000Z", h.cursor.Value())
}

func TestRunner_FileBatchesDoNotAdvanceCursor(t *testing.T) {
	h := newHarness(t)
	r := h.runner(t, false)

	b := feed.Batch{Live: false, Actions: []payload.Object{createCard("a1", "2013-06-14T17:54:00.000Z")}}
	require.NoError(t, r.Process(context.Background(), b))

	assert.Equal(t, "2013-06-14T17:00:00.000000Z", h.cursor.Value())
}

func TestRunner_DryRun(t *testing.T) {
	h := newHarness(t)
	r := h.runner(t, true)
	ctx := context.Background()

	b := feed.Batch{Live: true, Actions: []payload.Object{createCard("a1", "2013-06-14T17:54:00.000Z")}}
	require.NoError(t, r.Process(ctx, b))

	assert.Len(t, h.poster.got, 1)
	ok, err := h.store.Delivered(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, ok)
	_, stored, err := h.store.Cursor(ctx)
	require.NoError(t, err)
	assert.False(t, stored)
}

func TestRunner_DryRunMovesCursorInMemory(t *testing.T) {
	h := newHarness(t)
	r := h.runner(t, true)
	ctx := context.Background()

	first := feed.Batch{Live: true, Actions: []payload.Object{createCard("a1", "2013-06-14T17:54:00.000Z")}}
	second := feed.Batch{Live: true, Actions: []payload.Object{createCard("a2", "2013-06-14T17:58:00.000Z")}}
	require.NoError(t, r.Process(ctx, first))
	since, err := h.cursor.Since(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2013-06-14T17:54:00.000Z", since, "the next poll starts after the first batch")

	require.NoError(t, r.Process(ctx, second))
	assert.Equal(t, "2013-06-14T17:58:00.000Z", h.cursor.Value())

	_, stored, err := h.store.Cursor(ctx)
	require.NoError(t, err)
	assert.False(t, stored, "dry runs never persist the cursor")
}

func TestRunner_SecondaryFailureStillRecordsDelivery(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	nats := &recordingPoster{failIDs: map[string]bool{"a1": true}}

	newRunner := func() *Runner {
		r, err := New(ctx, Config{
			Poster: destination.Multi{h.poster, nats},
			Store:  h.store,
			Cursor: h.cursor,
			RunIDs: testutil.NewFixedRunIDGenerator("run-1"),
		})
		require.NoError(t, err)
		return r
	}

	b := feed.Batch{Live: true, Actions: []payload.Object{createCard("a1", testutil.ActionDate)}}
	r := newRunner()
	require.NoError(t, r.Process(ctx, b))
	assert.Equal(t, Summary{Batches: 1, Seen: 1, Posted: 1, SecondaryFailed: 1}, r.Summary())

	ok, err := h.store.Delivered(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Redelivery of the same action is a duplicate, not a second post.
	r = newRunner()
	require.NoError(t, r.Process(ctx, b))
	assert.Len(t, h.poster.got, 1)
	assert.Equal(t, 1, r.Summary().Duplicates)

	failures, err := h.store.Failures(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	r := h.runner(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Process(ctx, feed.Batch{Actions: []payload.Object{createCard("a1", testutil.ActionDate)}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.poster.got)
}

func TestRunner_RunWithQueue(t *testing.T) {
	h := newHarness(t)
	r := h.runner(t, false)

	q := NewQueue()
	q.Enqueue(feed.Batch{Origin: "webhook", Live: true, Actions: []payload.Object{createCard("a1", testutil.ActionDate)}})
	q.Close()

	require.NoError(t, r.Run(context.Background(), q))
	assert.Len(t, h.poster.got, 1)
}

func TestCursor_Start(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2013, 6, 14, 17, 0, 0, 123456000, time.UTC)

	c, err := NewCursor(ctx, nil, false, now)
	require.NoError(t, err)
	assert.Equal(t, "2013-06-14T17:00:00.123456Z", c.Value())

	c, err = NewCursor(ctx, nil, true, now)
	require.NoError(t, err)
	assert.Equal(t, Epoch, c.Value())

	st, err := store.Open(filepath.Join(t.TempDir(), "cursor.db"))
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.SetCursor(ctx, "2013-06-01T00:00:00.000Z"))

	c, err = NewCursor(ctx, st, false, now)
	require.NoError(t, err)
	since, err := c.Since(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2013-06-01T00:00:00.000Z", since)

	c, err = NewCursor(ctx, st, true, now)
	require.NoError(t, err)
	assert.Equal(t, Epoch, c.Value(), "all overrides the stored cursor")
}
