package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ysamlan/trello-to-zulip/internal/payload"
	"github.com/ysamlan/trello-to-zulip/internal/store"
	"github.com/ysamlan/trello-to-zulip/internal/testutil"
)

// syncBuffer is a bytes.Buffer safe for a command writing from another
// goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testEnv(t *testing.T) map[string]string {
	t.Helper()
	return map[string]string{"T2Z_DB": filepath.Join(t.TempDir(), "state.db")}
}

func rootOpts(env map[string]string) *RootOptions {
	return &RootOptions{Format: "text", Environ: env}
}

func execute(ctx context.Context, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func createCardAction(id, date string) payload.Object {
	return testutil.NewAction("createCard").
		ID(id).
		Date(date).
		Card(testutil.CardID, testutil.CardName).
		Board(testutil.BoardID, testutil.BoardName).
		Object()
}

func marshalDoc(t *testing.T, doc payload.Object) []byte {
	t.Helper()
	data, err := payload.Marshal(doc)
	require.NoError(t, err)
	return data
}

func actionsDoc(actions ...payload.Object) payload.Object {
	list := payload.Array{}
	for _, a := range actions {
		list = append(list, a)
	}
	return payload.Object{"actions": list}
}

func writeExport(t *testing.T, dir, name string, actions ...payload.Object) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, marshalDoc(t, actionsDoc(actions...)), 0o644))
	return path
}

// fakeZulip records posted messages and answers with status.
type fakeZulip struct {
	mu       sync.Mutex
	status   int
	messages []map[string]string
}

func (z *fakeZulip) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	z.messages = append(z.messages, map[string]string{
		"path":    r.URL.Path,
		"to":      r.PostForm.Get("to"),
		"subject": r.PostForm.Get("subject"),
		"content": r.PostForm.Get("content"),
	})
	if z.status != 0 && z.status != http.StatusOK {
		http.Error(w, `{"result":"error"}`, z.status)
		return
	}
	_, _ = w.Write([]byte(`{"result":"success"}`))
}

func (z *fakeZulip) posted() []map[string]string {
	z.mu.Lock()
	defer z.mu.Unlock()
	return append([]map[string]string(nil), z.messages...)
}

func TestNarrate_TextFromStdin(t *testing.T) {
	doc := actionsDoc(
		createCardAction("a1", "2013-06-14T17:53:18.146Z"),
		testutil.NewAction("moveCardToBoard").ID("a2").Date("2013-06-14T17:54:00.000Z").
			Card(testutil.CardID, testutil.CardName).Object(),
	)

	cmd := newNarrateCommand(&NarrateOptions{RootOptions: rootOpts(testEnv(t))})
	out, err := execute(context.Background(), cmd, string(marshalDoc(t, doc)))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 1, out)
	assert.True(t, strings.HasPrefix(lines[0], "[Card Name] Member Creator Full Name created card [Card Name]("), lines[0])
}

func TestNarrate_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeExport(t, dir, "export.json", createCardAction("a1", "2013-06-14T17:53:18.146Z"))

	opts := rootOpts(testEnv(t))
	opts.Format = "json"
	cmd := newNarrateCommand(&NarrateOptions{RootOptions: opts, RunIDs: testutil.NewFixedRunIDGenerator("run-1")})
	out, err := execute(context.Background(), cmd, "", path)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   NarrateResultJSON `json:"data"`
		RunID  string            `json:"run_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	require.Len(t, resp.Data.Narrations, 1)
	n := resp.Data.Narrations[0]
	assert.Equal(t, "a1", n.ActionID)
	assert.Equal(t, "createCard", n.Kind)
	assert.Equal(t, testutil.CardName, n.Subject)
	assert.Contains(t, n.Body, "created card")
	assert.Equal(t, 1, resp.Data.Summary.Posted)
}

func TestNarrate_UnknownFormat(t *testing.T) {
	cmd := newNarrateCommand(&NarrateOptions{RootOptions: rootOpts(testEnv(t))})
	_, err := execute(context.Background(), cmd, `{"cards": []}`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "unknown input format")
}

func TestNarrate_FailedActionExitsOne(t *testing.T) {
	broken := testutil.NewAction("createCard").ID("bad").Object()
	cmd := newNarrateCommand(&NarrateOptions{RootOptions: rootOpts(testEnv(t))})
	out, err := execute(context.Background(), cmd, string(marshalDoc(t, actionsDoc(broken, createCardAction("a1", "2013-06-14T17:53:18.146Z")))))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 2 actions failed")
	assert.Contains(t, out, "created card", "later actions still narrated")
}

func TestRun_FilesNoPost(t *testing.T) {
	env := testEnv(t)
	path := writeExport(t, t.TempDir(), "export.json", createCardAction("a1", "2013-06-14T17:53:18.146Z"))

	cmd := newRunCommand(&RunOptions{RootOptions: rootOpts(env)})
	out, err := execute(context.Background(), cmd, "", "--no-post", path)
	require.NoError(t, err)
	assert.Contains(t, out, "[Card Name] Member Creator Full Name created card")

	st, err := store.Open(env["T2Z_DB"])
	require.NoError(t, err)
	defer st.Close()
	_, ok, err := st.Cursor(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "files never move the cursor")
}

func TestRun_MissingZulipSettings(t *testing.T) {
	path := writeExport(t, t.TempDir(), "export.json", createCardAction("a1", "2013-06-14T17:53:18.146Z"))

	cmd := newRunCommand(&RunOptions{RootOptions: rootOpts(testEnv(t))})
	_, err := execute(context.Background(), cmd, "", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "setting not present in config: ZULIP_EMAIL")
}

func TestRun_PollingNeedsTrelloSettings(t *testing.T) {
	cmd := newRunCommand(&RunOptions{RootOptions: rootOpts(testEnv(t))})
	_, err := execute(context.Background(), cmd, "", "--no-post", "--once")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "TRELLO_KEY")
}

func TestRun_UnknownFormatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "odd.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"lists": []}`), 0o644))

	cmd := newRunCommand(&RunOptions{RootOptions: rootOpts(testEnv(t))})
	_, err := execute(context.Background(), cmd, "", "--no-post", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRun_MissingFile(t *testing.T) {
	cmd := newRunCommand(&RunOptions{RootOptions: rootOpts(testEnv(t))})
	_, err := execute(context.Background(), cmd, "", "--no-post", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// pollEnv starts fake Trello and Zulip servers and returns settings that
// point at them.
func pollEnv(t *testing.T, zulip *fakeZulip, actions ...payload.Object) (map[string]string, *[]string) {
	t.Helper()
	var (
		mu     sync.Mutex
		sinces []string
	)
	trello := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/organization/acme" || r.URL.Query().Get("key") != "k" {
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		sinces = append(sinces, r.URL.Query().Get("board_actions_since"))
		mu.Unlock()

		list := payload.Array{}
		for _, a := range actions {
			list = append(list, a)
		}
		doc := payload.Object{"boards": payload.Array{payload.Object{
			"id":      payload.String(testutil.BoardID),
			"name":    payload.String(testutil.BoardName),
			"actions": list,
		}}}
		data, err := payload.Marshal(doc)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(trello.Close)

	zsrv := httptest.NewServer(zulip)
	t.Cleanup(zsrv.Close)

	env := testEnv(t)
	env["TRELLO_KEY"] = "k"
	env["TRELLO_TOKEN"] = "tok"
	env["TRELLO_ORG"] = "acme"
	env["TRELLO_API"] = trello.URL
	env["ZULIP_EMAIL"] = "bot@example.com"
	env["ZULIP_KEY"] = "zk"
	env["ZULIP_STREAM"] = "trello"
	env["ZULIP_SITE"] = zsrv.URL
	return env, &sinces
}

var fixedNow = testutil.NewFixedClock(time.Date(2013, 6, 14, 17, 0, 0, 0, time.UTC)).Now

func TestRun_PollOncePostsAndResumes(t *testing.T) {
	zulip := &fakeZulip{}
	env, sinces := pollEnv(t, zulip, createCardAction("a1", "2013-06-14T17:53:18.146Z"))

	cmd := newRunCommand(&RunOptions{RootOptions: rootOpts(env), Now: fixedNow})
	_, err := execute(context.Background(), cmd, "", "--once")
	require.NoError(t, err)

	msgs := zulip.posted()
	require.Len(t, msgs, 1)
	assert.Equal(t, "/api/v1/messages", msgs[0]["path"])
	assert.Equal(t, "trello", msgs[0]["to"])
	assert.Equal(t, testutil.CardName, msgs[0]["subject"])
	assert.Contains(t, msgs[0]["content"], "Member Creator Full Name created card")
	assert.Equal(t, []string{"2013-06-14T17:00:00.000000Z"}, *sinces)

	// The second run resumes from the stored cursor and skips the action it
	// already posted.
	cmd = newRunCommand(&RunOptions{RootOptions: rootOpts(env), Now: fixedNow})
	_, err = execute(context.Background(), cmd, "", "--once")
	require.NoError(t, err)
	assert.Len(t, zulip.posted(), 1)
	assert.Equal(t, "2013-06-14T17:53:18.146Z", (*sinces)[1])
}

func TestRun_AllStartsFromEpoch(t *testing.T) {
	env, sinces := pollEnv(t, &fakeZulip{})

	cmd := newRunCommand(&RunOptions{RootOptions: rootOpts(env), Now: fixedNow})
	_, err := execute(context.Background(), cmd, "", "--once", "--all", "--no-post")
	require.NoError(t, err)
	assert.Equal(t, []string{"1970-01-01T00:00:00Z"}, *sinces)
}

func TestRun_ZulipErrorIsRecorded(t *testing.T) {
	zulip := &fakeZulip{status: http.StatusBadRequest}
	env, _ := pollEnv(t, zulip, createCardAction("a1", "2013-06-14T17:53:18.146Z"))
	failDir := filepath.Join(t.TempDir(), "failures")
	env["T2Z_FAILURE_DIR"] = failDir

	opts := rootOpts(env)
	opts.Format = "json"
	cmd := newRunCommand(&RunOptions{RootOptions: opts, Now: fixedNow, RunIDs: testutil.NewFixedRunIDGenerator("run-1")})
	out, err := execute(context.Background(), cmd, "", "--once")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeActionsFailed, resp.Error.Code)

	entries, err := os.ReadDir(failDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "failed payload saved")

	st, err := store.Open(env["T2Z_DB"])
	require.NoError(t, err)
	defer st.Close()
	failures, err := st.Failures(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, store.StagePost, failures[0].Stage)
	assert.Contains(t, failures[0].Error, "zulip returned 400")

	v, ok, err := st.Cursor(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2013-06-14T17:53:18.146Z", v, "failed actions still move the cursor")
}

func TestCheck_Fixtures(t *testing.T) {
	cmd := NewCheckCommand(rootOpts(nil))
	out, err := execute(context.Background(), cmd, "", "--no-write", filepath.Join("..", "harness", "testdata", "actions"))
	require.NoError(t, err)
	assert.Contains(t, out, "8 passed, 0 failed")
}

func TestCheck_Mismatch(t *testing.T) {
	dir := t.TempDir()
	data := marshalDoc(t, testutil.NewAction("createBoard").Board("b1", "Roadmap").Object())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "board.json"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "board.expected"), []byte("nope\n"), 0o644))

	cmd := NewCheckCommand(rootOpts(nil))
	out, err := execute(context.Background(), cmd, "", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "board\n")
	assert.Contains(t, out, "0 passed, 1 failed")

	actual, err := os.ReadFile(filepath.Join(dir, "board.actual"))
	require.NoError(t, err)
	assert.Contains(t, string(actual), "created board [Roadmap]")
}

func TestCheck_MissingDir(t *testing.T) {
	cmd := NewCheckCommand(rootOpts(nil))
	_, err := execute(context.Background(), cmd, "", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCursor_SetShowClear(t *testing.T) {
	env := testEnv(t)

	out, err := execute(context.Background(), NewCursorCommand(rootOpts(env)), "", "show")
	require.NoError(t, err)
	assert.Equal(t, "no cursor stored\n", out)

	_, err = execute(context.Background(), NewCursorCommand(rootOpts(env)), "", "set", "yesterday")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(context.Background(), NewCursorCommand(rootOpts(env)), "", "set", "2013-06-14T17:53:18.146Z")
	require.NoError(t, err)

	opts := rootOpts(env)
	opts.Format = "json"
	out, err = execute(context.Background(), NewCursorCommand(opts), "", "show")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":{"cursor":"2013-06-14T17:53:18.146Z","set":true}}`, out)

	_, err = execute(context.Background(), NewCursorCommand(rootOpts(env)), "", "clear")
	require.NoError(t, err)
	out, err = execute(context.Background(), NewCursorCommand(rootOpts(env)), "", "show")
	require.NoError(t, err)
	assert.Equal(t, "no cursor stored\n", out)
}

func TestStatus(t *testing.T) {
	env := testEnv(t)
	ctx := context.Background()

	st, err := store.Open(env["T2Z_DB"])
	require.NoError(t, err)
	require.NoError(t, st.SetCursor(ctx, "2013-06-14T17:53:18.146Z"))
	_, err = st.RecordDelivery(ctx, store.Delivery{
		Fingerprint: "fp1",
		Seq:         1,
		RunID:       "run-1",
		ActionID:    "a1",
		Kind:        "createCard",
		ActionDate:  "2013-06-14T17:53:18.146Z",
		Subject:     "Card Name",
	})
	require.NoError(t, err)
	_, err = st.RecordFailure(ctx, store.Failure{
		Fingerprint: "fp2",
		RunID:       "run-1",
		Stage:       store.StageInterpret,
		Kind:        "createCard",
		Error:       "createCard: missing field data.card",
		Artifact:    "/tmp/failures/fp2.json",
	})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(ctx, NewStatusCommand(rootOpts(env)), "")
	require.NoError(t, err)
	assert.Contains(t, out, "Cursor: 2013-06-14T17:53:18.146Z\n")
	assert.Contains(t, out, "Recent deliveries (1):")
	assert.Contains(t, out, "Card Name")
	assert.Contains(t, out, "Failures (1):")
	assert.Contains(t, out, "createCard: missing field data.card")
	assert.Contains(t, out, "payload: /tmp/failures/fp2.json")

	opts := rootOpts(env)
	opts.Format = "json"
	out, err = execute(ctx, NewStatusCommand(opts), "", "--run", "other")
	require.NoError(t, err)

	var resp struct {
		Data StatusJSON `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Deliveries, 1)
	assert.Equal(t, "a1", resp.Data.Deliveries[0].ActionID)
	assert.Empty(t, resp.Data.Failures)
}

func TestServe_WebhookNoPost(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	cmd := newServeCommand(&ServeOptions{
		RootOptions: rootOpts(testEnv(t)),
		Ready:       func(addr string) { addrCh <- addr },
	})
	out := &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--no-post", "--addr", "127.0.0.1:0"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	var addr string
	select {
	case addr = <-addrCh:
	case err := <-done:
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Head("http://" + addr + "/trello")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := marshalDoc(t, payload.Object{
		"action": createCardAction("a1", "2013-06-14T17:53:18.146Z"),
		"model":  payload.Object{"id": payload.String(testutil.BoardID)},
	})
	resp, err = http.Post("http://"+addr+"/trello", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post("http://"+addr+"/trello", "application/json", strings.NewReader(`{"model":{}}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop")
	}
	assert.Contains(t, out.String(), "[Card Name] Member Creator Full Name created card")
}

func TestWatch_ReadsExistingAndNewFiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inbox := t.TempDir()
	writeExport(t, inbox, "001.json", createCardAction("a1", "2013-06-14T17:53:18.146Z"))

	cmd := newWatchCommand(&WatchOptions{RootOptions: rootOpts(testEnv(t))})
	out := &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--no-post", "--debounce", "20ms", inbox})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "created card")
	}, 5*time.Second, 20*time.Millisecond)

	comment := testutil.NewAction("commentCard").ID("a2").Date("2013-06-14T18:00:00.000Z").
		Card(testutil.CardID, testutil.CardName).
		Data("text", payload.String("Looks good")).
		Object()
	writeExport(t, inbox, "002.json", comment)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "commented on card")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatch_MissingDir(t *testing.T) {
	cmd := newWatchCommand(&WatchOptions{RootOptions: rootOpts(testEnv(t))})
	_, err := execute(context.Background(), cmd, "", "--no-post", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
