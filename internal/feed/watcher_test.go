package feed

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBatchFile(t *testing.T) {
	assert.True(t, isBatchFile("/inbox/actions.json"))
	assert.False(t, isBatchFile("/inbox/actions.json.tmp"))
	assert.False(t, isBatchFile("/inbox/.actions.json"))
	assert.False(t, isBatchFile("/inbox/notes.txt"))
}

func TestDirSource_ExistingAndNewFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{"actions":[{"id":"b"}]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"actions":[{"id":"a"}]}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.txt"), []byte(`{}`), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	src := &DirSource{Dir: dir, Debounce: 10 * time.Millisecond}

	done := make(chan error, 1)
	go func() {
		done <- src.Run(ctx, func(b Batch) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, ids(b.Actions)...)
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, 2*time.Second, 5*time.Millisecond)

	// A malformed file is skipped without stopping the watcher.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"x":1}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.json"), []byte(`{"actions":[{"id":"c"}]}`), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, seen)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDirSource_RetriesHalfWrittenFile(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var logs lockedBuffer
	var mu sync.Mutex
	var seen []string
	src := &DirSource{
		Dir:      dir,
		Debounce: 10 * time.Millisecond,
		Logger:   slog.New(slog.NewTextHandler(&logs, nil)),
	}

	done := make(chan error, 1)
	go func() {
		done <- src.Run(ctx, func(b Batch) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, ids(b.Actions)...)
			return nil
		})
	}()

	path := filepath.Join(dir, "late.json")
	require.Eventually(t, func() bool {
		// Rewrite until the watcher is running and has rejected the partial file.
		_ = os.WriteFile(path, []byte(`{"actions":[{"id":`), 0o644)
		return strings.Contains(logs.String(), "late.json")
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`{"actions":[{"id":"late"}]}`), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"late"}, seen)
}

func TestDirSource_MissingDir(t *testing.T) {
	src := &DirSource{Dir: filepath.Join(t.TempDir(), "missing")}
	assert.Error(t, src.Run(context.Background(), func(Batch) error { return nil }))
}
