package feed

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDefault is the quiet period before a burst of new files is read.
const debounceDefault = 200 * time.Millisecond

// DirSource watches an inbox directory for *.json batch documents.
//
// Files already present at startup are read first. New files are collected
// until the directory has been quiet for the debounce period, then read in
// name order. Each file becomes one non-live batch.
type DirSource struct {
	Dir      string
	BoardIDs []string
	Debounce time.Duration
	Logger   *slog.Logger
}

// Run implements Source. A file that cannot be read or parsed is logged and
// skipped until its next write event.
func (s *DirSource) Run(ctx context.Context, fn func(Batch) error) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := s.Debounce
	if debounce <= 0 {
		debounce = debounceDefault
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(s.Dir); err != nil {
		return err
	}

	seen := make(map[string]bool)
	handle := func(paths []string) error {
		slices.Sort(paths)
		for _, path := range paths {
			if seen[path] {
				continue
			}

			data, err := os.ReadFile(path)
			if err != nil {
				logger.Error("read inbox file", "path", path, "error", err)
				continue
			}
			batch, err := ReadBatch(path, data, s.BoardIDs)
			if err != nil {
				logger.Error("parse inbox file", "path", path, "error", err)
				continue
			}
			seen[path] = true
			if err := fn(batch); err != nil {
				return err
			}
		}
		return nil
	}

	existing, err := scanInbox(s.Dir)
	if err != nil {
		return err
	}
	if err := handle(existing); err != nil {
		return err
	}

	ready := make(map[string]bool)
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-timer.C:
			batch := make([]string, 0, len(ready))
			for p := range ready {
				batch = append(batch, p)
			}
			ready = make(map[string]bool)
			if err := handle(batch); err != nil {
				return err
			}

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isBatchFile(event.Name) {
				continue
			}
			ready[event.Name] = true

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("inbox watcher error", "dir", s.Dir, "error", err)
		}
	}
}

func scanInbox(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if isBatchFile(path) {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// isBatchFile reports whether path is a finished .json document, not a
// partial write.
func isBatchFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}
