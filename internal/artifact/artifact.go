// Package artifact saves the verbatim payload of actions that failed, so
// they can be inspected and replayed later with the narrate command.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Recorder stores one failed payload under its fingerprint and returns
// where it was written.
type Recorder interface {
	Record(ctx context.Context, fingerprint string, data []byte) (string, error)
}

// Name returns the object name for a fingerprint.
func Name(fingerprint string) string {
	return fingerprint + ".json"
}

// Dir writes artifacts into a local directory, creating it on first use.
type Dir struct {
	Path string
}

// Record implements Recorder. The file is written to a temporary name and
// renamed so readers never see a partial payload.
func (d Dir) Record(_ context.Context, fingerprint string, data []byte) (string, error) {
	if err := os.MkdirAll(d.Path, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	dest := filepath.Join(d.Path, Name(fingerprint))
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return dest, nil
}

// Discard drops artifacts.
type Discard struct{}

// Record implements Recorder.
func (Discard) Record(context.Context, string, []byte) (string, error) {
	return "", nil
}
