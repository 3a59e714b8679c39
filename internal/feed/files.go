package feed

import (
	"context"
	"fmt"
	"io"
	"os"
)

// StdinPath is the path that reads a batch from standard input.
const StdinPath = "-"

// FileSource reads one batch per file, in argument order.
type FileSource struct {
	Paths    []string
	BoardIDs []string

	// Stdin is read for StdinPath. Defaults to os.Stdin.
	Stdin io.Reader
}

// Run implements Source.
func (s *FileSource) Run(ctx context.Context, fn func(Batch) error) error {
	for _, path := range s.Paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := s.read(path)
		if err != nil {
			return err
		}
		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileSource) read(path string) (Batch, error) {
	var (
		data []byte
		err  error
	)
	if path == StdinPath {
		in := s.Stdin
		if in == nil {
			in = os.Stdin
		}
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return Batch{}, fmt.Errorf("read %s: %w", path, err)
	}
	return ReadBatch(path, data, s.BoardIDs)
}

// ReadBatch extracts a non-live batch from a document read from origin.
func ReadBatch(origin string, data []byte, boardIDs []string) (Batch, error) {
	actions, err := ExtractJSON(data, boardIDs)
	if err != nil {
		return Batch{}, fmt.Errorf("%s: %w", origin, err)
	}
	return Batch{Origin: origin, Actions: actions}, nil
}
