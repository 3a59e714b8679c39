package store

import (
	"context"
	"fmt"
)

// Failure stages.
const (
	StageInterpret = "interpret"
	StagePost      = "post"
)

// Failure records an action that could not be narrated or posted.
type Failure struct {
	ID          int64
	Fingerprint string
	RunID       string
	Stage       string
	Kind        string
	Error       string

	// Artifact is where the payload was saved, if anywhere.
	Artifact string
	FailedAt string
}

// RecordFailure appends a failure and returns its row id.
func (s *Store) RecordFailure(ctx context.Context, f Failure) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO failures (fingerprint, run_id, stage, kind, error, artifact, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.Fingerprint, f.RunID, f.Stage, f.Kind, f.Error, f.Artifact, s.stamp())
	if err != nil {
		return 0, fmt.Errorf("record failure: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record failure: %w", err)
	}
	return id, nil
}

// Failures returns the failures recorded by a run, oldest first. An empty
// runID returns failures from every run.
func (s *Store) Failures(ctx context.Context, runID string) ([]Failure, error) {
	query := `
		SELECT id, fingerprint, run_id, stage, kind, error, artifact, failed_at
		FROM failures`
	args := []any{}
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var out []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.ID, &f.Fingerprint, &f.RunID, &f.Stage, &f.Kind,
			&f.Error, &f.Artifact, &f.FailedAt); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failures: %w", err)
	}
	return out, nil
}
