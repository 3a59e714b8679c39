package store

import (
	"context"
	"fmt"
)

// Delivery records one action the bridge has finished with, whether it was
// posted or deliberately suppressed.
type Delivery struct {
	Fingerprint string
	Seq         int64
	RunID       string
	ActionID    string
	Kind        string
	ActionDate  string
	Subject     string
	Suppressed  bool
	DeliveredAt string
}

// RecordDelivery inserts a delivery.
// Uses ON CONFLICT(fingerprint) DO NOTHING for idempotency. Returns false
// when the fingerprint was already recorded.
func (s *Store) RecordDelivery(ctx context.Context, d Delivery) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO deliveries
		(fingerprint, seq, run_id, action_id, kind, action_date, subject, suppressed, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`,
		d.Fingerprint,
		d.Seq,
		d.RunID,
		d.ActionID,
		d.Kind,
		d.ActionDate,
		d.Subject,
		d.Suppressed,
		s.stamp(),
	)
	if err != nil {
		return false, fmt.Errorf("record delivery: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record delivery: %w", err)
	}
	return n == 1, nil
}

// Delivered reports whether an action with this fingerprint was delivered.
func (s *Store) Delivered(ctx context.Context, fingerprint string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deliveries WHERE fingerprint = ?`, fingerprint,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check delivery: %w", err)
	}
	return n > 0, nil
}

// MaxSeq returns the highest delivery sequence number, or 0 when empty.
// Used to resume the logical delivery clock across runs.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM deliveries`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq, nil
}

// RecentDeliveries returns up to limit deliveries, newest first.
func (s *Store) RecentDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fingerprint, seq, run_id, action_id, kind, action_date, subject, suppressed, delivered_at
		FROM deliveries
		ORDER BY seq DESC, fingerprint ASC COLLATE BINARY
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.Fingerprint, &d.Seq, &d.RunID, &d.ActionID, &d.Kind,
			&d.ActionDate, &d.Subject, &d.Suppressed, &d.DeliveredAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return out, nil
}
