package store

import (
	"path/filepath"
	"testing"
	"time"
)

// fixedNow is the clock used by test stores.
var fixedNow = time.Date(2013, 6, 14, 18, 0, 0, 0, time.UTC)

// createTestStore creates a new temporary store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	s.SetClock(func() time.Time { return fixedNow })
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestDelivery creates a delivery with minimal required fields.
func createTestDelivery(fingerprint string, seq int64) Delivery {
	return Delivery{
		Fingerprint: fingerprint,
		Seq:         seq,
		RunID:       "run-1",
		ActionID:    fingerprint,
		Kind:        "createCard",
		ActionDate:  "2013-06-14T17:53:18.146Z",
		Subject:     "Card Name",
	}
}
