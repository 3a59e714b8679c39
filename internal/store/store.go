package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema versions, kept in PRAGMA user_version:
// 0 - tables from schema.sql only
// 1 - failures indexed by fingerprint
const currentSchemaVersion = 1

// timeLayout is how timestamps are stored. Fixed width, so text order is
// time order.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Store is the bridge's durable state: the polling cursor, the log of
// delivered actions, and the log of failures. Backed by SQLite in WAL mode.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the state database at path, creating it when missing, and
// brings its schema up to date. Opening an existing database again is safe.
//
// Connection settings:
//   - journal_mode=WAL so status commands can read while a run writes
//   - synchronous=NORMAL
//   - busy_timeout=5000 for a second process holding the write lock
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open state database %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to state database %s: %w", path, err)
	}

	// One writer; a single connection keeps the pragmas in force.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

// SetClock replaces the wall clock used for recorded timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

var connectionPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

func configure(db *sql.DB) error {
	for _, pragma := range connectionPragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("configure state database: %q: %w", pragma, err)
		}
	}
	return nil
}

// migrate creates missing tables, then applies each versioned step the
// database has not seen.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	steps := []struct {
		version int
		sql     string
	}{
		{1, `CREATE INDEX IF NOT EXISTS idx_failures_fingerprint ON failures(fingerprint)`},
	}
	for _, step := range steps {
		if version >= step.version {
			continue
		}
		if _, err := db.Exec(step.sql); err != nil {
			return fmt.Errorf("migrate to v%d: %w", step.version, err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

// pragma returns the current value of a connection pragma.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("read pragma %s: %w", name, err)
	}
	return value, nil
}
