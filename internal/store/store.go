// Package store persists cached external records and their import state in SQLite.
package store

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/Monsterkot/diplom/internal/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is fixed-width UTC so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store manages the SQLite database holding external records and task status.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
	now  func() time.Time
}

// Option is a functional option for configuring the Store.
type Option func(*Store)

// WithClock replaces the time source used for every timestamp the store writes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// dataSourceName builds a file: URI for dbPath. The path is escaped so that
// characters such as '?' and '#' stay part of the file name.
func dataSourceName(dbPath string) string {
	escaped := (&url.URL{Path: dbPath}).EscapedPath()
	return "file:" + escaped + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

// Open opens (creating if needed) the database at dbPath and applies the schema.
func Open(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		closeErr := db.Close()
		return nil, stdErrors.Join(fmt.Errorf("failed to connect to store database: %w", err), closeErr)
	}

	s := &Store{
		db:   db,
		path: dbPath,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, schema := range AllSchemas {
		if err := s.CreateTable(schema); err != nil {
			closeErr := db.Close()
			return nil, stdErrors.Join(err, closeErr)
		}
	}

	slog.Debug("Store opened", "path", dbPath)
	return s, nil
}

// CreateTable creates a table using the provided schema
func (s *Store) CreateTable(schema string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) timestamp() string {
	return formatTime(s.now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, value.String)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp %q: %w", value.String, err)
	}
	return &t, nil
}

// write runs fn in a transaction under the write lock. A busy, locked or constraint
// failure is retried once before being reported as a PersistenceConflictError.
func (s *Store) write(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.runTx(ctx, fn)
	if err == nil || !isConflict(err) {
		return err
	}

	slog.Warn("Store write conflicted, retrying once", "op", op, "error", err)
	err = s.runTx(ctx, fn)
	if err != nil && isConflict(err) {
		return errors.NewPersistenceConflictError(op, err)
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isConflict(err error) bool {
	var sqliteErr *sqlite.Error
	if !stdErrors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CONSTRAINT:
		return true
	}
	return false
}
