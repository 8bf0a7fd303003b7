package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mediaguard/internal/config"
	"mediaguard/internal/services"
)

// Store persists media files, their streams, lookup results and key state in SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const (
	sqliteBusyCode   = 5
	sqliteLockedCode = 6
	// A conflicting write is retried once; a second conflict fails the operation.
	txAttempts     = 2
	txRetryBackoff = 50 * time.Millisecond
)

var (
	// ErrNotFound reports a missing media file.
	ErrNotFound = fmt.Errorf("media file %w", services.ErrNotFound)
	// ErrOverridden reports an automated transition refused because the file
	// was manually marked valid.
	ErrOverridden = errors.New("media file is manually marked valid")
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		code := coder.Code() & 0xff
		if code == sqliteBusyCode || code == sqliteLockedCode {
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// withTx runs fn inside one transaction. A busy or locked conflict anywhere in
// the transaction rolls it back and replays fn once.
func (s *Store) withTx(ctx context.Context, operation string, fn func(*sql.Tx) error) error {
	ctx = ensureContext(ctx)
	var err error
	for attempt := 0; attempt < txAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !isSQLiteBusy(err) || attempt == txAttempts-1 {
			break
		}
		select {
		case <-time.After(txRetryBackoff):
		case <-ctx.Done():
			return s.persistenceError(operation, ctx.Err())
		}
	}
	return s.persistenceError(operation, err)
}

func (s *Store) runTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) persistenceError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrOverridden) {
		return err
	}
	return services.Wrap(services.ErrPersistenceFailure, "store", operation, "", err)
}

// Open initializes or connects to the state database configured in cfg.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the database file at dbPath, creating the schema on first use.
func OpenPath(dbPath string) (*Store, error) {
	params := url.Values{}
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "busy_timeout(5000)")
	params.Set("_txlock", "immediate")
	dsn := "file:" + dbPath + "?" + params.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	store := New(db, dbPath)
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an already opened database. The schema is assumed to exist.
func New(db *sql.DB, path string) *Store {
	return &Store{db: db, path: path, now: time.Now}
}

// SetClock overrides the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
