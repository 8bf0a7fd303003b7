package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion must change with every edit of schema.sql. There are no
// migrations: an old database is rejected and the operator rebuilds it with
// a fresh scan.
const schemaVersion = 1

// ErrSchemaMismatch reports a database written by another schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ensureSchema creates the tables of an empty database, or checks that an
// existing one carries schemaVersion.
func (s *Store) ensureSchema(ctx context.Context) error {
	version, err := s.storedSchemaVersion(ctx)
	if err != nil {
		return err
	}
	switch version {
	case 0:
		return s.runTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
				return fmt.Errorf("record schema version: %w", err)
			}
			return nil
		})
	case schemaVersion:
		return nil
	default:
		return fmt.Errorf("%w: %s has version %d, this build expects %d; move the file aside and rescan the library",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
}

// storedSchemaVersion returns 0 for a database without the version table.
func (s *Store) storedSchemaVersion(ctx context.Context) (int, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'`,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("inspect schema: %w", err)
	}
	var version int
	if err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
