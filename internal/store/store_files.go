package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// UpsertFile records a scanned file. New files start UNPROBED. A known file
// whose size or mtime moved is reset to UNPROBED unless it was manually
// marked valid. changed reports a new or modified file.
func (s *Store) UpsertFile(ctx context.Context, info FileInfo) (*MediaFile, bool, error) {
	path := strings.TrimSpace(info.Path)
	if path == "" {
		return nil, false, errors.New("upsert file: empty path")
	}
	var (
		file    *MediaFile
		changed bool
	)
	err := s.withTx(ctx, "upsert file", func(tx *sql.Tx) error {
		now := formatTime(s.now())
		modified := formatTime(info.ModifiedAt)

		existing, err := scanFile(tx.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM media_files WHERE path = ?`, path))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx,
				`INSERT INTO media_files (path, name, size_bytes, modified_at, discovered_at, status, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				path, filepath.Base(path), info.SizeBytes, modified, now, StatusUnprobed, now,
			)
			if err != nil {
				return fmt.Errorf("insert media file: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("media file id: %w", err)
			}
			changed = true
			file, err = scanFile(tx.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM media_files WHERE id = ?`, id))
			return err
		case err != nil:
			return fmt.Errorf("load media file: %w", err)
		}

		if existing.SizeBytes == info.SizeBytes && existing.ModifiedAt.Equal(info.ModifiedAt.UTC()) {
			file = existing
			return nil
		}
		changed = true
		if _, err := tx.ExecContext(ctx,
			`UPDATE media_files
             SET size_bytes = ?, modified_at = ?, updated_at = ?,
                 status = CASE WHEN manual_override = 1 THEN status ELSE ? END,
                 needs_review = CASE WHEN manual_override = 1 THEN needs_review ELSE 0 END,
                 lookup_deferred = CASE WHEN manual_override = 1 THEN lookup_deferred ELSE 0 END,
                 verdict = CASE WHEN manual_override = 1 THEN verdict ELSE NULL END,
                 review_reason = CASE WHEN manual_override = 1 THEN review_reason ELSE NULL END
             WHERE id = ?`,
			info.SizeBytes, modified, now, StatusUnprobed, existing.ID,
		); err != nil {
			return fmt.Errorf("refresh media file: %w", err)
		}
		file, err = scanFile(tx.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM media_files WHERE id = ?`, existing.ID))
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return file, changed, nil
}

// GetFile loads a media file by id.
func (s *Store) GetFile(ctx context.Context, id int64) (*MediaFile, error) {
	ctx = ensureContext(ctx)
	file, err := scanFile(s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM media_files WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.persistenceError("get file", err)
	}
	return file, nil
}

// GetFileByPath loads a media file by its absolute path.
func (s *Store) GetFileByPath(ctx context.Context, path string) (*MediaFile, error) {
	ctx = ensureContext(ctx)
	file, err := scanFile(s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM media_files WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.persistenceError("get file by path", err)
	}
	return file, nil
}

// ListFiles returns files ordered by id.
func (s *Store) ListFiles(ctx context.Context, filter ListFilter) ([]*MediaFile, error) {
	ctx = ensureContext(ctx)
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if filter.ReviewOnly {
		clauses = append(clauses, "needs_review = 1")
	}
	query := `SELECT ` + fileColumns + ` FROM media_files`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	return s.queryFiles(ctx, "list files", query, args...)
}

// Candidates returns files the pipeline should (re)drive: non-terminal files
// plus suspicious verdicts that were decided without a lookup because keys
// were exhausted.
// force returns every file that is not manually overridden.
func (s *Store) Candidates(ctx context.Context, force bool) ([]*MediaFile, error) {
	ctx = ensureContext(ctx)
	if force {
		return s.queryFiles(ctx, "list candidates",
			`SELECT `+fileColumns+` FROM media_files WHERE manual_override = 0 ORDER BY id`)
	}
	return s.queryFiles(ctx, "list candidates",
		`SELECT `+fileColumns+` FROM media_files
         WHERE manual_override = 0
           AND (status IN (?, ?, ?) OR (status IN (?, ?, ?) AND lookup_deferred = 1))
         ORDER BY id`,
		StatusUnprobed, StatusProbed, StatusAwaitingLookup,
		StatusNeedsReview, StatusTooShort, StatusCorrupted,
	)
}

func (s *Store) queryFiles(ctx context.Context, operation, query string, args ...any) ([]*MediaFile, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.persistenceError(operation, err)
	}
	defer rows.Close()

	var files []*MediaFile
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, s.persistenceError(operation, err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, s.persistenceError(operation, err)
	}
	return files, nil
}

// TransitionStatus applies an automated status change. Files that were
// manually marked valid are left untouched and ErrOverridden is returned.
func (s *Store) TransitionStatus(ctx context.Context, id int64, tr Transition) error {
	if _, ok := statusSet[tr.Status]; !ok {
		return fmt.Errorf("transition status: unknown status %q", tr.Status)
	}
	return s.withTx(ctx, "transition status", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE media_files
             SET status = ?, needs_review = ?, lookup_deferred = ?, verdict = ?, review_reason = ?, last_error = ?, updated_at = ?
             WHERE id = ? AND manual_override = 0`,
			tr.Status,
			boolToInt(tr.NeedsReview),
			boolToInt(tr.Deferred),
			nullableString(tr.Verdict),
			nullableString(tr.ReviewReason),
			nullableString(tr.LastError),
			formatTime(s.now()),
			id,
		)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		return s.requireUpdated(ctx, tx, res, id)
	})
}

// requireUpdated distinguishes a missing file from an overridden one when an
// override-guarded update touched no rows.
func (s *Store) requireUpdated(ctx context.Context, tx *sql.Tx, res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	var override int
	err = tx.QueryRowContext(ctx, `SELECT manual_override FROM media_files WHERE id = ?`, id).Scan(&override)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check override: %w", err)
	}
	return ErrOverridden
}

// MarkValid forces a file to VALID and pins it there against automated changes.
func (s *Store) MarkValid(ctx context.Context, id int64) error {
	return s.withTx(ctx, "mark valid", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE media_files
             SET status = ?, manual_override = 1, needs_review = 0, lookup_deferred = 0, review_reason = NULL, updated_at = ?
             WHERE id = ?`,
			StatusValid, formatTime(s.now()), id,
		)
		if err != nil {
			return fmt.Errorf("mark valid: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ResetFile clears any override and verdict so the next run re-probes the file.
func (s *Store) ResetFile(ctx context.Context, id int64) error {
	return s.withTx(ctx, "reset file", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE media_files
             SET status = ?, manual_override = 0, needs_review = 0, lookup_deferred = 0,
                 verdict = NULL, review_reason = NULL, last_error = NULL, updated_at = ?
             WHERE id = ?`,
			StatusUnprobed, formatTime(s.now()), id,
		)
		if err != nil {
			return fmt.Errorf("reset file: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// RemoveFile deletes a file and, through cascading keys, its streams and lookups.
func (s *Store) RemoveFile(ctx context.Context, id int64) error {
	return s.withTx(ctx, "remove file", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM media_files WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete media file: %w", err)
		}
		return nil
	})
}
