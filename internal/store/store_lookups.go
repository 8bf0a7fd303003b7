package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// UpsertLookup stores one provider's answer for a file, replacing any earlier
// answer from the same provider.
func (s *Store) UpsertLookup(ctx context.Context, rec LookupRecord) error {
	provider := strings.TrimSpace(rec.Provider)
	if provider == "" {
		return fmt.Errorf("upsert lookup: empty provider")
	}
	mediaType := rec.MediaType
	if mediaType == "" {
		mediaType = MediaUnknown
	}
	retrieved := rec.RetrievedAt
	if retrieved.IsZero() {
		retrieved = s.now()
	}
	var year any
	if rec.Year > 0 {
		year = rec.Year
	}
	return s.withTx(ctx, "upsert lookup", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO lookup_results (file_id, provider, provider_id, title, year, expected_duration_ms, imdb_id, tmdb_id, tvdb_id, media_type, season, episode, raw_payload, retrieved_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
             ON CONFLICT(file_id, provider) DO UPDATE SET
                 provider_id = excluded.provider_id,
                 title = excluded.title,
                 year = excluded.year,
                 expected_duration_ms = excluded.expected_duration_ms,
                 imdb_id = excluded.imdb_id,
                 tmdb_id = excluded.tmdb_id,
                 tvdb_id = excluded.tvdb_id,
                 media_type = excluded.media_type,
                 season = excluded.season,
                 episode = excluded.episode,
                 raw_payload = excluded.raw_payload,
                 retrieved_at = excluded.retrieved_at`,
			rec.FileID, provider, nullableString(rec.ProviderID), nullableString(rec.Title), year,
			nullableInt64(rec.ExpectedDurationMS), nullableString(rec.IMDbID), nullableString(rec.TMDbID),
			nullableString(rec.TVDbID), string(mediaType), nullableInt(rec.Season), nullableInt(rec.Episode),
			nullableString(rec.RawPayload), formatTime(retrieved),
		)
		if err != nil {
			return fmt.Errorf("upsert lookup result: %w", err)
		}
		return nil
	})
}

// ListLookups returns every stored provider answer for a file.
func (s *Store) ListLookups(ctx context.Context, fileID int64) ([]LookupRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_id, provider, provider_id, title, year, expected_duration_ms, imdb_id, tmdb_id, tvdb_id, media_type, season, episode, raw_payload, retrieved_at
         FROM lookup_results WHERE file_id = ? ORDER BY id`, fileID)
	if err != nil {
		return nil, s.persistenceError("list lookups", err)
	}
	defer rows.Close()

	var out []LookupRecord
	for rows.Next() {
		var (
			rec                             LookupRecord
			providerID, title, imdb, tmdb   sql.NullString
			tvdb, raw                       sql.NullString
			year, expected, season, episode sql.NullInt64
			mediaType, retrieved            string
		)
		if err := rows.Scan(&rec.FileID, &rec.Provider, &providerID, &title, &year, &expected, &imdb, &tmdb, &tvdb, &mediaType, &season, &episode, &raw, &retrieved); err != nil {
			return nil, s.persistenceError("scan lookup", err)
		}
		rec.ProviderID = providerID.String
		rec.Title = title.String
		rec.Year = int(year.Int64)
		rec.IMDbID = imdb.String
		rec.TMDbID = tmdb.String
		rec.TVDbID = tvdb.String
		rec.RawPayload = raw.String
		rec.MediaType = MediaType(mediaType)
		if expected.Valid {
			v := expected.Int64
			rec.ExpectedDurationMS = &v
		}
		if season.Valid {
			v := int(season.Int64)
			rec.Season = &v
		}
		if episode.Valid {
			v := int(episode.Int64)
			rec.Episode = &v
		}
		if t, err := parseTimeString(retrieved); err == nil {
			rec.RetrievedAt = t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.persistenceError("list lookups", err)
	}
	return out, nil
}
