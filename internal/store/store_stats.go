package store

import (
	"context"
	"time"
)

// Stats aggregates counts and distributions across the library.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	stats := Stats{
		ByStatus:       make(map[Status]int),
		VideoCodecs:    make(map[string]int),
		HDRTypes:       make(map[string]int),
		AudioLanguages: make(map[string]int),
	}

	var totalMS int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COALESCE(SUM(size_bytes), 0), COALESCE(SUM(duration_ms), 0),
                COALESCE(SUM(needs_review), 0), COALESCE(SUM(manual_override), 0), COALESCE(SUM(lookup_deferred), 0)
         FROM media_files`,
	).Scan(&stats.TotalFiles, &stats.TotalBytes, &totalMS, &stats.NeedsReview, &stats.Overridden, &stats.Deferred)
	if err != nil {
		return Stats{}, s.persistenceError("stats totals", err)
	}
	stats.TotalDuration = time.Duration(totalMS) * time.Millisecond

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM media_files GROUP BY status`)
	if err != nil {
		return Stats{}, s.persistenceError("stats status", err)
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return Stats{}, s.persistenceError("stats status", err)
		}
		stats.ByStatus[Status(status)] = count
	}
	rows.Close()

	distributions := []struct {
		query string
		into  map[string]int
	}{
		{`SELECT COALESCE(codec, 'unknown'), COUNT(1) FROM video_streams GROUP BY 1`, stats.VideoCodecs},
		{`SELECT hdr_type, COUNT(1) FROM video_streams GROUP BY 1`, stats.HDRTypes},
		{`SELECT COALESCE(language, 'und'), COUNT(DISTINCT file_id) FROM audio_streams GROUP BY 1`, stats.AudioLanguages},
	}
	for _, dist := range distributions {
		if err := s.fillDistribution(ctx, dist.query, dist.into); err != nil {
			return Stats{}, err
		}
	}
	return stats, nil
}

func (s *Store) fillDistribution(ctx context.Context, query string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return s.persistenceError("stats distribution", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return s.persistenceError("stats distribution", err)
		}
		into[key] = count
	}
	return rows.Err()
}
