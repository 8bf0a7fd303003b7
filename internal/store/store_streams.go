package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mediaguard/internal/probe"
)

// ReplaceStreams swaps the stored stream set of a file for the one in result
// and records the measured duration. Old rows are deleted before the new ones
// are inserted, all inside one transaction.
func (s *Store) ReplaceStreams(ctx context.Context, fileID int64, result probe.Result, probedAt time.Time) error {
	return s.withTx(ctx, "replace streams", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE media_files SET probed_at = ?, duration_ms = ?, has_video = ?, updated_at = ? WHERE id = ?`,
			formatTime(probedAt), nullableInt64(result.DurationMS), boolToInt(result.HasVideo()), formatTime(s.now()), fileID,
		)
		if err != nil {
			return fmt.Errorf("update probe fields: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return ErrNotFound
		}

		for _, table := range []string{"video_streams", "audio_streams", "subtitle_streams"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE file_id = ?`, fileID); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		if v := result.Video; v != nil {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO video_streams (file_id, codec, width, height, frame_rate, hdr_type) VALUES (?, ?, ?, ?, ?, ?)`,
				fileID, nullableString(v.Codec), v.Width, v.Height, v.FrameRate, string(v.HDR),
			); err != nil {
				return fmt.Errorf("insert video stream: %w", err)
			}
		}
		for _, a := range result.Audio {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO audio_streams (file_id, stream_index, codec, language, channels, channel_layout, title, is_default)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				fileID, a.Index, nullableString(a.Codec), nullableString(a.Language), a.Channels,
				nullableString(a.ChannelLayout), nullableString(a.Title), boolToInt(a.Default),
			); err != nil {
				return fmt.Errorf("insert audio stream: %w", err)
			}
		}
		for _, sub := range result.Subtitles {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO subtitle_streams (file_id, stream_index, codec, language, title, is_forced, is_default, is_external, external_path)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				fileID, sub.Index, nullableString(sub.Codec), nullableString(sub.Language), nullableString(sub.Title),
				boolToInt(sub.Forced), boolToInt(sub.Default), boolToInt(sub.External), nullableString(sub.Path),
			); err != nil {
				return fmt.Errorf("insert subtitle stream: %w", err)
			}
		}
		return nil
	})
}

// Streams returns the stored stream set of a file.
func (s *Store) Streams(ctx context.Context, fileID int64) (Streams, error) {
	ctx = ensureContext(ctx)
	var out Streams

	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(codec, ''), width, height, frame_rate, hdr_type FROM video_streams WHERE file_id = ? ORDER BY id`, fileID)
	if err != nil {
		return Streams{}, s.persistenceError("load video streams", err)
	}
	for rows.Next() {
		var v VideoStream
		if err := rows.Scan(&v.Codec, &v.Width, &v.Height, &v.FrameRate, &v.HDRType); err != nil {
			rows.Close()
			return Streams{}, s.persistenceError("scan video stream", err)
		}
		out.Video = append(out.Video, v)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT stream_index, COALESCE(codec, ''), COALESCE(language, ''), channels, COALESCE(channel_layout, ''), COALESCE(title, ''), is_default
         FROM audio_streams WHERE file_id = ? ORDER BY id`, fileID)
	if err != nil {
		return Streams{}, s.persistenceError("load audio streams", err)
	}
	for rows.Next() {
		var (
			a   AudioStream
			def int
		)
		if err := rows.Scan(&a.Index, &a.Codec, &a.Language, &a.Channels, &a.ChannelLayout, &a.Title, &def); err != nil {
			rows.Close()
			return Streams{}, s.persistenceError("scan audio stream", err)
		}
		a.Default = def != 0
		out.Audio = append(out.Audio, a)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT stream_index, COALESCE(codec, ''), COALESCE(language, ''), COALESCE(title, ''), is_forced, is_default, is_external, COALESCE(external_path, '')
         FROM subtitle_streams WHERE file_id = ? ORDER BY id`, fileID)
	if err != nil {
		return Streams{}, s.persistenceError("load subtitle streams", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			sub                   SubtitleStream
			forced, def, external int
		)
		if err := rows.Scan(&sub.Index, &sub.Codec, &sub.Language, &sub.Title, &forced, &def, &external, &sub.ExternalPath); err != nil {
			return Streams{}, s.persistenceError("scan subtitle stream", err)
		}
		sub.Forced = forced != 0
		sub.Default = def != 0
		sub.External = external != 0
		out.Subtitles = append(out.Subtitles, sub)
	}
	if err := rows.Err(); err != nil {
		return Streams{}, s.persistenceError("load subtitle streams", err)
	}
	return out, nil
}
