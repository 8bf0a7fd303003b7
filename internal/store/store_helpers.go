package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

const fileColumns = "id, path, name, size_bytes, modified_at, discovered_at, probed_at, duration_ms, has_video, status, needs_review, manual_override, lookup_deferred, verdict, review_reason, last_error, updated_at"

type rowScanner interface{ Scan(dest ...any) error }

func scanFile(scanner rowScanner) (*MediaFile, error) {
	var (
		file           MediaFile
		modifiedRaw    string
		discoveredRaw  string
		probedRaw      sql.NullString
		durationMS     sql.NullInt64
		hasVideo       int64
		statusStr      string
		needsReview    int64
		manualOverride int64
		deferred       int64
		verdict        sql.NullString
		reviewReason   sql.NullString
		lastError      sql.NullString
		updatedRaw     string
	)
	if err := scanner.Scan(
		&file.ID,
		&file.Path,
		&file.Name,
		&file.SizeBytes,
		&modifiedRaw,
		&discoveredRaw,
		&probedRaw,
		&durationMS,
		&hasVideo,
		&statusStr,
		&needsReview,
		&manualOverride,
		&deferred,
		&verdict,
		&reviewReason,
		&lastError,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	file.Status = Status(statusStr)
	file.HasVideo = hasVideo != 0
	file.NeedsReview = needsReview != 0
	file.ManualOverride = manualOverride != 0
	file.LookupDeferred = deferred != 0
	file.Verdict = verdict.String
	file.ReviewReason = reviewReason.String
	file.LastError = lastError.String
	if durationMS.Valid {
		v := durationMS.Int64
		file.DurationMS = &v
	}
	if t, err := parseTimeString(modifiedRaw); err == nil {
		file.ModifiedAt = t
	}
	if t, err := parseTimeString(discoveredRaw); err == nil {
		file.DiscoveredAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		file.UpdatedAt = t
	}
	file.ProbedAt = parseNullableTime(probedRaw)
	return &file, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty time")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
