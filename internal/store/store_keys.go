package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const keyColumns = "provider, api_key, position, daily_limit, calls_today, day_start, blocked_until, block_reason, last_used_at"

func scanKey(scanner rowScanner) (KeyState, error) {
	var (
		state        KeyState
		dayStart     string
		blockedUntil sql.NullString
		blockReason  sql.NullString
		lastUsed     sql.NullString
	)
	if err := scanner.Scan(&state.Provider, &state.Key, &state.Position, &state.DailyLimit, &state.CallsToday, &dayStart, &blockedUntil, &blockReason, &lastUsed); err != nil {
		return KeyState{}, err
	}
	if t, err := parseTimeString(dayStart); err == nil {
		state.DayStart = t
	}
	state.BlockedUntil = parseNullableTime(blockedUntil)
	state.BlockReason = blockReason.String
	state.LastUsedAt = parseNullableTime(lastUsed)
	return state, nil
}

// RegisterKeys makes keys the active credential set of provider, in order.
// Known keys keep their counters; keys no longer listed are deactivated but
// retained so their block state survives a config round trip.
func (s *Store) RegisterKeys(ctx context.Context, provider string, keys []string, dailyLimit int, dayStart time.Time) error {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return fmt.Errorf("register keys: empty provider")
	}
	return s.withTx(ctx, "register keys", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE api_key_states SET active = 0 WHERE provider = ?`, provider); err != nil {
			return fmt.Errorf("deactivate keys: %w", err)
		}
		for i, key := range keys {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO api_key_states (provider, api_key, position, active, daily_limit, calls_today, day_start)
                 VALUES (?, ?, ?, 1, ?, 0, ?)
                 ON CONFLICT(provider, api_key) DO UPDATE SET
                     position = excluded.position,
                     active = 1,
                     daily_limit = excluded.daily_limit`,
				provider, key, i, dailyLimit, formatTime(dayStart),
			); err != nil {
				return fmt.Errorf("register key: %w", err)
			}
		}
		return nil
	})
}

// UpdateKeys loads the active keys of provider and persists whatever fn
// returns, in a single transaction. fn may run twice if the first attempt hits
// a write conflict, so it must derive its result only from the keys it is given.
func (s *Store) UpdateKeys(ctx context.Context, provider string, fn func([]KeyState) ([]KeyState, error)) error {
	return s.withTx(ctx, "update keys", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+keyColumns+` FROM api_key_states WHERE provider = ? AND active = 1 ORDER BY position, api_key`, provider)
		if err != nil {
			return fmt.Errorf("load keys: %w", err)
		}
		var states []KeyState
		for rows.Next() {
			state, err := scanKey(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("scan key: %w", err)
			}
			states = append(states, state)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("load keys: %w", err)
		}
		rows.Close()

		updated, err := fn(states)
		if err != nil {
			return err
		}
		for _, state := range updated {
			if _, err := tx.ExecContext(ctx,
				`UPDATE api_key_states
                 SET calls_today = ?, day_start = ?, blocked_until = ?, block_reason = ?, last_used_at = ?
                 WHERE provider = ? AND api_key = ?`,
				state.CallsToday, formatTime(state.DayStart), nullableTime(state.BlockedUntil),
				nullableString(state.BlockReason), nullableTime(state.LastUsedAt), state.Provider, state.Key,
			); err != nil {
				return fmt.Errorf("save key: %w", err)
			}
		}
		return nil
	})
}

// ListKeys returns active key state, optionally limited to one provider.
func (s *Store) ListKeys(ctx context.Context, provider string) ([]KeyState, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + keyColumns + ` FROM api_key_states WHERE active = 1`
	var args []any
	if provider = strings.TrimSpace(provider); provider != "" {
		query += ` AND provider = ?`
		args = append(args, provider)
	}
	query += ` ORDER BY provider, position, api_key`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.persistenceError("list keys", err)
	}
	defer rows.Close()

	var out []KeyState
	for rows.Next() {
		state, err := scanKey(rows)
		if err != nil {
			return nil, s.persistenceError("scan key", err)
		}
		out = append(out, state)
	}
	if err := rows.Err(); err != nil {
		return nil, s.persistenceError("list keys", err)
	}
	return out, nil
}
