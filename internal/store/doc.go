// Package store persists mediaguard state in SQLite: media files and their
// validation status, per-type stream records, provider lookup results, and
// the rate-limit counters of provider API keys.
//
// Every write runs in a single transaction. A busy or locked database rolls
// the transaction back and replays it once; a second conflict surfaces as a
// services.ErrPersistenceFailure so callers can fail just the affected file.
// The store holds no business rules beyond one guard: automated status
// transitions never touch a file that was manually marked valid.
package store
