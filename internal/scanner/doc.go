// Package scanner walks the configured library directories and records every
// media file in the store. Files whose size or modification time changed are
// reset to UNPROBED by the store; files that vanished from disk are pruned.
package scanner
