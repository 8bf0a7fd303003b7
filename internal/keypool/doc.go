// Package keypool rotates API credentials per lookup provider.
//
// Key state (daily counters, day boundary and block deadline) lives in the
// store so blocks survive restarts. Every Acquire recomputes eligibility from
// that state; nothing is cached between calls. Daily counters roll over
// lazily at local midnight the next time a key is touched.
package keypool
