// Package pipeline drives media files through probing, external lookup and
// duration validation.
//
// Orchestrator.ProcessFile runs the per-file state machine in strict order:
//
//	UNPROBED -> PROBED -> AWAITING_LOOKUP -> VALID | NEEDS_REVIEW | UNKNOWN
//
// A failed probe ends in UNKNOWN. When every provider key is exhausted the
// file is not advanced past AWAITING_LOOKUP unless its fixed floor already
// flags it, in which case it lands in NEEDS_REVIEW marked as deferred so the
// next run looks it up again. Files manually marked valid are never touched.
//
// Runner.Run feeds candidates from the store through a bounded queue to a
// fixed set of workers. Cancelling the run context stops dequeuing; files
// already started finish under a detached context.
package pipeline
