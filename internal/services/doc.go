// Package services defines shared plumbing consumed by the pipeline stages and
// the lookup providers.
//
// Key responsibilities:
//   - Context helpers that stamp media file IDs, stage names, provider names,
//     and request identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (tool, provider, credential, persistence) at the file
//     boundary without string matching.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
