// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// This package has no mediaguard-specific dependencies.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video/subtitle stream properties, including
//     colour metadata and side data used for HDR classification
//   - Format: container-level metadata (duration, size, bitrate)
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
package ffprobe
