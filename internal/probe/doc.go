// Package probe converts ffprobe output into the canonical stream model the
// store persists: measured duration, the primary video stream with its HDR
// classification, audio tracks, and subtitle tracks merged with same-stem
// sidecar files.
//
// Probe never mutates anything. Every failure comes back as a *Failure whose
// Kind tells tool-not-found, non-zero exit, and malformed output apart, and
// which matches services.ErrToolFailure with errors.Is.
package probe
