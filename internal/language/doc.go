// Package language normalizes language codes found in stream tags and
// subtitle sidecar names to ISO 639-2/T, and renders display names.
package language
