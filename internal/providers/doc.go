// Package providers holds the shapes shared by every lookup provider: the
// canonical Result each provider adapts its response into, the error
// markers that tell the key pool whether a failure should cost the key, and
// a small JSON-over-HTTP helper.
//
// Provider clients live in subpackages (arr, omdb, tmdb). Each keeps its own
// response types and maps them through an explicit adapter into Result.
package providers
