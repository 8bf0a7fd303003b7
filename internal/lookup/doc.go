// Package lookup finds the expected runtime of a media file.
//
// Registries (Sonarr, Radarr) are asked first because they resolve by file
// path. A registry match that carries a runtime ends the search. Otherwise a
// title is guessed from the filename (or taken from the registry match) and
// the title databases (OMDb, TMDB) are asked in order.
//
// Every call takes its credential from the key pool and reports usage back
// whether or not the call succeeded. Rejected or exhausted credentials are
// blocked; network errors, timeouts and 5xx answers only skip the provider.
package lookup
