// Command mediaguard scans a media library, probes every file with ffprobe,
// looks up the expected runtime in Sonarr, Radarr, OMDb and TMDB, and flags
// files whose duration does not match.
//
// State lives in a SQLite database under paths.data_dir. `mediaguard scan`
// takes a lock file so only one scan writes at a time; the read-only
// commands (files, review, keys, stats) can run alongside it.
package main
