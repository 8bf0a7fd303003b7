// Package config loads, normalizes, and validates mediaguard configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OMDB_API_KEY and TMDB_API_KEY. Registry instances (Sonarr, Radarr) and
// title databases are typed sections rather than free-form maps, so a typo
// in a provider block fails at load time instead of at lookup time.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, lower-cased provider names, and clear validation errors.
package config
