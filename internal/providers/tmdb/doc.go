// Package tmdb queries The Movie Database for a title's runtime. Searches go
// through /search/movie or /search/tv (or /find when an IMDb id is known),
// then the details endpoint supplies the runtime.
package tmdb
