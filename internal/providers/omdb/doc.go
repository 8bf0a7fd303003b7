// Package omdb queries the OMDb title database by IMDb id or by title and
// year. OMDb reports success through a "Response" discriminator and carries
// runtimes as text ("142 min", "2 h 22 min").
package omdb
