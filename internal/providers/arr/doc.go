// Package arr queries Sonarr and Radarr instances for files they already
// manage. Both share the v3 API shape: a file-path lookup that yields a
// media id, then the media record itself. Authentication is the instance's
// static key in the X-Api-Key header.
package arr
