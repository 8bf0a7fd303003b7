package arr

// Kind selects the registry flavour.
type Kind string

const (
	KindSonarr Kind = "sonarr"
	KindRadarr Kind = "radarr"
)

type episodeFile struct {
	ID        int64 `json:"id"`
	SeriesID  int64 `json:"seriesId"`
	EpisodeID int64 `json:"episodeId"`
}

type episode struct {
	ID            int64  `json:"id"`
	SeriesID      int64  `json:"seriesId"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	Title         string `json:"title"`
	Runtime       int    `json:"runtime"`
	EpisodeFile   *struct {
		Runtime int `json:"runtime"`
	} `json:"episodeFile,omitempty"`
}

type series struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Year    int    `json:"year"`
	Runtime int    `json:"runtime"`
	IMDbID  string `json:"imdbId"`
	TVDbID  int64  `json:"tvdbId"`
	TMDbID  int64  `json:"tmdbId"`
}

type movieFile struct {
	ID      int64 `json:"id"`
	MovieID int64 `json:"movieId"`
}

type movie struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Year    int    `json:"year"`
	Runtime int    `json:"runtime"`
	IMDbID  string `json:"imdbId"`
	TMDbID  int64  `json:"tmdbId"`
}

// SystemStatus is the subset of /api/v3/system/status used for connectivity checks.
type SystemStatus struct {
	AppName string `json:"appName"`
	Version string `json:"version"`
}
