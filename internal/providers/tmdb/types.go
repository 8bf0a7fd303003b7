package tmdb

// SearchResult is one search or find match.
type SearchResult struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	Popularity   float64 `json:"popularity"`
	ShowID       int64   `json:"show_id"`
	SeasonNumber int     `json:"season_number"`
	EpisodeNum   int     `json:"episode_number"`
}

// SearchResponse models the paginated search response.
type SearchResponse struct {
	Page         int            `json:"page"`
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
}

// FindResponse models /find/{external_id}.
type FindResponse struct {
	MovieResults     []SearchResult `json:"movie_results"`
	TVResults        []SearchResult `json:"tv_results"`
	TVEpisodeResults []SearchResult `json:"tv_episode_results"`
}

// MovieDetails is the subset of /movie/{id} used for validation.
type MovieDetails struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
	Runtime     int    `json:"runtime"`
	IMDbID      string `json:"imdb_id"`
}

// TVDetails is the subset of /tv/{id} used for validation.
type TVDetails struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	FirstAirDate   string `json:"first_air_date"`
	EpisodeRunTime []int  `json:"episode_run_time"`
	ExternalIDs    struct {
		IMDbID string `json:"imdb_id"`
		TVDbID int64  `json:"tvdb_id"`
	} `json:"external_ids"`
}

// EpisodeDetails is the subset of /tv/{id}/season/{s}/episode/{e}.
type EpisodeDetails struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	Runtime       int    `json:"runtime"`
}
