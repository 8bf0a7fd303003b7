package lookup

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mediaguard/internal/providers"
)

// Guess is what a filename suggests about its content.
type Guess struct {
	Title     string
	Year      int
	Season    int
	Episode   int
	MediaType providers.MediaType
}

// Query converts the guess into a title database query.
func (g Guess) Query() providers.Query {
	return providers.Query{
		Title:     g.Title,
		Year:      g.Year,
		MediaType: g.MediaType,
		Season:    g.Season,
		Episode:   g.Episode,
	}
}

var (
	moviePattern     = regexp.MustCompile(`^(.*?)\s*[\(\[\{](\d{4})[\)\]\}]`)
	seasonEpPattern  = regexp.MustCompile(`(?i)^(.*?)[\s._-]*s(\d{1,2})[\s._-]*e(\d{1,3})`)
	crossEpPattern   = regexp.MustCompile(`(?i)^(.*?)[\s._-]*(\d{1,2})x(\d{1,3})\b`)
	separatorPattern = regexp.MustCompile(`[._\-]+`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// GuessFromName derives a title and year, or season and episode, from a
// filename. Recognized shapes, in order: "Title (YYYY)" with any bracket,
// "Title SxxEyy", "Title NxNN". Anything else yields the whole stem.
func GuessFromName(name string) Guess {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	if m := moviePattern.FindStringSubmatch(stem); m != nil {
		year, _ := strconv.Atoi(m[2])
		return Guess{Title: cleanTitle(m[1]), Year: year, MediaType: providers.MediaMovie}
	}
	for _, pattern := range []*regexp.Regexp{seasonEpPattern, crossEpPattern} {
		if m := pattern.FindStringSubmatch(stem); m != nil && strings.TrimSpace(m[1]) != "" {
			season, _ := strconv.Atoi(m[2])
			episode, _ := strconv.Atoi(m[3])
			return Guess{Title: cleanTitle(m[1]), Season: season, Episode: episode, MediaType: providers.MediaEpisode}
		}
	}
	return Guess{Title: cleanTitle(stem), MediaType: providers.MediaUnknown}
}

func cleanTitle(value string) string {
	value = separatorPattern.ReplaceAllString(value, " ")
	value = spacePattern.ReplaceAllString(strings.TrimSpace(value), " ")
	if value == "" {
		return ""
	}
	// Casers carry state, so each call gets its own.
	return cases.Title(language.English, cases.NoLower).String(value)
}
