package probe

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mediaguard/internal/language"
)

var sidecarExtensions = map[string]string{
	".srt": "subrip",
	".ass": "ass",
	".ssa": "ssa",
	".sub": "microdvd",
	".idx": "vobsub",
	".vtt": "webvtt",
}

// DiscoverSidecars returns subtitle files next to mediaPath that share its
// stem. A trailing two or three letter token such as "movie.en.srt" is read
// as the language; anything else leaves the language undetermined.
func DiscoverSidecars(mediaPath string) ([]SubtitleStream, error) {
	dir := filepath.Dir(mediaPath)
	base := filepath.Base(mediaPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []SubtitleStream
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		codec, ok := sidecarExtensions[ext]
		if !ok {
			continue
		}
		subStem := strings.TrimSuffix(name, filepath.Ext(name))
		if subStem != stem && !strings.HasPrefix(subStem, stem+".") {
			continue
		}
		lang := "und"
		forced := false
		if rest := strings.TrimPrefix(subStem, stem); rest != "" {
			tokens := strings.Split(strings.Trim(rest, "."), ".")
			for _, token := range tokens {
				if strings.EqualFold(token, "forced") {
					forced = true
				}
			}
			if last := tokens[len(tokens)-1]; language.IsCode(last) {
				lang = language.ToISO3(last)
			} else if len(tokens) > 1 && language.IsCode(tokens[len(tokens)-2]) {
				lang = language.ToISO3(tokens[len(tokens)-2])
			}
		}
		out = append(out, SubtitleStream{
			Index:    -1,
			Codec:    codec,
			Language: lang,
			Forced:   forced,
			External: true,
			Path:     filepath.Join(dir, name),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
