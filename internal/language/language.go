package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ISO 639-2/B codes that x/text does not resolve, mapped to their /T form.
var bibliographic = map[string]string{
	"alb": "sqi", "arm": "hye", "baq": "eus", "bur": "mya", "chi": "zho",
	"cze": "ces", "dut": "nld", "fre": "fra", "geo": "kat", "ger": "deu",
	"gre": "ell", "ice": "isl", "mac": "mkd", "mao": "mri", "may": "msa",
	"per": "fas", "rum": "ron", "slo": "slk", "tib": "bod", "wel": "cym",
}

var words = map[string]string{
	"english": "en", "spanish": "es", "french": "fr", "german": "de",
	"italian": "it", "portuguese": "pt", "japanese": "ja", "korean": "ko",
	"chinese": "zh", "russian": "ru", "arabic": "ar", "hindi": "hi",
	"dutch": "nl", "polish": "pl", "swedish": "sv", "danish": "da",
	"norwegian": "no", "finnish": "fi",
}

func parse(code string) (xlanguage.Base, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" || code == "und" {
		return xlanguage.Base{}, false
	}
	if alias, ok := bibliographic[code]; ok {
		code = alias
	}
	if word, ok := words[code]; ok {
		code = word
	}
	base, err := xlanguage.ParseBase(code)
	if err != nil {
		return xlanguage.Base{}, false
	}
	return base, true
}

// IsCode reports whether token is a recognized 2 or 3 letter language code.
func IsCode(token string) bool {
	token = strings.TrimSpace(token)
	if len(token) < 2 || len(token) > 3 {
		return false
	}
	for _, r := range token {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	_, ok := parse(token)
	return ok
}

// ToISO2 converts any recognized language code or word to ISO 639-1.
// Returns empty string when no 2-letter form exists.
func ToISO2(code string) string {
	base, ok := parse(code)
	if !ok {
		return ""
	}
	s := base.String()
	if len(s) != 2 {
		return ""
	}
	return s
}

// ToISO3 converts any recognized language code to ISO 639-2/T.
// Returns "und" for empty or unrecognized input.
func ToISO3(code string) string {
	base, ok := parse(code)
	if !ok {
		return "und"
	}
	return base.ISO3()
}

// DisplayName returns a human-readable language name for any recognized code.
// Returns "Unknown" for empty input, or the uppercased code for unrecognized input.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" || strings.EqualFold(trimmed, "und") {
		return "Unknown"
	}
	base, ok := parse(trimmed)
	if !ok {
		return strings.ToUpper(trimmed)
	}
	if name := display.English.Languages().Name(base); name != "" {
		return name
	}
	return strings.ToUpper(trimmed)
}

// FromTags normalizes the language carried in ffprobe stream tags.
func FromTags(tags map[string]string) string {
	for _, key := range []string{"language", "LANGUAGE", "lang"} {
		if v, ok := tags[key]; ok && strings.TrimSpace(v) != "" {
			return ToISO3(v)
		}
	}
	return "und"
}
