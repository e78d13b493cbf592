package resolver

import (
	"sort"
	"strings"

	"tubescribe/internal/media"
	"tubescribe/internal/models"
)

// Format preference for embedded tracks when several variants exist for
// the same language.
var preferredExts = []string{"ttml", "xml", "srv1"}

// matchedTrack is an embedded track selected for a concrete language.
type matchedTrack struct {
	Lang   string
	Origin models.TrackOrigin
	Track  media.Track
}

// matchTrack finds the best embedded track for the requested language,
// widening from an exact match to the base subtag to sibling regional
// variants. Manual subtitles win over automatic captions at each step.
func matchTrack(info *media.Info, lang string) (matchedTrack, bool) {
	for _, candidate := range candidateLangs(info, lang) {
		if tracks, ok := info.Subtitles[candidate]; ok && len(tracks) > 0 {
			return matchedTrack{
				Lang:   candidate,
				Origin: models.OriginManualSubtitle,
				Track:  pickTrack(tracks),
			}, true
		}
		if tracks, ok := info.AutomaticCaptions[candidate]; ok && len(tracks) > 0 {
			return matchedTrack{
				Lang:   candidate,
				Origin: models.OriginAutoCaption,
				Track:  pickTrack(tracks),
			}, true
		}
	}
	return matchedTrack{}, false
}

// candidateLangs orders the language codes to try: the exact request,
// its base subtag, the tool's "-orig" variant, then any other variant
// sharing the base.
func candidateLangs(info *media.Info, lang string) []string {
	base := baseLang(lang)

	var out []string
	seen := make(map[string]bool)
	add := func(code string) {
		if code != "" && !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}

	add(lang)
	add(base)
	add(base + "-orig")

	var siblings []string
	for _, code := range info.AvailableLanguages() {
		if !seen[code] && baseLang(code) == base {
			siblings = append(siblings, code)
		}
	}
	sort.Strings(siblings)
	for _, code := range siblings {
		add(code)
	}
	return out
}

func pickTrack(tracks []media.Track) media.Track {
	for _, ext := range preferredExts {
		for _, t := range tracks {
			if t.Ext == ext {
				return t
			}
		}
	}
	return tracks[0]
}

func baseLang(lang string) string {
	base, _, _ := strings.Cut(lang, "-")
	return base
}
