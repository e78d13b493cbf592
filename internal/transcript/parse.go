// Package transcript turns raw caption payloads (timed XML, WebVTT, or
// plain text) into cleaned transcript lines ready for normalization.
package transcript

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	log "github.com/sirupsen/logrus"
	xhtml "golang.org/x/net/html"
)

var (
	textCueRe     = regexp.MustCompile(`<text[^>]*>([^<]*)</text>`)
	curlyBracesRe = regexp.MustCompile(`\{[^}]+\}`)
	leadingDashRe = regexp.MustCompile(`^\s*-\s*`)

	tokenizerOnce sync.Once
	tokenizer     *sentences.DefaultSentenceTokenizer
)

// Parse splits a raw transcript payload into lines according to its
// detected format. Plain text (speech-to-text or caption-feed output)
// is segmented into sentences.
func Parse(raw string) []string {
	switch {
	case strings.Contains(raw, "<text"):
		return parseTimedXML(raw)
	case strings.Contains(raw, "WEBVTT"):
		return parseWebVTT(raw)
	case strings.TrimSpace(raw) != "":
		lines := SplitSentences(raw)
		log.WithFields(log.Fields{
			"totalLength": len(raw),
			"sentences":   len(lines),
		}).Info("Processing plain text transcript")
		return lines
	default:
		return nil
	}
}

// CleanLines strips markup, cue annotations, and leading dashes from
// each line and drops empties.
func CleanLines(lines []string) []string {
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.ReplaceAll(line, "\r", "")
		line = stripTags(line)
		line = curlyBracesRe.ReplaceAllString(line, "")
		line = leadingDashRe.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return cleaned
}

// Join renders cleaned lines as the single-string transcript the AI
// pipeline and fallback paths operate on.
func Join(lines []string) string {
	return strings.Join(lines, " ")
}

// SplitSentences segments plain text into sentences.
func SplitSentences(text string) []string {
	tokenizerOnce.Do(func() {
		var err error
		tokenizer, err = english.NewSentenceTokenizer(nil)
		if err != nil {
			log.WithError(err).Error("Sentence tokenizer init failed")
		}
	})

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if tokenizer == nil {
		return []string{text}
	}

	var lines []string
	for _, s := range tokenizer.Tokenize(text) {
		if t := strings.TrimSpace(s.Text); t != "" {
			lines = append(lines, t)
		}
	}
	return lines
}

func parseTimedXML(raw string) []string {
	matches := textCueRe.FindAllStringSubmatch(raw, -1)
	lines := make([]string, 0, len(matches))
	for _, m := range matches {
		lines = append(lines, html.UnescapeString(m[1]))
	}
	return lines
}

func parseWebVTT(raw string) []string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" ||
			strings.HasPrefix(line, "WEBVTT") ||
			strings.HasPrefix(line, "NOTE") ||
			strings.Contains(line, "-->") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// stripTags removes markup-ish tags from cue text, keeping entities
// decoded. Caption cues frequently embed <c>, <i> and timing tags.
func stripTags(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return s
	}
	var b strings.Builder
	z := xhtml.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case xhtml.ErrorToken:
			return b.String()
		case xhtml.TextToken:
			b.Write(z.Text())
		}
	}
}
