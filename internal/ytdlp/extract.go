package ytdlp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

var subtitleExts = []string{".vtt", ".ttml", ".srv1", ".srt"}

// DumpAutoSubs asks the tool to write auto-generated subtitles for the
// language and returns the raw subtitle text. The temp artifact is
// removed after reading. An empty result with nil error means the run
// succeeded but produced no subtitle file.
func (inv *Invoker) DumpAutoSubs(ctx context.Context, url, lang, subjectID string) (string, error) {
	base := inv.ArtifactName("subs", subjectID)
	args := []string{
		"--skip-download",
		"--write-auto-subs",
		"--sub-lang", lang,
		"--sub-format", "ttml/srv1/vtt/best",
		"--convert-subs", "vtt",
		"-o", base,
		url,
	}

	log.WithFields(log.Fields{"url": url, "lang": lang}).Info("Fetching auto-subs with yt-dlp")
	if _, class, err := inv.RunBuffered(ctx, args); class != ExitSuccess {
		return "", err
	}

	// The tool names its output {base}.{lang}.{ext}; find whatever it
	// actually produced.
	match, err := findArtifact(inv.TempDir, filepath.Base(base), subtitleExts)
	if err != nil || match == "" {
		log.WithField("lang", lang).Warn("yt-dlp ran but no subtitle file was generated")
		return "", err
	}

	content, err := os.ReadFile(match)
	removeErr := os.Remove(match)
	if removeErr != nil {
		log.WithError(removeErr).Debug("Failed to remove subtitle artifact")
	}
	if err != nil {
		return "", fmt.Errorf("read subtitle artifact: %w", err)
	}
	return string(content), nil
}

// ExtractAudio writes a compressed mono 16 kHz 64 kbps mp3 of the
// subject's audio, sized for speech-to-text upload limits, and returns
// its path. The caller owns the artifact.
func (inv *Invoker) ExtractAudio(ctx context.Context, url, subjectID string) (string, error) {
	path := inv.ArtifactName("stt", subjectID) + ".mp3"
	args := []string{
		"--extract-audio",
		"--audio-format", "mp3",
		"--postprocessor-args", "ffmpeg:-ac 1 -ar 16000 -b:a 64k",
		"-o", path,
		url,
	}

	log.WithField("url", url).Info("Extracting audio for speech-to-text")
	if _, class, err := inv.RunBuffered(ctx, args); class != ExitSuccess {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("audio artifact missing after extraction: %w", err)
	}
	return path, nil
}

func findArtifact(dir, prefix string, exts []string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("scan temp directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		for _, ext := range exts {
			if strings.HasSuffix(name, ext) {
				return filepath.Join(dir, name), nil
			}
		}
	}
	return "", nil
}
