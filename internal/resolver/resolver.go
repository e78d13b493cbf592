// Package resolver implements the transcript fallback chain: embedded
// caption tracks, the caption feed service, tool-fetched auto-subs, and
// finally speech-to-text. The first stage producing usable text wins.
package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"tubescribe/internal/captionfeed"
	"tubescribe/internal/media"
	"tubescribe/internal/models"
	"tubescribe/internal/stt"
	"tubescribe/internal/transcript"
)

// captionTool is the slice of the process invoker the resolver needs.
type captionTool interface {
	DumpAutoSubs(ctx context.Context, url, lang, subjectID string) (string, error)
	ExtractAudio(ctx context.Context, url, subjectID string) (string, error)
}

// Request carries one resolution attempt. Info has already been fetched
// and validated by the caller.
type Request struct {
	URL  string
	Lang string
	Info *media.Info
}

// Resolution is a successful outcome: cleaned transcript lines plus
// their provenance.
type Resolution struct {
	Lines    []string
	Source   models.TrackOrigin
	Language string
}

// Resolver walks the fallback chain in order.
type Resolver struct {
	http          *http.Client
	feed          captionfeed.Fetcher
	tool          captionTool
	stt           stt.Transcriber
	maxAudioBytes int64
}

// New wires the resolver. feed and transcriber may be nil-equivalent
// (disabled); their stages are skipped.
func New(feed captionfeed.Fetcher, tool captionTool, transcriber stt.Transcriber, maxAudioMB int64) *Resolver {
	return &Resolver{
		http:          &http.Client{Timeout: 30 * time.Second},
		feed:          feed,
		tool:          tool,
		stt:           transcriber,
		maxAudioBytes: maxAudioMB << 20,
	}
}

type stage struct {
	name string
	run  func(ctx context.Context, req Request) (*Resolution, error)
}

// Resolve tries each stage in order. A stage returning (nil, nil) is a
// miss and the chain moves on; stage errors are logged and treated as
// misses too, except cancellation, which aborts the chain. When every
// stage misses, the failure is classified by whether the subject had any
// tracks at all.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	stages := []stage{
		{"embedded-tracks", r.resolveEmbedded},
		{"caption-feed", r.resolveFeed},
		{"auto-subs", r.resolveAutoSubs},
		{"speech-to-text", r.resolveSTT},
	}

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := s.run(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithError(err).WithField("stage", s.name).Warn("Transcript stage failed, falling through")
			continue
		}
		if res == nil || len(res.Lines) == 0 {
			log.WithField("stage", s.name).Debug("Transcript stage produced nothing, falling through")
			continue
		}
		log.WithFields(log.Fields{"stage": s.name, "language": res.Language, "lines": len(res.Lines)}).
			Info("Transcript resolved")
		return res, nil
	}

	return nil, r.classifyExhaustion(req)
}

func (r *Resolver) classifyExhaustion(req Request) *models.JobError {
	available := req.Info.AvailableLanguages()
	if len(available) == 0 {
		return models.NewJobError(models.ErrCodeNoCaptions,
			"no captions or subtitles are available for this video")
	}
	jerr := models.NewJobError(models.ErrCodeLanguageUnavailable,
		"no transcript is available in language %q", req.Lang)
	jerr.AvailableLanguages = available
	return jerr
}

// resolveEmbedded downloads the best matching embedded track and parses it.
func (r *Resolver) resolveEmbedded(ctx context.Context, req Request) (*Resolution, error) {
	match, ok := matchTrack(req.Info, req.Lang)
	if !ok {
		return nil, nil
	}
	log.WithFields(log.Fields{"lang": match.Lang, "origin": match.Origin, "ext": match.Track.Ext}).
		Info("Downloading embedded caption track")

	raw, err := r.fetchTrack(ctx, match.Track.URL)
	if err != nil {
		return nil, err
	}
	lines := transcript.CleanLines(transcript.Parse(raw))
	if len(lines) == 0 {
		return nil, nil
	}
	return &Resolution{Lines: lines, Source: match.Origin, Language: match.Lang}, nil
}

// resolveFeed queries the transcript service by subject id and base
// language; the service does not distinguish regional variants.
func (r *Resolver) resolveFeed(ctx context.Context, req Request) (*Resolution, error) {
	if r.feed == nil {
		return nil, nil
	}
	base := baseLang(req.Lang)
	segments, err := r.feed.Fetch(ctx, req.Info.ID, base)
	if err != nil {
		return nil, err
	}
	lines := transcript.CleanLines(segments)
	if len(lines) == 0 {
		return nil, nil
	}
	return &Resolution{Lines: lines, Source: models.OriginCaptionFeed, Language: base}, nil
}

// resolveAutoSubs shells out for auto-generated subtitles, retrying with
// the base subtag when the regional variant yields nothing.
func (r *Resolver) resolveAutoSubs(ctx context.Context, req Request) (*Resolution, error) {
	if r.tool == nil {
		return nil, nil
	}
	langs := []string{req.Lang}
	if base := baseLang(req.Lang); base != req.Lang {
		langs = append(langs, base)
	}

	for _, lang := range langs {
		raw, err := r.tool.DumpAutoSubs(ctx, req.URL, lang, req.Info.ID)
		if err != nil {
			// A failed variant still gets the base-language retry.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.WithError(err).WithField("lang", lang).Warn("Auto-subs fetch failed")
			continue
		}
		lines := transcript.CleanLines(transcript.Parse(raw))
		if len(lines) > 0 {
			return &Resolution{Lines: lines, Source: models.OriginAutoCaption, Language: lang}, nil
		}
	}
	return nil, nil
}

// resolveSTT extracts compressed audio and transcribes it. Audio over
// the upload limit abandons the stage.
func (r *Resolver) resolveSTT(ctx context.Context, req Request) (*Resolution, error) {
	if r.tool == nil || r.stt == nil || !r.stt.Enabled() {
		return nil, nil
	}

	audioPath, err := r.tool.ExtractAudio(ctx, req.URL, req.Info.ID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(audioPath); err != nil {
			log.WithError(err).Debug("Failed to remove audio artifact")
		}
	}()

	fi, err := os.Stat(audioPath)
	if err != nil {
		return nil, err
	}
	if r.maxAudioBytes > 0 && fi.Size() > r.maxAudioBytes {
		log.WithFields(log.Fields{"size": fi.Size(), "limit": r.maxAudioBytes}).
			Warn("Audio exceeds speech-to-text upload limit, skipping stage")
		return nil, nil
	}

	text, err := r.stt.Transcribe(ctx, audioPath, req.Lang)
	if err != nil {
		return nil, err
	}
	lines := transcript.CleanLines(transcript.Parse(text))
	if len(lines) == 0 {
		return nil, nil
	}
	return &Resolution{Lines: lines, Source: models.OriginSpeechToText, Language: baseLang(req.Lang)}, nil
}

func (r *Resolver) fetchTrack(ctx context.Context, url string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build track request: %w", err)
	}
	resp, err := r.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("download caption track: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("caption track returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", fmt.Errorf("read caption track: %w", err)
	}
	return string(body), nil
}
