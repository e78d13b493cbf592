package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tubescribe/internal/media"
	"tubescribe/internal/models"
)

type fakeFeed struct {
	segments []string
	err      error
	calls    int
	langs    []string
}

func (f *fakeFeed) Fetch(ctx context.Context, videoID, lang string) ([]string, error) {
	f.calls++
	f.langs = append(f.langs, lang)
	return f.segments, f.err
}

type fakeTool struct {
	subsByLang    map[string]string
	subsErrByLang map[string]error
	subsLangs     []string
	audioPath     string
	audioSize     int
	audioErr      error
}

func (f *fakeTool) DumpAutoSubs(ctx context.Context, url, lang, subjectID string) (string, error) {
	f.subsLangs = append(f.subsLangs, lang)
	if err := f.subsErrByLang[lang]; err != nil {
		return "", err
	}
	return f.subsByLang[lang], nil
}

func (f *fakeTool) ExtractAudio(ctx context.Context, url, subjectID string) (string, error) {
	if f.audioErr != nil {
		return "", f.audioErr
	}
	if err := os.WriteFile(f.audioPath, make([]byte, f.audioSize), 0o600); err != nil {
		return "", err
	}
	return f.audioPath, nil
}

type fakeSTT struct {
	text    string
	err     error
	enabled bool
	calls   int
}

func (f *fakeSTT) Enabled() bool { return f.enabled }

func (f *fakeSTT) Transcribe(ctx context.Context, audioPath, lang string) (string, error) {
	f.calls++
	return f.text, f.err
}

func newTestResolver(feed *fakeFeed, tool *fakeTool, transcriber *fakeSTT) *Resolver {
	r := &Resolver{
		http:          &http.Client{Timeout: 5 * time.Second},
		maxAudioBytes: 1 << 20,
	}
	if feed != nil {
		r.feed = feed
	}
	if tool != nil {
		r.tool = tool
	}
	if transcriber != nil {
		r.stt = transcriber
	}
	return r
}

func TestResolveEmbeddedTrack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<transcript><text start="0">Hello there</text></transcript>`))
	}))
	defer srv.Close()

	info := infoWith(nil, map[string][]media.Track{
		"en": {{URL: srv.URL, Ext: "ttml"}},
	})
	feed := &fakeFeed{}
	r := newTestResolver(feed, nil, nil)

	res, err := r.Resolve(context.Background(), Request{URL: "u", Lang: "en", Info: info})
	require.NoError(t, err)
	require.Equal(t, models.OriginAutoCaption, res.Source)
	require.Equal(t, "en", res.Language)
	require.Equal(t, []string{"Hello there"}, res.Lines)
	require.Zero(t, feed.calls, "chain must stop at the first hit")
}

func TestResolveFallsThroughToFeed(t *testing.T) {
	feed := &fakeFeed{segments: []string{"from the feed"}}
	r := newTestResolver(feed, nil, nil)

	res, err := r.Resolve(context.Background(), Request{URL: "u", Lang: "en", Info: infoWith(nil, nil)})
	require.NoError(t, err)
	require.Equal(t, models.OriginCaptionFeed, res.Source)
	require.Equal(t, []string{"from the feed"}, res.Lines)
}

func TestResolveFeedErrorFallsThrough(t *testing.T) {
	feed := &fakeFeed{err: errors.New("feed down")}
	tool := &fakeTool{subsByLang: map[string]string{
		"en": "WEBVTT\n\n00:00:00.000 --> 00:00:01.000\nfrom auto subs\n",
	}}
	r := newTestResolver(feed, tool, nil)

	res, err := r.Resolve(context.Background(), Request{URL: "u", Lang: "en", Info: infoWith(nil, nil)})
	require.NoError(t, err)
	require.Equal(t, models.OriginAutoCaption, res.Source)
	require.Equal(t, []string{"from auto subs"}, res.Lines)
}

func TestResolveAutoSubsRetriesBaseLang(t *testing.T) {
	tool := &fakeTool{subsByLang: map[string]string{
		"en": "WEBVTT\n\n00:00:00.000 --> 00:00:01.000\nbase language subs\n",
	}}
	r := newTestResolver(nil, tool, nil)

	res, err := r.Resolve(context.Background(), Request{URL: "u", Lang: "en-US", Info: infoWith(nil, nil)})
	require.NoError(t, err)
	require.Equal(t, "en", res.Language)
	require.Equal(t, []string{"en-US", "en"}, tool.subsLangs)
}

func TestResolveFeedQueriesBaseLanguage(t *testing.T) {
	feed := &fakeFeed{segments: []string{"from the feed"}}
	r := newTestResolver(feed, nil, nil)

	res, err := r.Resolve(context.Background(), Request{URL: "u", Lang: "en-US", Info: infoWith(nil, nil)})
	require.NoError(t, err)
	require.Equal(t, []string{"en"}, feed.langs,
		"the feed service does not know regional variants")
	require.Equal(t, "en", res.Language)
}

func TestResolveAutoSubsVariantErrorStillRetriesBase(t *testing.T) {
	tool := &fakeTool{
		subsErrByLang: map[string]error{"en-US": errors.New("variant fetch blew up")},
		subsByLang: map[string]string{
			"en": "WEBVTT\n\n00:00:00.000 --> 00:00:01.000\nbase language subs\n",
		},
	}
	r := newTestResolver(nil, tool, nil)

	res, err := r.Resolve(context.Background(), Request{URL: "u", Lang: "en-US", Info: infoWith(nil, nil)})
	require.NoError(t, err)
	require.Equal(t, []string{"en-US", "en"}, tool.subsLangs,
		"a failing variant must not short-circuit the base-language attempt")
	require.Equal(t, "en", res.Language)
	require.Equal(t, []string{"base language subs"}, res.Lines)
}

func TestResolveSpeechToTextLastResort(t *testing.T) {
	dir := t.TempDir()
	tool := &fakeTool{audioPath: filepath.Join(dir, "audio.mp3"), audioSize: 1024}
	transcriber := &fakeSTT{enabled: true, text: "Spoken words were said."}
	r := newTestResolver(nil, tool, transcriber)

	res, err := r.Resolve(context.Background(), Request{URL: "u", Lang: "en-US", Info: infoWith(nil, nil)})
	require.NoError(t, err)
	require.Equal(t, models.OriginSpeechToText, res.Source)
	require.Equal(t, "en", res.Language)
	require.Equal(t, 1, transcriber.calls)

	_, statErr := os.Stat(tool.audioPath)
	require.True(t, os.IsNotExist(statErr), "audio artifact must be removed")
}

func TestResolveSkipsOversizedAudio(t *testing.T) {
	dir := t.TempDir()
	tool := &fakeTool{audioPath: filepath.Join(dir, "audio.mp3"), audioSize: 2 << 20}
	transcriber := &fakeSTT{enabled: true, text: "never used"}
	r := newTestResolver(nil, tool, transcriber)

	_, err := r.Resolve(context.Background(), Request{URL: "u", Lang: "en", Info: infoWith(nil, nil)})
	require.Error(t, err)
	require.Zero(t, transcriber.calls, "oversized audio must abandon the stage, not upload")
}

func TestResolveClassifiesNoCaptions(t *testing.T) {
	r := newTestResolver(nil, nil, nil)

	_, err := r.Resolve(context.Background(), Request{URL: "u", Lang: "en", Info: infoWith(nil, nil)})
	var jerr *models.JobError
	require.ErrorAs(t, err, &jerr)
	require.Equal(t, models.ErrCodeNoCaptions, jerr.Code)
}

func TestResolveClassifiesLanguageUnavailable(t *testing.T) {
	info := infoWith(nil, map[string][]media.Track{
		"de": {{URL: "u", Ext: "vtt"}},
	})
	r := newTestResolver(nil, nil, nil)

	_, err := r.Resolve(context.Background(), Request{URL: "u", Lang: "en", Info: info})
	var jerr *models.JobError
	require.ErrorAs(t, err, &jerr)
	require.Equal(t, models.ErrCodeLanguageUnavailable, jerr.Code)
	require.Equal(t, []string{"de"}, jerr.AvailableLanguages)
}

func TestResolveCancellationAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	feed := &fakeFeed{segments: []string{"never seen"}}
	r := newTestResolver(feed, nil, nil)

	_, err := r.Resolve(ctx, Request{URL: "u", Lang: "en", Info: infoWith(nil, nil)})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, feed.calls)
}
