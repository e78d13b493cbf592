package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tubescribe/internal/ai"
	"tubescribe/internal/media"
	"tubescribe/internal/models"
	"tubescribe/internal/queue"
	"tubescribe/internal/registry"
	"tubescribe/internal/resolver"
)

type fakeInfo struct {
	info *media.Info
	err  error
}

func (f *fakeInfo) FetchInfo(ctx context.Context, url string) (*media.Info, error) {
	return f.info, f.err
}

type fakeResolver struct {
	res   *resolver.Resolution
	err   error
	block bool
	calls int32
}

func (f *fakeResolver) Resolve(ctx context.Context, req resolver.Request) (*resolver.Resolution, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.res, f.err
}

type fakeNorm struct {
	calls int32
	model string
}

func (f *fakeNorm) Normalize(ctx context.Context, raw, model string) (ai.NormalizeResult, error) {
	atomic.AddInt32(&f.calls, 1)
	f.model = model
	return ai.NormalizeResult{
		Text:      "normalized: " + raw,
		Processed: true,
		ModelUsed: "fake-model",
	}, nil
}

type harness struct {
	reg  *registry.Registry
	q    *queue.Queue
	svc  *Service
	norm *fakeNorm
}

func newHarness(t *testing.T, info *fakeInfo, res *fakeResolver) *harness {
	t.Helper()
	reg := registry.New(time.Hour)
	q := queue.New(queue.Options{Concurrency: 2, IntervalCap: 100, Interval: time.Millisecond})
	t.Cleanup(func() {
		q.Close()
		reg.Close()
	})
	norm := &fakeNorm{}
	coord := NewCoordinator(reg, q.Depth, t.TempDir())
	svc := NewService(reg, q, coord, info, nil, res, norm)
	return &harness{reg: reg, q: q, svc: svc, norm: norm}
}

func testInfo() *media.Info {
	return &media.Info{
		ID:       "dQw4w9WgXcQ",
		Title:    "Some Video",
		Language: "en",
		Channel:  "The Channel",
	}
}

const watchURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

func TestExtractVideoID(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":       "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ":                      "dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ":        "dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ":         "dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10s": "dQw4w9WgXcQ",
	}
	for url, want := range cases {
		got, err := ExtractVideoID(url)
		require.NoError(t, err, url)
		require.Equal(t, want, got, url)
	}

	_, err := ExtractVideoID("https://example.com/not-a-video")
	require.ErrorIs(t, err, ErrInvalidURL)
	_, err = ExtractVideoID("https://www.youtube.com/watch?v=short")
	require.ErrorIs(t, err, ErrInvalidURL)
}

func TestStartTranscriptRejectsBadURL(t *testing.T) {
	h := newHarness(t, &fakeInfo{info: testInfo()}, &fakeResolver{})

	_, err := h.svc.StartTranscript("not a url", TranscriptOptions{})
	require.ErrorIs(t, err, ErrInvalidURL)
	require.Zero(t, h.reg.Len(), "rejected requests must not create job records")
}

func TestTranscriptEndToEnd(t *testing.T) {
	res := &fakeResolver{res: &resolver.Resolution{
		Lines:    []string{"hello", "world"},
		Source:   models.OriginAutoCaption,
		Language: "en",
	}}
	h := newHarness(t, &fakeInfo{info: testInfo()}, res)

	job, err := h.svc.StartTranscript(watchURL, TranscriptOptions{Lang: "en"})
	require.NoError(t, err)
	require.Equal(t, models.JobStatusQueued, job.Status)

	var final models.Job
	require.Eventually(t, func() bool {
		final, _ = h.svc.Job(job.ID)
		return final.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, models.JobStatusCompleted, final.Status)
	require.Equal(t, 100, final.Progress)
	require.Equal(t, "dQw4w9WgXcQ", final.SubjectID)
	require.Equal(t, "Some Video", final.SubjectTitle)

	require.NotNil(t, final.Result)
	require.True(t, final.Result.Success)
	tr := final.Result.Transcript
	require.NotNil(t, tr)
	require.Equal(t, "normalized: hello world", tr.Transcript)
	require.Equal(t, "en", tr.Language)
	require.Equal(t, string(models.OriginAutoCaption), tr.Source)
	require.True(t, tr.IsProcessed)
	require.Equal(t, "fake-model", tr.Processor)
}

func TestTranscriptDefaultsToSubjectLanguage(t *testing.T) {
	res := &fakeResolver{res: &resolver.Resolution{
		Lines: []string{"hallo"}, Source: models.OriginAutoCaption, Language: "de",
	}}
	info := testInfo()
	info.Language = "de"
	h := newHarness(t, &fakeInfo{info: info}, res)

	job, err := h.svc.StartTranscript(watchURL, TranscriptOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, _ := h.svc.Job(job.ID)
		return j.Status == models.JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestTranscriptSkipAIReturnsRawJoin(t *testing.T) {
	res := &fakeResolver{res: &resolver.Resolution{
		Lines:    []string{"hello", "world"},
		Source:   models.OriginAutoCaption,
		Language: "en",
	}}
	h := newHarness(t, &fakeInfo{info: testInfo()}, res)

	job, err := h.svc.StartTranscript(watchURL, TranscriptOptions{Lang: "en", SkipAI: true})
	require.NoError(t, err)

	var final models.Job
	require.Eventually(t, func() bool {
		final, _ = h.svc.Job(job.ID)
		return final.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, models.JobStatusCompleted, final.Status)
	tr := final.Result.Transcript
	require.NotNil(t, tr)
	require.Equal(t, "hello world", tr.Transcript)
	require.False(t, tr.IsProcessed)
	require.Empty(t, tr.Processor)
	require.Zero(t, atomic.LoadInt32(&h.norm.calls), "skipAI must bypass the normalizer entirely")
}

func TestTranscriptModelOverrideReachesNormalizer(t *testing.T) {
	res := &fakeResolver{res: &resolver.Resolution{
		Lines: []string{"hi"}, Source: models.OriginAutoCaption, Language: "en",
	}}
	h := newHarness(t, &fakeInfo{info: testInfo()}, res)

	job, err := h.svc.StartTranscript(watchURL, TranscriptOptions{Lang: "en", Model: "deepseek-chat"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, _ := h.svc.Job(job.ID)
		return j.Status == models.JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, "deepseek-chat", h.norm.model)
}

func TestTranscriptResolverFailureRecorded(t *testing.T) {
	jerr := models.NewJobError(models.ErrCodeNoCaptions, "nothing there")
	h := newHarness(t, &fakeInfo{info: testInfo()}, &fakeResolver{err: jerr})

	job, err := h.svc.StartTranscript(watchURL, TranscriptOptions{Lang: "en"})
	require.NoError(t, err)

	var final models.Job
	require.Eventually(t, func() bool {
		final, _ = h.svc.Job(job.ID)
		return final.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, models.JobStatusFailed, final.Status)
	require.NotNil(t, final.Result)
	require.NotNil(t, final.Result.Err)
	require.Equal(t, models.ErrCodeNoCaptions, final.Result.Err.Code)
}

func TestTranscriptInfoFetchFailure(t *testing.T) {
	h := newHarness(t, &fakeInfo{err: context.DeadlineExceeded}, &fakeResolver{})

	job, err := h.svc.StartTranscript(watchURL, TranscriptOptions{Lang: "en"})
	require.NoError(t, err)

	var final models.Job
	require.Eventually(t, func() bool {
		final, _ = h.svc.Job(job.ID)
		return final.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, models.JobStatusFailed, final.Status)
	require.Equal(t, models.ErrCodeTimeout, final.Result.Err.Code)
}

func TestCancelMidFlight(t *testing.T) {
	res := &fakeResolver{block: true}
	h := newHarness(t, &fakeInfo{info: testInfo()}, res)

	job, err := h.svc.StartTranscript(watchURL, TranscriptOptions{Lang: "en"})
	require.NoError(t, err)

	// Wait for the pipeline to reach the blocking resolver.
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&res.calls) > 0
	}, 5*time.Second, 5*time.Millisecond)

	out, err := h.svc.Cancel(job.ID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCanceled, out.Status)
	require.False(t, out.AlreadyTerminal)

	final, err := h.svc.Job(job.ID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCanceled, final.Status)
	require.NotNil(t, final.Result)
	require.NotNil(t, final.Result.Err)
	require.Equal(t, models.ErrCodeCanceled, final.Result.Err.Code)

	// The unblocked pipeline must not overwrite the canceled status.
	time.Sleep(50 * time.Millisecond)
	final, _ = h.svc.Job(job.ID)
	require.Equal(t, models.JobStatusCanceled, final.Status)
}

func TestCancelWhileQueuedSkipsExecution(t *testing.T) {
	reg := registry.New(time.Hour)
	q := queue.New(queue.Options{Concurrency: 1, IntervalCap: 100, Interval: time.Millisecond})
	t.Cleanup(func() {
		q.Close()
		reg.Close()
	})
	res := &fakeResolver{res: &resolver.Resolution{Lines: []string{"x"}, Source: models.OriginAutoCaption, Language: "en"}}
	coord := NewCoordinator(reg, q.Depth, t.TempDir())
	svc := NewService(reg, q, coord, &fakeInfo{info: testInfo()}, nil, res, &fakeNorm{})

	// Occupy the only worker so the transcript job stays queued.
	block := make(chan struct{})
	started := make(chan struct{})
	q.Add(func(ctx context.Context) {
		close(started)
		<-block
	})
	<-started

	job, err := svc.StartTranscript(watchURL, TranscriptOptions{Lang: "en"})
	require.NoError(t, err)

	out, err := svc.Cancel(job.ID)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCanceled, out.Status)

	close(block)
	time.Sleep(50 * time.Millisecond)

	require.Zero(t, atomic.LoadInt32(&res.calls), "a canceled queued job must never start work")
	final, _ := svc.Job(job.ID)
	require.Equal(t, models.JobStatusCanceled, final.Status)
}
