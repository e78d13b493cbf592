// Package jobs orchestrates the engine: it creates registry records,
// enqueues the transcript pipeline, streams media downloads, and routes
// cancellation through the coordinator.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"

	log "github.com/sirupsen/logrus"

	"tubescribe/internal/ai"
	"tubescribe/internal/media"
	"tubescribe/internal/models"
	"tubescribe/internal/queue"
	"tubescribe/internal/registry"
	"tubescribe/internal/resolver"
	"tubescribe/internal/transcript"
	"tubescribe/internal/ytdlp"
)

var videoIDRe = regexp.MustCompile(`(?:v=|/shorts/|/embed/|youtu\.be/)([A-Za-z0-9_-]{11})`)

// ErrInvalidURL marks a request rejected before any job was created.
var ErrInvalidURL = errors.New("unrecognized video URL")

// ExtractVideoID pulls the 11-character subject id out of a watch,
// short-link, shorts, or embed URL.
func ExtractVideoID(rawURL string) (string, error) {
	m := videoIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return m[1], nil
}

// InfoFetcher yields subject metadata for a URL.
type InfoFetcher interface {
	FetchInfo(ctx context.Context, url string) (*media.Info, error)
}

// TranscriptResolver walks the transcript fallback chain.
type TranscriptResolver interface {
	Resolve(ctx context.Context, req resolver.Request) (*resolver.Resolution, error)
}

// Normalizer runs the AI cleanup pipeline. model may override the
// configured primary tier per request.
type Normalizer interface {
	Normalize(ctx context.Context, raw, model string) (ai.NormalizeResult, error)
}

// Service is the orchestration facade the HTTP layer talks to.
type Service struct {
	reg        *registry.Registry
	queue      *queue.Queue
	coord      *Coordinator
	media      InfoFetcher
	inv        *ytdlp.Invoker
	resolver   TranscriptResolver
	normalizer Normalizer
}

// NewService wires the orchestration service.
func NewService(
	reg *registry.Registry,
	q *queue.Queue,
	coord *Coordinator,
	mediaClient InfoFetcher,
	inv *ytdlp.Invoker,
	res TranscriptResolver,
	norm Normalizer,
) *Service {
	return &Service{
		reg:        reg,
		queue:      q,
		coord:      coord,
		media:      mediaClient,
		inv:        inv,
		resolver:   res,
		normalizer: norm,
	}
}

// Job returns a snapshot of the job record.
func (s *Service) Job(id string) (models.Job, error) {
	return s.reg.Get(id)
}

// Cancel routes through the coordinator.
func (s *Service) Cancel(id string) (CancelOutcome, error) {
	return s.coord.Cancel(id)
}

// Info fetches subject metadata without creating a job.
func (s *Service) Info(ctx context.Context, rawURL string) (*media.Info, error) {
	if _, err := ExtractVideoID(rawURL); err != nil {
		return nil, err
	}
	return s.media.FetchInfo(ctx, rawURL)
}

// TranscriptOptions tunes one transcript request. The zero value asks
// for the subject's own language with full AI normalization.
type TranscriptOptions struct {
	Lang   string
	SkipAI bool   // return the cleaned transcript without AI passes
	Model  string // override the primary model tier for this job
}

// StartTranscript validates the URL synchronously, registers a queued
// job, and enqueues the pipeline. The returned snapshot is what the
// caller polls against.
func (s *Service) StartTranscript(rawURL string, opts TranscriptOptions) (models.Job, error) {
	if _, err := ExtractVideoID(rawURL); err != nil {
		return models.Job{}, err
	}

	job := s.reg.Create(models.JobKindTranscript)
	s.queue.Add(func(ctx context.Context) {
		s.runTranscript(ctx, job.ID, rawURL, opts)
	})
	log.WithFields(log.Fields{"job_id": job.ID, "url": rawURL, "lang": opts.Lang, "skipAI": opts.SkipAI}).
		Info("Transcript job enqueued")
	return job, nil
}

func (s *Service) runTranscript(ctx context.Context, jobID, rawURL string, opts TranscriptOptions) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.coord.Bind(jobID, models.TokenHandle(cancel)); err != nil {
		// Canceled while still queued; nothing has started.
		log.WithField("job_id", jobID).Debug("Skipping job canceled before start")
		return
	}
	if _, err := s.reg.Mutate(jobID, func(j *models.Job) {
		j.Status = models.JobStatusInitializing
		j.Progress = 10
	}); err != nil {
		return
	}

	info, err := s.media.FetchInfo(ctx, rawURL)
	if err != nil {
		s.finish(ctx, jobID, fmt.Errorf("fetch video info: %w", err))
		return
	}

	lang := opts.Lang
	if lang == "" {
		lang = info.Language
	}
	if lang == "" {
		lang = "en"
	}

	if _, err := s.reg.Mutate(jobID, func(j *models.Job) {
		j.Status = models.JobStatusValidating
		j.Progress = 20
		j.SubjectID = info.ID
		j.SubjectTitle = info.Title
	}); err != nil {
		return
	}

	if _, err := s.reg.Mutate(jobID, func(j *models.Job) {
		j.Status = models.JobStatusDownloading
		j.Progress = 30
	}); err != nil {
		return
	}

	res, err := s.resolver.Resolve(ctx, resolver.Request{URL: rawURL, Lang: lang, Info: info})
	if err != nil {
		s.finish(ctx, jobID, err)
		return
	}

	if _, err := s.reg.Mutate(jobID, func(j *models.Job) {
		j.Status = models.JobStatusProcessing
		j.Progress = 40
	}); err != nil {
		return
	}

	raw := transcript.Join(res.Lines)
	var norm ai.NormalizeResult
	if opts.SkipAI {
		norm = ai.NormalizeResult{Text: raw}
	} else {
		norm, err = s.normalizer.Normalize(ctx, raw, opts.Model)
		if err != nil {
			s.finish(ctx, jobID, err)
			return
		}
	}

	if _, err := s.reg.Mutate(jobID, func(j *models.Job) {
		j.Progress = 90
	}); err != nil {
		return
	}

	result := &models.TranscriptResult{
		Title:       info.Title,
		Language:    res.Language,
		Transcript:  norm.Text,
		AINotes:     norm.Notes,
		IsProcessed: norm.Processed,
		Processor:   norm.ModelUsed,
		Source:      string(res.Source),
		VideoID:     info.ID,
		ChannelID:   info.ChannelID,
		ChannelName: info.Channel,
		PostDate:    info.PostDate(),
	}

	if _, err := s.reg.Mutate(jobID, func(j *models.Job) {
		j.Status = models.JobStatusCompleted
		j.Result = &models.Result{Success: true, Transcript: result}
	}); err != nil && !errors.Is(err, models.ErrJobTerminal) {
		log.WithError(err).WithField("job_id", jobID).Error("Failed to record completion")
	}
}

// finish records a terminal failure, classifying cancellation and
// timeout before falling back to the structured error carried by err.
func (s *Service) finish(ctx context.Context, jobID string, err error) {
	var status models.JobStatus
	var jerr *models.JobError

	switch {
	case errors.Is(ctx.Err(), context.Canceled), errors.Is(err, context.Canceled):
		status = models.JobStatusCanceled
		jerr = models.NewJobError(models.ErrCodeCanceled, "job canceled")
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		status = models.JobStatusFailed
		jerr = models.NewJobError(models.ErrCodeTimeout, "job exceeded the processing time limit")
	default:
		status = models.JobStatusFailed
		if !errors.As(err, &jerr) {
			jerr = models.NewJobError(models.ErrCodeUpstream, "%v", err)
		}
	}

	_, mErr := s.reg.Mutate(jobID, func(j *models.Job) {
		j.Status = status
		j.Result = &models.Result{Err: jerr}
	})
	if mErr != nil && !errors.Is(mErr, models.ErrJobTerminal) {
		log.WithError(mErr).WithField("job_id", jobID).Error("Failed to record job failure")
	}
	log.WithFields(log.Fields{"job_id": jobID, "status": status, "code": jerr.Code}).
		Warn("Job finished unsuccessfully")
}

// MediaKind selects the streamed download container.
type MediaKind string

const (
	MediaMP3 MediaKind = "mp3"
	MediaMP4 MediaKind = "mp4"
)

// MediaStream is a streamed media download in flight. The job record is
// live while bytes flow to the sink; Wait finalizes it.
type MediaStream struct {
	Job  models.Job
	Info *media.Info

	svc  *Service
	proc *ytdlp.StreamedProc
}

// StartMediaStream fetches subject metadata, registers a download job,
// and starts the tool with stdout piped to sink. Media downloads bypass
// the queue: the bytes go straight to a waiting client connection, so
// delaying admission would only hold the connection open idle. The job
// walks the same lifecycle as a queued one: initializing while metadata
// is fetched, validating once the subject is known, then downloading.
func (s *Service) StartMediaStream(ctx context.Context, rawURL string, kind MediaKind, sink io.Writer) (*MediaStream, error) {
	if _, err := ExtractVideoID(rawURL); err != nil {
		return nil, err
	}

	var args []string
	switch kind {
	case MediaMP3:
		args = []string{"-f", "bestaudio", "--extract-audio", "--audio-format", "mp3", "-o", "-", rawURL}
	case MediaMP4:
		args = []string{"-f", "best[ext=mp4]/best", "-o", "-", rawURL}
	default:
		return nil, fmt.Errorf("unsupported media kind %q", kind)
	}

	job := s.reg.Create(models.JobKindMediaDownload)
	if _, err := s.reg.Mutate(job.ID, func(j *models.Job) {
		j.Status = models.JobStatusInitializing
		j.Progress = 5
	}); err != nil {
		return nil, err
	}

	info, err := s.media.FetchInfo(ctx, rawURL)
	if err != nil {
		s.finish(ctx, job.ID, fmt.Errorf("fetch video info: %w", err))
		return nil, err
	}
	if _, err := s.reg.Mutate(job.ID, func(j *models.Job) {
		j.Status = models.JobStatusValidating
		j.Progress = 10
		j.SubjectID = info.ID
		j.SubjectTitle = info.Title
	}); err != nil {
		return nil, err
	}

	proc, err := s.inv.StartStreamed(args, sink)
	if err != nil {
		s.finish(ctx, job.ID, models.NewJobError(models.ErrCodeProcessFailed, "%v", err))
		return nil, err
	}

	if err := s.coord.Bind(job.ID, models.ProcessHandle(proc.Process())); err != nil {
		killStreamed(proc)
		return nil, err
	}
	snapshot, err := s.reg.Mutate(job.ID, func(j *models.Job) {
		j.Status = models.JobStatusDownloading
		j.Progress = 20
	})
	if err != nil {
		killStreamed(proc)
		return nil, err
	}

	log.WithFields(log.Fields{"job_id": job.ID, "kind": kind, "videoId": info.ID}).
		Info("Media stream started")
	return &MediaStream{Job: snapshot, Info: info, svc: s, proc: proc}, nil
}

// killStreamed reaps a process whose job record could not be advanced,
// so nothing keeps piping into the response writer.
func killStreamed(proc *ytdlp.StreamedProc) {
	if p := proc.Process(); p != nil {
		if err := p.Kill(); err != nil {
			log.WithError(err).Debug("Failed to kill orphaned stream process")
		}
	}
	proc.Wait()
}

// Wait blocks until the stream's process exits and records the terminal
// status: completed, canceled (killed), or failed.
func (m *MediaStream) Wait() models.Job {
	class := m.proc.Wait()

	var apply func(j *models.Job)
	switch class {
	case ytdlp.ExitSuccess:
		apply = func(j *models.Job) {
			j.Status = models.JobStatusCompleted
			j.Result = &models.Result{Success: true}
		}
	case ytdlp.ExitCanceled:
		apply = func(j *models.Job) {
			j.Status = models.JobStatusCanceled
			j.Result = &models.Result{Err: models.NewJobError(models.ErrCodeCanceled, "download canceled")}
		}
	default:
		apply = func(j *models.Job) {
			j.Status = models.JobStatusFailed
			j.Result = &models.Result{Err: models.NewJobError(models.ErrCodeProcessFailed, "download process exited abnormally")}
		}
	}

	job, err := m.svc.reg.Mutate(m.Job.ID, apply)
	if err != nil {
		if snap, gerr := m.svc.reg.Get(m.Job.ID); gerr == nil {
			return snap
		}
		return m.Job
	}
	return job
}
