package models

import (
	"context"
	"os"
	"time"
)

// JobKind tags what a job produces.
type JobKind string

const (
	JobKindMediaDownload JobKind = "media-download"
	JobKindTranscript    JobKind = "transcript-extraction"
)

// Job is the unit of trackable asynchronous work. A Job is mutated only
// by the queue task executing it and by the cancellation coordinator,
// always through the registry's Mutate.
type Job struct {
	ID           string    `json:"id"`
	Kind         JobKind   `json:"kind"`
	Status       JobStatus `json:"status"`
	Progress     int       `json:"progress"`
	CreatedAt    time.Time `json:"createdAt"`
	LastUpdated  time.Time `json:"lastUpdated"`
	SubjectID    string    `json:"video_id,omitempty"`
	SubjectTitle string    `json:"video_title,omitempty"`

	// Result is set exactly once, when the job reaches a terminal status.
	Result *Result `json:"result,omitempty"`

	// Handle is the job's cancellation handle. The job owns it; the
	// coordinator only borrows it to signal cancellation.
	Handle CancellationHandle `json:"-"`
}

// Result is the terminal payload of a job: either a success payload or
// a structured error, never both.
type Result struct {
	Success    bool              `json:"success"`
	Transcript *TranscriptResult `json:"transcript,omitempty"`
	Err        *JobError         `json:"error,omitempty"`
}

// TranscriptResult is the success payload of a transcript job.
type TranscriptResult struct {
	Title       string    `json:"title"`
	Language    string    `json:"language"`
	Transcript  string    `json:"transcript"`
	AINotes     string    `json:"ai_notes,omitempty"`
	IsProcessed bool      `json:"isProcessed"`
	Processor   string    `json:"processor"`
	Source      string    `json:"source"`
	VideoID     string    `json:"video_id"`
	ChannelID   string    `json:"channel_id,omitempty"`
	ChannelName string    `json:"channel_name,omitempty"`
	PostDate    time.Time `json:"post_date,omitempty"`
}

// TrackOrigin identifies where a candidate transcript source came from.
type TrackOrigin string

const (
	OriginManualSubtitle TrackOrigin = "manual-subtitle"
	OriginAutoCaption    TrackOrigin = "auto-caption"
	OriginCaptionFeed    TrackOrigin = "caption-feed"
	OriginSpeechToText   TrackOrigin = "speech-to-text"
)

// TrackFormat is the wire format of a caption track.
type TrackFormat string

const (
	FormatTimedXML TrackFormat = "timed-xml"
	FormatWebVTT   TrackFormat = "webvtt"
	FormatPlain    TrackFormat = "plain"
)

// LanguageTrack is one candidate transcript source for a subject.
type LanguageTrack struct {
	LanguageCode string
	Origin       TrackOrigin
	Locator      string
	Format       TrackFormat
}

// HandleKind discriminates the CancellationHandle variant.
type HandleKind int

const (
	HandleNone HandleKind = iota
	HandleProcess
	HandleToken
)

// CancellationHandle binds a job to either a killable external process
// or a cooperative cancellation token. The two shapes are mutually
// exclusive; the zero value means no work has started yet.
type CancellationHandle struct {
	kind   HandleKind
	proc   *os.Process
	cancel context.CancelFunc
}

// ProcessHandle wraps a live external process for forcible termination.
func ProcessHandle(p *os.Process) CancellationHandle {
	return CancellationHandle{kind: HandleProcess, proc: p}
}

// TokenHandle wraps a cooperative cancellation token.
func TokenHandle(cancel context.CancelFunc) CancellationHandle {
	return CancellationHandle{kind: HandleToken, cancel: cancel}
}

// Kind returns the variant tag.
func (h CancellationHandle) Kind() HandleKind { return h.kind }

// Signal delivers the cancellation: SIGKILL for process-backed handles,
// context cancellation for token-backed ones. No-op for HandleNone.
func (h CancellationHandle) Signal() error {
	switch h.kind {
	case HandleProcess:
		if h.proc != nil {
			return h.proc.Kill()
		}
	case HandleToken:
		if h.cancel != nil {
			h.cancel()
		}
	}
	return nil
}
