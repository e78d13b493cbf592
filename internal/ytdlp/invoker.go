// Package ytdlp invokes the external media-information/extraction tool
// as a subprocess, in buffered mode for metadata queries and streamed
// mode for media payload delivery, and classifies its exit status.
package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// ExitClass is the three-way classification of a tool invocation. The
// job state machine depends on canceled and failed staying distinct.
type ExitClass int

const (
	ExitSuccess ExitClass = iota
	ExitCanceled
	ExitFailed
)

func (c ExitClass) String() string {
	switch c {
	case ExitSuccess:
		return "success"
	case ExitCanceled:
		return "canceled"
	default:
		return "failed"
	}
}

// Invoker builds argument lists and runs the tool.
type Invoker struct {
	Binary      string
	CookiesFile string
	UserAgent   string
	TempDir     string
}

// New returns an invoker and makes sure the temp artifact dir exists.
func New(binary, cookiesFile, userAgent, tempDir string) (*Invoker, error) {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	return &Invoker{
		Binary:      binary,
		CookiesFile: cookiesFile,
		UserAgent:   userAgent,
		TempDir:     tempDir,
	}, nil
}

// BaseArgs returns the arguments every invocation carries, injecting
// the cookies artifact only when it validates as present and usable.
func (inv *Invoker) BaseArgs() []string {
	args := []string{
		"--no-warnings",
		"--no-check-certificates",
		"--user-agent", inv.UserAgent,
	}
	if report := ValidateCookiesFile(inv.CookiesFile); report.Valid() {
		abs, err := filepath.Abs(inv.CookiesFile)
		if err == nil {
			args = append(args, "--cookies", abs)
			log.Debug("Using cookies for authentication")
		}
	}
	return args
}

// RunBuffered executes the tool and captures full stdout. Used for
// metadata queries (--dump-json) and artifact-producing runs.
func (inv *Invoker) RunBuffered(ctx context.Context, args []string) ([]byte, ExitClass, error) {
	full := append(inv.BaseArgs(), args...)
	cmd := exec.CommandContext(ctx, inv.Binary, full...)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	stderr, _ := cmd.StderrPipe()
	if stderr != nil {
		go drainStderr(stderr)
	}

	err := cmd.Run()
	class := Classify(ctx, err)
	if class != ExitSuccess {
		return stdout.Bytes(), class, fmt.Errorf("yt-dlp %s: %w", class, err)
	}
	return stdout.Bytes(), ExitSuccess, nil
}

// StreamedProc is a streamed invocation in flight. The caller owns the
// process handle for cancellation binding and must call Wait.
type StreamedProc struct {
	cmd *exec.Cmd
}

// Process exposes the underlying OS process for the cancellation
// coordinator.
func (p *StreamedProc) Process() *os.Process { return p.cmd.Process }

// Wait blocks until the process exits and classifies the result.
func (p *StreamedProc) Wait() ExitClass {
	return Classify(context.Background(), p.cmd.Wait())
}

// StartStreamed starts the tool with stdout piped directly to sink.
// Used for media payload delivery where the bytes go straight to the
// client connection.
func (inv *Invoker) StartStreamed(args []string, sink io.Writer) (*StreamedProc, error) {
	full := append(inv.BaseArgs(), args...)
	cmd := exec.Command(inv.Binary, full...)
	cmd.Stdout = sink
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	go drainStderr(stderr)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", inv.Binary, err)
	}
	return &StreamedProc{cmd: cmd}, nil
}

// Classify maps an invocation error to the three-way exit class.
// A killed process reports no usable exit code and means canceled,
// never failed.
func Classify(ctx context.Context, err error) ExitClass {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return ExitCanceled
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// -1 means the process was terminated by a signal (SIGKILL from
		// the coordinator or the context), so no exit code exists.
		if exitErr.ExitCode() == -1 {
			return ExitCanceled
		}
	}
	return ExitFailed
}

// ArtifactName builds a temp artifact base name tagged with the subject
// id, so cancellation cleanup can sweep exactly this subject's files.
func (inv *Invoker) ArtifactName(prefix, subjectID string) string {
	token := strconv.FormatInt(time.Now().UnixNano(), 36)
	return filepath.Join(inv.TempDir, fmt.Sprintf("%s_%s_%s", prefix, subjectID, token))
}

func drainStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		log.WithField("stderr", sc.Text()).Debug("yt-dlp output")
	}
}
