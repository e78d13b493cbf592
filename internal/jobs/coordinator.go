package jobs

import (
	"errors"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"tubescribe/internal/models"
	"tubescribe/internal/registry"
)

// Coordinator delivers cancellation to running jobs and cleans up the
// temp artifacts their external processes left behind.
type Coordinator struct {
	reg     *registry.Registry
	depth   func() int
	tempDir string
}

// NewCoordinator wires the coordinator. depth reports the number of
// tasks still waiting for a worker, for cancel-response reporting.
func NewCoordinator(reg *registry.Registry, depth func() int, tempDir string) *Coordinator {
	return &Coordinator{reg: reg, depth: depth, tempDir: tempDir}
}

// Bind attaches a cancellation handle to a job. Jobs bind exactly once,
// when their work actually starts.
func (c *Coordinator) Bind(jobID string, h models.CancellationHandle) error {
	_, err := c.reg.Mutate(jobID, func(job *models.Job) {
		job.Handle = h
	})
	return err
}

// CancelOutcome reports what a cancel request actually did.
type CancelOutcome struct {
	Status           models.JobStatus
	AlreadyTerminal  bool
	CleanedArtifacts int
	QueueDepth       int
}

// Cancel is idempotent: canceling a terminal job reports its status
// without touching it. For a live job it signals the handle (SIGKILL or
// token cancellation), marks the job canceled, and sweeps the temp
// directory for the subject's artifacts.
func (c *Coordinator) Cancel(jobID string) (CancelOutcome, error) {
	job, err := c.reg.Get(jobID)
	if err != nil {
		return CancelOutcome{}, err
	}

	out := CancelOutcome{Status: job.Status}
	if c.depth != nil {
		out.QueueDepth = c.depth()
	}
	if job.Status.IsTerminal() {
		out.AlreadyTerminal = true
		return out, nil
	}

	if err := job.Handle.Signal(); err != nil {
		log.WithError(err).WithField("job_id", jobID).Warn("Cancellation signal failed")
	}

	// The running task may have won the race and finished; that is fine.
	after, err := c.reg.Mutate(jobID, func(j *models.Job) {
		j.Status = models.JobStatusCanceled
		j.Result = &models.Result{
			Err: models.NewJobError(models.ErrCodeCanceled, "job canceled by request"),
		}
	})
	if err != nil && !errors.Is(err, models.ErrJobTerminal) {
		return out, err
	}
	out.Status = after.Status

	if job.SubjectID != "" {
		out.CleanedArtifacts = c.sweep(job.SubjectID)
	}
	log.WithFields(log.Fields{
		"job_id": jobID, "artifacts": out.CleanedArtifacts,
	}).Info("Job canceled")
	return out, nil
}

// sweep removes every temp artifact tagged with the subject id. Best
// effort; a file held open by a dying process is retried on the next
// cancel or left for manual cleanup.
func (c *Coordinator) sweep(subjectID string) int {
	matches, err := filepath.Glob(filepath.Join(c.tempDir, "*"+subjectID+"*"))
	if err != nil {
		log.WithError(err).Debug("Artifact sweep glob failed")
		return 0
	}
	removed := 0
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			log.WithError(err).WithField("path", path).Debug("Artifact removal failed")
			continue
		}
		removed++
	}
	return removed
}
