// Package registry is the authoritative in-memory store of job records.
// Records live for the process lifetime only, bounded by a retention
// purge scheduled when a job reaches a terminal status.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"tubescribe/internal/models"
)

type entry struct {
	mu    sync.Mutex
	job   models.Job
	purge *time.Timer
}

// Registry maps job ids to records with single-writer-per-record
// discipline: every mutation goes through Mutate, which holds the
// record's own lock, so cross-job contention cannot occur.
type Registry struct {
	mu        sync.RWMutex
	jobs      map[string]*entry
	retention time.Duration
}

// New creates a registry purging terminal jobs after retention.
func New(retention time.Duration) *Registry {
	if retention <= 0 {
		retention = time.Hour
	}
	return &Registry{
		jobs:      make(map[string]*entry),
		retention: retention,
	}
}

// Create registers a new queued job and returns a snapshot of it.
func (r *Registry) Create(kind models.JobKind) models.Job {
	now := time.Now()
	job := models.Job{
		ID:          uuid.NewString(),
		Kind:        kind,
		Status:      models.JobStatusQueued,
		Progress:    0,
		CreatedAt:   now,
		LastUpdated: now,
	}

	r.mu.Lock()
	r.jobs[job.ID] = &entry{job: job}
	r.mu.Unlock()

	log.WithFields(log.Fields{"job_id": job.ID, "kind": kind}).Debug("Job created")
	return job
}

// Get returns a consistent snapshot of the job, or ErrJobNotFound.
func (r *Registry) Get(id string) (models.Job, error) {
	e, ok := r.lookup(id)
	if !ok {
		return models.Job{}, models.ErrJobNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job, nil
}

// Mutate applies fn to the job record atomically. It enforces the
// lifecycle invariants regardless of what fn does:
//
//   - status transitions must be forward-only (ErrInvalidTransition);
//   - mutations of terminal jobs are rejected (ErrJobTerminal);
//   - progress never decreases and is pinned to 100 at terminal;
//   - reaching a terminal status schedules the retention purge.
//
// It returns the post-mutation snapshot on success.
func (r *Registry) Mutate(id string, fn func(job *models.Job)) (models.Job, error) {
	e, ok := r.lookup(id)
	if !ok {
		return models.Job{}, models.ErrJobNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.job
	if before.Status.IsTerminal() {
		return before, models.ErrJobTerminal
	}

	job := before
	fn(&job)

	if !models.ValidTransition(before.Status, job.Status) {
		return before, models.ErrInvalidTransition
	}
	if job.Progress < before.Progress {
		job.Progress = before.Progress
	}
	if job.Status.IsTerminal() {
		job.Progress = 100
	}
	job.ID = before.ID
	job.Kind = before.Kind
	job.CreatedAt = before.CreatedAt
	job.LastUpdated = time.Now()

	e.job = job
	if job.Status.IsTerminal() && e.purge == nil {
		e.purge = time.AfterFunc(r.retention, func() { r.remove(id) })
		log.WithFields(log.Fields{
			"job_id": id, "status": job.Status, "retention": r.retention,
		}).Debug("Retention purge scheduled")
	}
	return job, nil
}

// Len reports how many job records are currently retained.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Close cancels pending purge timers. Records are left in place; the
// registry is process-volatile anyway.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.jobs {
		e.mu.Lock()
		if e.purge != nil {
			e.purge.Stop()
		}
		e.mu.Unlock()
	}
}

func (r *Registry) lookup(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[id]
	return e, ok
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()
	log.WithField("job_id", id).Debug("Job purged after retention window")
}
