// Package queue implements the bounded work queue: a fixed worker pool
// with a rolling-interval admission limiter and a per-task timeout.
// Job creation is always accepted immediately; only execution is
// throttled, so overflow beyond the rate limit delays admission rather
// than rejecting it.
package queue

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Task is one unit of asynchronous work. The context carries the
// per-task timeout and the queue's shutdown signal.
type Task func(ctx context.Context)

// Options bound the queue. Zero values fall back to the defaults the
// pipeline was tuned for.
type Options struct {
	Concurrency int           // max simultaneously executing tasks
	IntervalCap int           // max admissions per Interval
	Interval    time.Duration // rolling interval for IntervalCap
	TaskTimeout time.Duration // outer bound per task; 0 disables
}

// Queue admits tasks in FIFO order to a fixed pool of workers.
type Queue struct {
	mu      sync.Mutex
	pending []Task
	cond    *sync.Cond
	closed  bool

	limiter *rate.Limiter
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New starts the worker pool.
func New(opts Options) *Queue {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.IntervalCap <= 0 {
		opts.IntervalCap = 5
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		limiter: rate.NewLimiter(rate.Limit(float64(opts.IntervalCap)/opts.Interval.Seconds()), opts.IntervalCap),
		timeout: opts.TaskTimeout,
		ctx:     ctx,
		cancel:  cancel,
	}
	q.cond = sync.NewCond(&q.mu)

	for i := 0; i < opts.Concurrency; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	log.WithFields(log.Fields{
		"concurrency": opts.Concurrency,
		"intervalCap": opts.IntervalCap,
		"interval":    opts.Interval,
	}).Info("Processing queue initialized")
	return q
}

// Add enqueues a task. It never blocks and never rejects; backpressure
// is applied at admission time by the workers.
func (q *Queue) Add(task Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending = append(q.pending, task)
	q.cond.Signal()
}

// Depth reports how many tasks are waiting for a worker. Used for
// "position in queue" reporting.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops admission and waits for in-flight tasks to finish.
// Pending tasks that have not started are dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.pending = nil
	q.cond.Broadcast()
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for {
		task, ok := q.next()
		if !ok {
			return
		}
		// Admission throttle: at most IntervalCap task starts per
		// rolling Interval, shared across all workers.
		if err := q.limiter.Wait(q.ctx); err != nil {
			return
		}
		q.run(id, task)
	}
}

func (q *Queue) next() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed && len(q.pending) == 0 {
		return nil, false
	}
	task := q.pending[0]
	q.pending = q.pending[1:]
	return task, true
}

func (q *Queue) run(worker int, task Task) {
	ctx := q.ctx
	cancel := context.CancelFunc(func() {})
	if q.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
	}
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{"worker": worker, "panic": r}).Error("Queue task panicked")
		}
	}()
	task(ctx)
}
