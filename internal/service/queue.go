package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/timmy/shareledger/internal/domain"
	"github.com/timmy/shareledger/internal/jobstore"
	"github.com/timmy/shareledger/internal/logger"
	"github.com/timmy/shareledger/internal/metrics"
)

// ErrQueueClosed is returned by Enqueue after Stop.
var ErrQueueClosed = errors.New("task queue is closed")

const interruptedDetail = "interrupted by restart"

// Processor runs one job's work and reports how many records it stored.
type Processor interface {
	Process(ctx context.Context, fileRef string) (int, error)
}

// QueueConfig holds configuration for the task queue
type QueueConfig struct {
	Workers int
	// StuckJobTimeout > 0 enables the reaper, which fails RUNNING jobs
	// older than the timeout.
	StuckJobTimeout time.Duration
	ReapInterval    time.Duration
}

// TaskQueue is an unbounded FIFO of job ids drained by a fixed pool of
// workers. Jobs are dequeued in submission order and may complete in any
// order. There is no retry and no cancellation of a running job.
type TaskQueue struct {
	jobs      jobstore.Store
	processor Processor
	metrics   *metrics.Metrics
	logger    *logger.Logger
	cfg       QueueConfig

	mu       sync.Mutex
	cond     *sync.Cond
	pending  []string
	inflight int
	started  bool
	closed   bool

	wg         sync.WaitGroup
	stopReaper chan struct{}
	now        func() time.Time
}

// NewTaskQueue creates a task queue; call Start to launch the workers.
// Parameters:
//   - jobs: job store every transition goes through.
//   - processor: the work done for each job.
//   - m: collectors to update; may be nil.
//   - log: base logger for worker output.
//   - cfg: worker count and reaper settings.
// Returns:
//   - *TaskQueue: stopped queue that already accepts Enqueue.
func NewTaskQueue(jobs jobstore.Store, processor Processor, m *metrics.Metrics, log *logger.Logger, cfg QueueConfig) *TaskQueue {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = time.Minute
	}
	if log == nil {
		log = logger.GetDefault()
	}
	q := &TaskQueue{
		jobs:       jobs,
		processor:  processor,
		metrics:    m,
		logger:     log.WithField(logger.FieldComponent, "task_queue"),
		cfg:        cfg,
		stopReaper: make(chan struct{}),
		now:        time.Now,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a job id. It never blocks.
func (q *TaskQueue) Enqueue(jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.pending = append(q.pending, jobID)
	q.metrics.JobEnqueued()
	q.metrics.SetQueueDepth(len(q.pending))
	q.cond.Signal()
	return nil
}

// Len returns the number of jobs waiting for a worker.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Start launches the workers and, when configured, the reaper. Job work runs
// detached from ctx cancellation; ctx only supplies values such as the logger.
func (q *TaskQueue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started || q.closed {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	base := context.WithoutCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go func(workerID int) {
			defer q.wg.Done()
			q.worker(base, workerID)
		}(i)
	}

	if q.cfg.StuckJobTimeout > 0 {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.reaper(base)
		}()
	}

	q.logger.WithFields(logger.Fields{
		"workers":           q.cfg.Workers,
		"stuck_job_timeout": q.cfg.StuckJobTimeout.String(),
	}).Info("Task queue started")
}

// Stop refuses new jobs, lets running jobs finish and waits for the workers
// or for ctx. Jobs still waiting stay PENDING.
func (q *TaskQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	left := len(q.pending)
	q.cond.Broadcast()
	q.mu.Unlock()
	close(q.stopReaper)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.WithField("left_pending", left).Info("Task queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("task queue stop: %w", ctx.Err())
	}
}

// WaitIdle blocks until no job is queued or running, or until ctx is done.
func (q *TaskQueue) WaitIdle(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) > 0 || q.inflight > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		q.cond.Wait()
	}
	return nil
}

// Recover restores work left by a previous process. RUNNING jobs are failed
// because their worker is gone; PENDING jobs are queued again, oldest first.
// Call it before Start.
func (q *TaskQueue) Recover(ctx context.Context) (requeued, failed int, err error) {
	running, err := q.jobs.ListByState(ctx, domain.JobStateRunning)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list running jobs: %w", err)
	}
	for _, job := range running {
		jobCtx := logger.SetJobID(ctx, job.ID)
		if err := q.jobs.SetFailure(jobCtx, job.ID, interruptedDetail); err != nil {
			q.reportTransition(jobCtx, err, domain.JobStateFailure)
			continue
		}
		failed++
	}

	pending, err := q.jobs.ListByState(ctx, domain.JobStatePending)
	if err != nil {
		return 0, failed, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	for _, job := range pending {
		if err := q.Enqueue(job.ID); err != nil {
			return requeued, failed, err
		}
		requeued++
	}

	if requeued > 0 || failed > 0 {
		q.logger.WithFields(logger.Fields{
			"requeued": requeued,
			"failed":   failed,
		}).Info("Recovered jobs from previous run")
	}
	return requeued, failed, nil
}

// next blocks for the next job id; false means the queue is closed.
func (q *TaskQueue) next() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return "", false
	}
	id := q.pending[0]
	q.pending[0] = ""
	q.pending = q.pending[1:]
	q.inflight++
	q.metrics.SetQueueDepth(len(q.pending))
	return id, true
}

func (q *TaskQueue) done() {
	q.mu.Lock()
	q.inflight--
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *TaskQueue) worker(ctx context.Context, workerID int) {
	ctx = logger.SetWorkerID(q.logger.WithContext(ctx), workerID)
	for {
		id, ok := q.next()
		if !ok {
			return
		}
		q.run(logger.SetJobID(ctx, id), id)
		q.done()
	}
}

// run drives one job from PENDING to a terminal state. A store error on the
// way never leaves the job silently behind: the worker falls back to FAILURE.
func (q *TaskQueue) run(ctx context.Context, id string) {
	job, err := q.jobs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.FromContext(ctx).WithError(err).Error("Dequeued job does not exist")
			return
		}
		logger.FromContext(ctx).WithError(err).Error("Dequeued job cannot be loaded")
		q.failUnstarted(ctx, id, fmt.Sprintf("failed to load job: %v", err))
		return
	}

	if err := q.jobs.SetRunning(ctx, id); err != nil {
		q.reportTransition(ctx, err, domain.JobStateRunning)
		if !isStateError(err) {
			q.failUnstarted(ctx, id, fmt.Sprintf("failed to start job: %v", err))
		}
		return
	}
	q.metrics.JobStarted()
	start := q.now()

	count, procErr := q.process(ctx, job)
	elapsed := q.now().Sub(start)

	if procErr == nil {
		err := q.jobs.SetSuccess(ctx, id, count)
		if err == nil {
			q.metrics.JobFinished(string(domain.JobStateSuccess), elapsed, count)
			logger.With(logger.Fields{
				logger.FieldFile:  job.FileName,
				logger.FieldState: domain.JobStateSuccess,
			}).WithCount(count).WithDuration(elapsed).Info(ctx, "Job succeeded")
			return
		}
		q.reportTransition(ctx, err, domain.JobStateSuccess)
		if isStateError(err) {
			// someone else already finished it, usually the reaper
			q.metrics.JobDropped()
			return
		}
		procErr = fmt.Errorf("failed to record success: %w", err)
	}

	logger.With(logger.Fields{
		logger.FieldFile:  job.FileName,
		logger.FieldState: domain.JobStateFailure,
	}).WithDuration(elapsed).Warn(ctx, "Job failed: %v", procErr)

	if err := q.jobs.SetFailure(ctx, id, procErr.Error()); err != nil {
		q.reportTransition(ctx, err, domain.JobStateFailure)
		q.metrics.JobDropped()
		return
	}
	q.metrics.JobFinished(string(domain.JobStateFailure), elapsed, 0)
}

// failUnstarted moves a dequeued job that never reached RUNNING to FAILURE.
// If the store refuses again the job stays PENDING until Recover.
func (q *TaskQueue) failUnstarted(ctx context.Context, id, detail string) {
	err := q.jobs.SetRunning(ctx, id)
	if err == nil {
		err = q.jobs.SetFailure(ctx, id, detail)
	}
	if err != nil {
		q.reportTransition(ctx, err, domain.JobStateFailure)
		return
	}
	logger.FromContext(ctx).WithField("detail", detail).Warn("Job failed before it started")
}

// process runs the processor and turns a panic into an error.
func (q *TaskQueue) process(ctx context.Context, job *domain.Job) (count int, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).WithField("stack", string(debug.Stack())).Errorf("Job panicked: %v", r)
			count, err = 0, fmt.Errorf("internal error: %v", r)
		}
	}()
	return q.processor.Process(ctx, job.FileRef)
}

// reportTransition logs a failed job store transition. A *domain.StateError
// means two parties disagree about a job's lifecycle and is marked as a bug.
func (q *TaskQueue) reportTransition(ctx context.Context, err error, to domain.JobState) {
	log := logger.FromContext(ctx).WithError(err).WithField("target_state", to)
	if isStateError(err) {
		log.WithField("bug", true).Error("Illegal job transition")
		return
	}
	log.Error("Job transition failed")
}

func (q *TaskQueue) reaper(ctx context.Context) {
	ticker := time.NewTicker(q.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-q.stopReaper:
			return
		case <-ticker.C:
			q.reapStuck(ctx)
		}
	}
}

// reapStuck fails RUNNING jobs that started more than StuckJobTimeout ago.
func (q *TaskQueue) reapStuck(ctx context.Context) int {
	running, err := q.jobs.ListByState(ctx, domain.JobStateRunning)
	if err != nil {
		q.logger.WithError(err).Error("Failed to list running jobs")
		return 0
	}
	cutoff := q.now().Add(-q.cfg.StuckJobTimeout)
	reaped := 0
	for _, job := range running {
		if job.StartedAt == nil || job.StartedAt.After(cutoff) {
			continue
		}
		jobCtx := logger.SetJobID(ctx, job.ID)
		detail := fmt.Sprintf("timed out: running longer than %s", q.cfg.StuckJobTimeout)
		if err := q.jobs.SetFailure(jobCtx, job.ID, detail); err != nil {
			// finished between the listing and now
			if !isStateError(err) {
				q.reportTransition(jobCtx, err, domain.JobStateFailure)
			}
			continue
		}
		reaped++
		logger.FromContext(jobCtx).Warn("Reaped stuck job")
	}
	return reaped
}

func isStateError(err error) bool {
	var stateErr *domain.StateError
	return errors.As(err, &stateErr)
}
