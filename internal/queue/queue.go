package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"drivemigrate/internal/logger"
	"drivemigrate/internal/model"
	"drivemigrate/internal/store"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyQueued means the job is queued or running; re-enqueueing the
	// same id must never produce a second concurrent execution.
	ErrAlreadyQueued = errors.New("job already queued")
	// ErrQueueFull means the submission backlog is saturated.
	ErrQueueFull = errors.New("queue full")
)

const backlogSize = 256

// RunFunc executes a whole work item. A returned error means the run made no
// per-file progress (e.g. unusable credentials) and the item may be retried
// as a whole; per-file failures are the engine's business and never surface
// here.
type RunFunc func(ctx context.Context, item model.WorkItem) error

// Recorder is the slice of the job store the queue needs to finalize jobs
// whose every attempt failed.
type Recorder interface {
	Update(id string, upd store.JobUpdate) error
}

// Queue hands work items to a fixed pool of workers. Each item is retried
// with exponential backoff a bounded number of times before the job is left
// in a failed terminal state.
type Queue struct {
	items    chan model.WorkItem
	workers  int
	attempts int
	initial  time.Duration
	run      RunFunc
	rec      Recorder

	mu       sync.Mutex
	inflight map[string]struct{}

	wg sync.WaitGroup
}

func New(workers, attempts int, run RunFunc, rec Recorder) *Queue {
	if workers < 1 {
		workers = 1
	}
	if attempts < 1 {
		attempts = 1
	}

	return &Queue{
		items:    make(chan model.WorkItem, backlogSize),
		workers:  workers,
		attempts: attempts,
		initial:  backoff.DefaultInitialInterval,
		run:      run,
		rec:      rec,
		inflight: make(map[string]struct{}),
	}
}

// Enqueue hands a work item to the pool. Idempotent per job id: while a job
// is queued or running, further enqueues are rejected.
func (q *Queue) Enqueue(item model.WorkItem) error {
	q.mu.Lock()
	if _, ok := q.inflight[item.JobID]; ok {
		q.mu.Unlock()
		return ErrAlreadyQueued
	}
	q.inflight[item.JobID] = struct{}{}
	q.mu.Unlock()

	select {
	case q.items <- item:
		return nil
	default:
		q.release(item.JobID)
		return ErrQueueFull
	}
}

// Start launches the worker pool. Workers park on the shared channel until
// work arrives and exit when ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	logger.Log.Info("dispatch queue started",
		zap.Int("workers", q.workers),
		zap.Int("attempts", q.attempts))
}

// Stop blocks until every worker has exited. Cancel the Start context first.
func (q *Queue) Stop() {
	q.wg.Wait()
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case item := <-q.items:
			logger.Log.Info("worker picked up job",
				zap.Int("worker", id),
				zap.String("job", item.JobID))

			q.process(ctx, item)
			q.release(item.JobID)
		}
	}
}

func (q *Queue) process(ctx context.Context, item model.WorkItem) {
	op := func() error {
		return q.run(ctx, item)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = q.initial

	policy := backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(q.attempts-1)), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, next time.Duration) {
		logger.Log.Warn("job attempt failed, will retry",
			zap.String("job", item.JobID),
			zap.Duration("next_in", next),
			zap.Error(err))
	})
	if err == nil {
		return
	}

	// Retries exhausted before any per-file progress: terminal failure.
	failed := model.JobStatusFailed
	if uerr := q.rec.Update(item.JobID, store.JobUpdate{
		Status: &failed,
		ErrorLog: []model.ErrorEntry{{
			ItemName: "dispatch",
			Message:  err.Error(),
		}},
	}); uerr != nil {
		logger.Log.Error("failed to finalize job",
			zap.String("job", item.JobID),
			zap.Error(uerr))
	}

	logger.Log.Error("job failed after retries",
		zap.String("job", item.JobID),
		zap.Int("attempts", q.attempts),
		zap.Error(err))
}

func (q *Queue) release(jobID string) {
	q.mu.Lock()
	delete(q.inflight, jobID)
	q.mu.Unlock()
}
