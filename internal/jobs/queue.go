// Package jobs runs fire-and-forget background work, such as persisting results
// and sending notifications, on a fixed pool of workers.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rewired-gh/bandarscope/internal/logger"
)

// ErrClosed is returned by Submit after Close has been called.
var ErrClosed = errors.New("job queue closed")

// ErrFull is returned by Submit when the buffer has no room.
var ErrFull = errors.New("job queue full")

// Func is a unit of background work. The context carries the job timeout.
type Func func(ctx context.Context) error

type job struct {
	name string
	fn   Func
}

// Queue is a bounded job buffer drained by a fixed worker pool.
// Submit never blocks the caller; jobs are dropped when the buffer is full.
type Queue struct {
	jobs    chan job
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New starts workers goroutines reading from a buffer of size queueSize.
// Each job runs with its own timeout, detached from any request context.
func New(workers, queueSize int, timeout time.Duration) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	q := &Queue{
		jobs:    make(chan job, queueSize),
		timeout: timeout,
	}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}
	return q
}

// Submit enqueues fn without blocking.
func (q *Queue) Submit(name string, fn Func) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		logger.Warn("Dropping job %s: queue closed", name)
		return ErrClosed
	}
	select {
	case q.jobs <- job{name: name, fn: fn}:
		return nil
	default:
		logger.Warn("Dropping job %s: queue full", name)
		return ErrFull
	}
}

// Close stops accepting jobs and waits for queued jobs to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for j := range q.jobs {
		q.run(j)
	}
}

func (q *Queue) run(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job %s panicked: %v", j.name, r)
		}
	}()

	start := time.Now()
	if err := j.fn(ctx); err != nil {
		logger.Error("Job %s failed: %v", j.name, err)
		return
	}
	logger.Debug("Job %s done in %v", j.name, time.Since(start))
}
