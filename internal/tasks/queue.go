package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Func is a unit of best-effort work.
type Func func(ctx context.Context) error

type job struct {
	name string
	fn   Func
}

// Queue runs fire-and-forget work on a fixed worker pool. Failures are
// logged and swallowed; a full queue drops the job.
type Queue struct {
	jobs    chan job
	timeout time.Duration
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewQueue(workers, buffer int, timeout time.Duration, logger *zap.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		jobs:    make(chan job, buffer),
		timeout: timeout,
		logger:  logger.Named("tasks"),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

// Submit never blocks. It reports whether the job was accepted.
func (q *Queue) Submit(name string, fn Func) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("queue closed, dropping task", zap.String("task", name))
		return false
	}
	select {
	case q.jobs <- job{name: name, fn: fn}:
		return true
	default:
		q.logger.Warn("queue full, dropping task", zap.String("task", name))
		return false
	}
}

// Close stops accepting work and waits for queued jobs to drain.
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
	q.cancel()
}

func (q *Queue) work() {
	defer q.wg.Done()
	for j := range q.jobs {
		q.run(j)
	}
}

func (q *Queue) run(j job) {
	ctx := q.ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked", zap.String("task", j.name), zap.Any("panic", r))
		}
	}()

	start := time.Now()
	if err := j.fn(ctx); err != nil {
		q.logger.Warn("task failed",
			zap.String("task", j.name),
			zap.Duration("took", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	q.logger.Debug("task done", zap.String("task", j.name), zap.Duration("took", time.Since(start)))
}
