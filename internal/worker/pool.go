package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ayarotskyi/neochess/internal/logger"
)

type Job interface {
	Run(context.Context) error
	Name() string
}

type Pool struct {
	jobs    chan Job
	wg      sync.WaitGroup
	workers int
	queue   int
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
	log     *logger.Logger
}

func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	log := logger.Default().WithPrefix("worker-pool")
	log.Debug("creating worker pool with %d workers and queue size %d", workers, queueSize)
	return &Pool{
		jobs:    make(chan Job, queueSize),
		workers: workers,
		queue:   queueSize,
		log:     log,
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		// Already started, wait for workers to finish if they're stopping
		p.wg.Wait()
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.stopped = false
	p.log.Info("starting worker pool with %d workers", p.workers)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			workerLog := p.log.WithField("worker_id", id)
			workerLog.Debug("worker started")

			for {
				select {
				case <-ctx.Done():
					workerLog.Debug("worker shutting down (context cancelled)")
					return
				case job := <-p.jobs:
					if job == nil {
						workerLog.Debug("worker shutting down (nil job received)")
						return
					}

					jobLog := workerLog.WithField("job", job.Name())
					jobLog.Debug("starting job")
					start := time.Now()

					// Create a context with the logger for the job
					jobCtx := logger.NewContext(ctx, jobLog)

					if err := job.Run(jobCtx); err != nil {
						jobLog.Error("job failed after %v: %v", time.Since(start), err)
					} else {
						jobLog.Info("job completed in %v", time.Since(start))
					}
				}
			}
		}(i + 1)
	}
}

func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.log.Info("stopping worker pool")
	if p.cancel != nil {
		p.cancel()
	}
	close(p.jobs)
	p.wg.Wait()
	p.log.Info("worker pool stopped")
}

var ErrPoolStopped = errors.New("worker pool is stopped")

// SubmitWait enqueues job, blocking until a queue slot frees up, the pool is
// stopped, or ctx is done. A fan-out that outpaces the queue gets
// backpressure here rather than a silently dropped job: callers that need to
// submit more jobs than the queue can hold should call this from as many
// goroutines as they want concurrency, not burst non-blocking sends.
func (p *Pool) SubmitWait(ctx context.Context, job Job) (err error) {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()

	if stopped {
		p.log.Debug("rejected job submission (pool stopped): %s", job.Name())
		return ErrPoolStopped
	}

	defer func() {
		if r := recover(); r != nil {
			// Channel was closed by a concurrent Stop() while we were sending.
			p.log.Debug("recovered from panic during job submission (channel closed): %s", job.Name())
			err = ErrPoolStopped
		}
	}()

	select {
	case p.jobs <- job:
		p.log.Debug("submitted job: %s", job.Name())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
