// Package worker provides the bounded pool that executes privacy jobs off
// the request path. Handlers enqueue and return 202; the pool drains.
package worker

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	dErrors "memberhub/pkg/domain-errors"
)

// Job is a unit of background work. Jobs must be idempotent: a job may be
// re-enqueued after a crash or an operator retry.
type Job func(ctx context.Context) error

// Pool fans jobs out to a fixed number of workers over a buffered queue.
type Pool struct {
	jobs    chan Job
	workers int
	logger  *slog.Logger
	group   *errgroup.Group
}

func NewPool(workers, queueDepth int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueDepth < 1 {
		queueDepth = 1
	}
	return &Pool{
		jobs:    make(chan Job, queueDepth),
		workers: workers,
		logger:  logger,
	}
}

// Start launches the workers. They exit when the context is cancelled or
// Close drains the queue.
func (p *Pool) Start(ctx context.Context) {
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(p.workers)
	p.group = group
	for i := 0; i < p.workers; i++ {
		group.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case job, ok := <-p.jobs:
					if !ok {
						return nil
					}
					if err := job(ctx); err != nil {
						p.logger.ErrorContext(ctx, "background job failed", "error", err)
					}
				}
			}
		})
	}
}

// Enqueue submits a job without blocking. A full queue is reported to the
// caller so the request can be rejected rather than silently dropped.
func (p *Pool) Enqueue(job Job) error {
	select {
	case p.jobs <- job:
		return nil
	default:
		return dErrors.New(dErrors.CodeUnavailable, "job queue full")
	}
}

// Close stops accepting jobs and waits for in-flight work to finish.
func (p *Pool) Close() {
	close(p.jobs)
	if p.group != nil {
		_ = p.group.Wait()
	}
}
