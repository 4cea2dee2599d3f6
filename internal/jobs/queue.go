// Package jobs queues background content work on a worker pool.
package jobs

import (
	"context"

	"github.com/vytor/ceplayer/internal/content"
	"github.com/vytor/ceplayer/internal/logger"
	"github.com/vytor/ceplayer/internal/worker"
)

// JobQueue provides an abstraction for enqueueing background jobs
type JobQueue interface {
	// EnqueueWarm loads one block's manifest into the cache.
	EnqueueWarm(ctx context.Context, hour int, blockID string) error
	// EnqueueWarmAll loads every block in the outline.
	EnqueueWarmAll(ctx context.Context) error
	// EnqueueForPath re-warms whatever a change to path invalidated.
	EnqueueForPath(ctx context.Context, path string) error
}

// WorkerQueue implements JobQueue using a worker pool
type WorkerQueue struct {
	pool   *worker.Pool
	source *content.Source
}

// NewWorkerQueue creates a new WorkerQueue implementation
func NewWorkerQueue(pool *worker.Pool, source *content.Source) *WorkerQueue {
	return &WorkerQueue{pool: pool, source: source}
}

func (q *WorkerQueue) EnqueueWarm(ctx context.Context, hour int, blockID string) error {
	return q.pool.Submit(ctx, &content.WarmJob{Source: q.source, Hour: hour, Block: blockID})
}

func (q *WorkerQueue) EnqueueWarmAll(ctx context.Context) error {
	return q.source.Warm(ctx, q.pool)
}

func (q *WorkerQueue) EnqueueForPath(ctx context.Context, path string) error {
	if hour, blockID, ok := q.source.BlockOf(path); ok {
		return q.EnqueueWarm(ctx, hour, blockID)
	}
	if q.source.AboveBlocks(path) {
		logger.FromContext(ctx).Debug("re-warming every block after change to %s", path)
		return q.EnqueueWarmAll(ctx)
	}
	return nil
}
