package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/ceplayer/internal/worker"
)

type countJob struct {
	n   *atomic.Int32
	err error
}

func (j countJob) Name() string { return "count" }

func (j countJob) Run(context.Context) error {
	j.n.Add(1)
	return j.err
}

func TestPool_RunsEveryQueuedJobBeforeStopping(t *testing.T) {
	var n atomic.Int32
	p := worker.NewPool(3, 4)
	p.Start(context.Background())

	for i := 0; i < 20; i++ {
		var err error
		if i%5 == 0 {
			err = errors.New("boom")
		}
		require.NoError(t, p.Submit(context.Background(), countJob{n: &n, err: err}))
	}
	p.Stop()

	assert.EqualValues(t, 20, n.Load())
	done, failed := p.Stats()
	assert.Equal(t, 16, done)
	assert.Equal(t, 4, failed)
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := worker.NewPool(1, 1)
	p.Start(context.Background())
	p.Stop()
	p.Stop()

	var n atomic.Int32
	err := p.Submit(context.Background(), countJob{n: &n})
	assert.ErrorIs(t, err, worker.ErrPoolStopped)
}

func TestPool_SubmitHonoursContextWhenFull(t *testing.T) {
	var n atomic.Int32
	p := worker.NewPool(1, 1)

	require.NoError(t, p.Submit(context.Background(), countJob{n: &n}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Submit(ctx, countJob{n: &n}), context.Canceled)
	assert.Equal(t, 1, p.QueueSize())
}
