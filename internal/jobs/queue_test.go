package jobs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/ceplayer/internal/content"
	"github.com/vytor/ceplayer/internal/jobs"
	"github.com/vytor/ceplayer/internal/worker"
)

func writeManifest(t *testing.T, dir, rel string) string {
	t.Helper()
	blockDir := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(blockDir, 0o755))
	path := filepath.Join(blockDir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"title": "t"}`), 0o644))
	return path
}

func TestWorkerQueue_EnqueueForPath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	changed := writeManifest(t, dir, "hour_1/block_001")
	writeManifest(t, dir, "hour_1/block_002")
	source := content.NewSource(dir, nil)

	pool := worker.NewPool(2, 16)
	pool.Start(ctx)
	q := jobs.NewWorkerQueue(pool, source)

	require.NoError(t, q.EnqueueForPath(ctx, changed))
	require.NoError(t, q.EnqueueForPath(ctx, filepath.Join(dir, "hour_1", "not_in_outline", "x.jpg")))
	require.NoError(t, q.EnqueueForPath(ctx, filepath.Join(dir, "course-notes.md")))
	pool.Stop()

	done, failed := pool.Stats()
	assert.Equal(t, 3, done, "one block, then the two blocks with manifests")
	assert.Equal(t, 8, failed, "outline blocks without manifests")
	assert.True(t, source.Cached(1, "block_001"))
	assert.True(t, source.Cached(1, "block_002"))
}

func TestWorkerQueue_StoppedPool(t *testing.T) {
	pool := worker.NewPool(1, 1)
	pool.Start(context.Background())
	pool.Stop()

	q := jobs.NewWorkerQueue(pool, content.NewSource(t.TempDir(), nil))
	assert.ErrorIs(t, q.EnqueueWarm(context.Background(), 1, "block_001"), worker.ErrPoolStopped)
	assert.ErrorIs(t, q.EnqueueWarmAll(context.Background()), worker.ErrPoolStopped)
}
