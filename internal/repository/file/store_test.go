package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/vytor/ceplayer/internal/models"
	"github.com/vytor/ceplayer/internal/repository"
	"github.com/vytor/ceplayer/internal/repository/file"
	"github.com/vytor/ceplayer/internal/repository/repotest"
)

func TestFileStore(t *testing.T) {
	suite.Run(t, &repotest.StoreSuite{
		NewStore: func(t *testing.T) repository.Store { return file.NewStore(t.TempDir()) },
	})
}

func TestFileStore_SharedDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := file.NewStore(dir)
	b := file.NewStore(dir)

	_, err := a.Ledgers().Update(ctx, "ceplayer-progress/learner-1", func(l *models.Ledger) error {
		l.Hour(1).TotalSecondsElapsed = 120
		return nil
	})
	require.NoError(t, err)

	l, err := b.Ledgers().Load(ctx, "ceplayer-progress/learner-1")
	require.NoError(t, err)
	assert.Equal(t, 120, l.Hours[1].TotalSecondsElapsed)

	_, err = os.Stat(filepath.Join(dir, "ledgers", "ceplayer-progress%2Flearner-1.json"))
	assert.NoError(t, err, "namespace separators are escaped into a single file name")
}

func TestFileStore_HandEditedCorruptStart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ledgers"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ledgers", "ceplayer-progress.json"),
		[]byte(`{"current_hour":2,"current_block":"intro","session_start":-5,"hours":{"2":{"total_seconds_elapsed":61}}}`), 0o644))

	l, err := file.NewStore(dir).Ledgers().Load(ctx, "ceplayer-progress")
	require.NoError(t, err)
	assert.False(t, l.HasOpenSession())
	assert.Equal(t, 61, l.Hours[2].TotalSecondsElapsed)
	assert.NotNil(t, l.Hours[2].Blocks)
}
