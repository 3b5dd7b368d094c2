package etl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BartekS5/ida/pkg/models"
)

func TestRunner_RunsToCompletion(t *testing.T) {
	store := newTestStore(t)
	e := newTestEngine(t, catalog(), store)
	dir := t.TempDir()

	s := startSession(t, e)
	runner := NewRunner(e, 2, dir, false)
	summary, err := runner.Run(context.Background(), s.ID, targetCompany)
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, summary.Status)
	assert.Equal(t, 2, summary.Batches)
	assert.Equal(t, 13, summary.Delta.Imported)
	assert.NoFileExists(t, runner.checkpointFile(s.ID))
}

func TestRunner_ResumesFromCheckpoint(t *testing.T) {
	store := newTestStore(t)
	e := newTestEngine(t, catalog(), store)
	dir := t.TempDir()
	ctx := context.Background()

	s := startSession(t, e, models.EntityOptions)
	_, err := e.ImportBatch(ctx, batch(s.ID, 0, 2))
	require.NoError(t, err)

	runner := NewRunner(e, 2, dir, false)
	require.NoError(t, os.WriteFile(runner.checkpointFile(s.ID), []byte("2\n"), 0o644))

	summary, err := runner.Run(ctx, s.ID, targetCompany)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Batches)
	assert.Equal(t, 1, summary.Delta.Imported)
	assert.Equal(t, 0, summary.Delta.Skipped)
	assert.Equal(t, models.StatusCompleted, summary.Status)
}

func TestRunner_DryRunOnlyCounts(t *testing.T) {
	store := newTestStore(t)
	e := newTestEngine(t, catalog(), store)

	s := startSession(t, e)
	summary, err := NewRunner(e, 5, t.TempDir(), true).Run(context.Background(), s.ID, targetCompany)
	require.NoError(t, err)
	assert.Equal(t, 13, summary.Remaining)
	assert.Equal(t, 3, summary.Batches)

	stored, err := e.GetSession(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestRunner_RejectsFinishedSession(t *testing.T) {
	store := newTestStore(t)
	e := newTestEngine(t, catalog(), store)
	ctx := context.Background()

	s := startSession(t, e, models.EntityUpCharges)
	_, err := e.ImportBatch(ctx, batch(s.ID, 0, 10))
	require.NoError(t, err)

	_, err = NewRunner(e, 10, t.TempDir(), false).Run(ctx, s.ID, targetCompany)
	assert.True(t, models.IsKind(err, models.ErrSessionInvalidState), "got %v", err)
}

func TestCheckpointFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "checkpoint-x.txt")
	assert.Equal(t, 0, loadCheckpoint(path))

	require.NoError(t, saveCheckpoint(path, 40))
	assert.Equal(t, 40, loadCheckpoint(path))

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	assert.Equal(t, 0, loadCheckpoint(path))
}
