package etl

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BartekS5/ida/pkg/models"
)

func TestRollback_MatchesPreviewAndRemovesEverything(t *testing.T) {
	store := newTestStore(t)
	seedOffice(t, store, models.Office{ID: "office-1", CompanyID: targetCompany, Name: "Main Office"})
	e := newTestEngine(t, catalog(), store)
	ctx := context.Background()

	s := startSession(t, e)
	_, err := e.ImportBatch(ctx, batch(s.ID, 0, 100))
	require.NoError(t, err)
	completed, err := e.GetSession(ctx, s.ID)
	require.NoError(t, err)

	preview, err := e.PreviewRollback(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 29, preview.Total())
	assert.Equal(t, 6, preview.Counts[models.KindCategory])
	assert.Equal(t, 4, preview.Counts[models.KindPrice])

	stats, err := e.Rollback(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, preview.Counts, stats.Counts)

	after, err := e.PreviewRollback(ctx, s.ID)
	require.NoError(t, err)
	assert.Zero(t, after.Total())
	assert.Len(t, after.Counts, len(preview.Counts))

	stored, err := e.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRolledBack, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	assert.True(t, stored.CompletedAt.Equal(*completed.CompletedAt))

	// the pre-existing office is not part of the session
	err = store.Transactional(ctx, func(tx TargetTx) error {
		offices, err := tx.Offices(ctx, targetCompany)
		assert.Len(t, offices, 1)
		return err
	})
	require.NoError(t, err)

	_, err = e.Rollback(ctx, s.ID)
	assert.True(t, models.IsKind(err, models.ErrSessionInvalidState), "got %v", err)
}

func TestRollback_PendingAndInProgressSessions(t *testing.T) {
	store := newTestStore(t)
	e := newTestEngine(t, catalog(), store)
	ctx := context.Background()

	pending := startSession(t, e, models.EntityOptions)
	stats, err := e.Rollback(ctx, pending.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.Total())

	running := startSession(t, e, models.EntityOptions)
	res, err := e.ImportBatch(ctx, batch(running.ID, 0, 1))
	require.NoError(t, err)
	require.Equal(t, models.StatusInProgress, res.Status)

	stats, err = e.Rollback(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Counts[models.KindPriceOption])
}

func TestRollback_FailureMarksSession(t *testing.T) {
	store := newTestStore(t)
	e := newTestEngine(t, catalog(), store)
	ctx := context.Background()

	cats := startSession(t, e, models.EntityCategories)
	_, err := e.ImportBatch(ctx, batch(cats.ID, 0, 10))
	require.NoError(t, err)

	// items of a later session still point at these categories
	items := startSession(t, e, models.EntityItems)
	_, err = e.ImportBatch(ctx, batch(items.ID, 0, 10))
	require.NoError(t, err)

	_, err = e.Rollback(ctx, cats.ID)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.ErrRollbackFailed), "got %v", err)

	stored, err := e.GetSession(ctx, cats.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRollbackFailed, stored.Status)
	require.NotEmpty(t, stored.Errors)
	assert.True(t, strings.HasPrefix(stored.Errors[len(stored.Errors)-1].Error, "rollback failed"))

	assert.Equal(t, 6, countRows(t, store, models.KindCategory, cats.ID), "failed rollback deletes nothing")

	preview, err := e.PreviewRollback(ctx, cats.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, preview.Total())

	_, err = e.Rollback(ctx, cats.ID)
	assert.True(t, models.IsKind(err, models.ErrSessionInvalidState), "got %v", err)
}

func TestRollback_UnknownSession(t *testing.T) {
	e := newTestEngine(t, catalog(), newTestStore(t))

	_, err := e.Rollback(context.Background(), "nope")
	assert.True(t, models.IsKind(err, models.ErrSessionNotFound), "got %v", err)

	_, err = e.PreviewRollback(context.Background(), "nope")
	assert.True(t, models.IsKind(err, models.ErrSessionNotFound), "got %v", err)
}
