package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestOrderEntityTypes(t *testing.T) {
	assert.Equal(t, AllEntityTypes, OrderEntityTypes(nil))
	assert.Equal(t,
		[]EntityType{EntityCategories, EntityItems},
		OrderEntityTypes([]EntityType{EntityItems, EntityCategories, EntityItems}))

	_, err := ParseEntityType("widgets")
	assert.True(t, IsKind(err, ErrInvalidMapping))
	et, err := ParseEntityType("upcharges")
	require.NoError(t, err)
	assert.Equal(t, EntityUpCharges, et)
}

func TestSession_ApplyBatch(t *testing.T) {
	s := NewSession("s1", "c1", "me", "legacy", nil, 3, t0)
	assert.Equal(t, StatusPending, s.Status)
	assert.Empty(t, s.Errors)

	done, err := s.ApplyBatch(BatchDelta{Imported: 1}, true, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, StatusInProgress, s.Status)
	assert.Nil(t, s.CompletedAt)

	// the total is reached but another page was reported
	done, err = s.ApplyBatch(BatchDelta{Skipped: 1, Errors: []SessionError{{SourceID: "x"}}}, true, t0.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, 3, s.Processed())

	done, err = s.ApplyBatch(BatchDelta{}, false, t0.Add(3*time.Minute))
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, StatusCompleted, s.Status)
	require.NotNil(t, s.CompletedAt)
	assert.Equal(t, t0.Add(3*time.Minute), *s.CompletedAt)
	assert.Equal(t, 1, s.ErrorCount)

	_, err = s.ApplyBatch(BatchDelta{Imported: 1}, false, t0)
	assert.True(t, IsKind(err, ErrSessionInvalidState))
	assert.Equal(t, 1, s.ImportedCount)
}

func TestSession_EmptyCompletesOnFirstBatch(t *testing.T) {
	s := NewSession("s1", "c1", "me", "legacy", nil, 0, t0)
	done, err := s.ApplyBatch(BatchDelta{}, false, t0)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, StatusCompleted, s.Status)
}

func TestSession_Notes(t *testing.T) {
	s := NewSession("s1", "c1", "me", "legacy", nil, 1, t0)
	s.AppendNote("i1", "circular formula reference: i1 -> i2 -> i1", t0)
	assert.Len(t, s.Errors, 1)
	assert.Equal(t, 0, s.ErrorCount)
}

func TestSession_Rollback(t *testing.T) {
	s := NewSession("s1", "c1", "me", "legacy", nil, 1, t0)
	_, err := s.ApplyBatch(BatchDelta{Imported: 1}, false, t0)
	require.NoError(t, err)
	completed := *s.CompletedAt

	require.NoError(t, s.MarkRolledBack(t0.Add(time.Hour)))
	assert.Equal(t, StatusRolledBack, s.Status)
	assert.Equal(t, completed, *s.CompletedAt)
	assert.True(t, s.IsTerminal())

	err = s.MarkRolledBack(t0.Add(2 * time.Hour))
	assert.True(t, IsKind(err, ErrSessionInvalidState))
}

func TestSession_RollbackFailed(t *testing.T) {
	s := NewSession("s1", "c1", "me", "legacy", nil, 5, t0)
	require.NoError(t, s.CheckRollbackable())

	s.MarkRollbackFailed(errors.New("fk violation"), t0)
	assert.Equal(t, StatusRollbackFailed, s.Status)
	require.Len(t, s.Errors, 1)
	assert.Equal(t, "rollback failed: fk violation", s.Errors[0].Error)
	assert.Nil(t, s.CompletedAt)

	assert.Error(t, s.CheckRollbackable())
	assert.Error(t, s.CheckImportable())
}

func TestErrorKinds(t *testing.T) {
	base := errors.New("dial tcp: refused")
	err := fmt.Errorf("count: %w", WrapError(ErrSourceConnectionFailed, base, "count %s", "items"))

	assert.Equal(t, ErrSourceConnectionFailed, KindOf(err))
	assert.ErrorIs(t, err, base)
	assert.ErrorIs(t, err, &MigrationError{Kind: ErrSourceConnectionFailed})
	assert.Equal(t, "SOURCE_CONNECTION_FAILED: count items: dial tcp: refused", errors.Unwrap(err).Error())
	assert.Equal(t, ErrorKind(""), KindOf(base))
}
