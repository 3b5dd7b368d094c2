package etl

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/BartekS5/ida/pkg/logger"
	"github.com/BartekS5/ida/pkg/models"
)

// rollbackOrder lists the tagged tables children first. Categories are
// handled separately, deepest level first, before images.
var rollbackOrder = []models.EntityKind{
	models.KindItemOption,
	models.KindItemOffice,
	models.KindItemExtraField,
	models.KindUpChargeDisabledOption,
	models.KindPrice,
	models.KindItem,
	models.KindPriceOption,
	models.KindUpCharge,
	models.KindExtraField,
}

// RollbackStats is the number of rows per table a rollback removes (or
// would remove, for a preview).
type RollbackStats struct {
	Counts map[models.EntityKind]int `json:"counts"`
}

func newRollbackStats() *RollbackStats {
	s := &RollbackStats{Counts: map[models.EntityKind]int{}}
	for _, k := range rollbackOrder {
		s.Counts[k] = 0
	}
	s.Counts[models.KindCategory] = 0
	s.Counts[models.KindImage] = 0
	return s
}

func (s *RollbackStats) Total() int {
	n := 0
	for _, c := range s.Counts {
		n += c
	}
	return n
}

// Rollback deletes every row the session wrote, in one transaction. When it
// fails the session is marked ROLLBACK_FAILED outside that transaction and
// the error is returned.
func (e *Engine) Rollback(ctx context.Context, sessionID string) (stats *RollbackStats, err error) {
	defer func() {
		getMetrics().rollbackTotal.WithLabelValues(outcome(err)).Inc()
	}()

	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.CheckRollbackable(); err != nil {
		return nil, err
	}
	log := logger.WithFields(logrus.Fields{"session": session.ID, "company": session.CompanyID})

	err = e.store.Transactional(ctx, func(tx TargetTx) error {
		s, err := sweep(ctx, tx, session.ID, true)
		if err != nil {
			return err
		}
		if err := session.MarkRolledBack(e.now()); err != nil {
			return err
		}
		if err := tx.UpdateSession(ctx, session); err != nil {
			return err
		}
		stats = s
		return nil
	})
	if err == nil {
		log.WithField("deleted", stats.Total()).Info("Session rolled back")
		return stats, nil
	}

	log.Errorf("Rollback failed: %v", err)
	// the in-memory session may have been advanced inside the aborted
	// transaction
	failed, getErr := e.store.GetSession(ctx, sessionID)
	if getErr != nil {
		log.Errorf("Reload after failed rollback: %v", getErr)
		failed = session
	}
	failed.MarkRollbackFailed(err, e.now())
	if upErr := e.store.UpdateSession(ctx, failed); upErr != nil {
		log.Errorf("Marking session ROLLBACK_FAILED: %v", upErr)
	}
	return nil, models.WrapError(models.ErrRollbackFailed, err, "rollback session %s", sessionID)
}

// PreviewRollback counts what Rollback would delete. It works in any state.
func (e *Engine) PreviewRollback(ctx context.Context, sessionID string) (*RollbackStats, error) {
	if _, err := e.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	var stats *RollbackStats
	err := e.store.Transactional(ctx, func(tx TargetTx) error {
		s, err := sweep(ctx, tx, sessionID, false)
		stats = s
		return err
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// sweep walks the rollback plan, deleting when apply is set and counting
// otherwise.
func sweep(ctx context.Context, tx TargetTx, sessionID string, apply bool) (*RollbackStats, error) {
	stats := newRollbackStats()
	step := func(kind models.EntityKind, f Filter) error {
		var n int
		var err error
		if apply {
			n, err = tx.NativeDelete(ctx, kind, f)
		} else {
			n, err = tx.Count(ctx, kind, f)
		}
		if err != nil {
			return err
		}
		stats.Counts[kind] += n
		return nil
	}

	for _, kind := range rollbackOrder {
		if err := step(kind, Filter{SessionID: sessionID}); err != nil {
			return nil, err
		}
	}

	maxDepth, ok, err := tx.MaxDepth(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if ok {
		for depth := maxDepth; depth >= 0; depth-- {
			d := depth
			if err := step(models.KindCategory, Filter{SessionID: sessionID, Depth: &d}); err != nil {
				return nil, err
			}
		}
	}

	if err := step(models.KindImage, Filter{SessionID: sessionID}); err != nil {
		return nil, err
	}
	return stats, nil
}
