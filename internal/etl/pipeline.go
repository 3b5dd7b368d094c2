package etl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BartekS5/ida/pkg/logger"
	"github.com/BartekS5/ida/pkg/models"
)

// Runner drives ImportBatch until the session has no more pages, keeping
// the next offset in a checkpoint file so an interrupted run resumes where
// it stopped.
type Runner struct {
	Engine        *Engine
	BatchSize     int
	CheckpointDir string
	DryRun        bool
}

// RunSummary totals the batches of one Run call.
type RunSummary struct {
	Batches int                  `json:"batches"`
	Delta   models.BatchDelta    `json:"-"`
	Status  models.SessionStatus `json:"status"`
	// Remaining is only set by a dry run.
	Remaining int `json:"remaining,omitempty"`
}

func NewRunner(engine *Engine, batchSize int, checkpointDir string, dryRun bool) *Runner {
	return &Runner{
		Engine:        engine,
		BatchSize:     batchSize,
		CheckpointDir: checkpointDir,
		DryRun:        dryRun,
	}
}

func (r *Runner) checkpointFile(sessionID string) string {
	return filepath.Join(r.CheckpointDir, "checkpoint-"+sessionID+".txt")
}

func (r *Runner) Run(ctx context.Context, sessionID, companyID string) (*RunSummary, error) {
	if r.BatchSize <= 0 {
		return nil, models.NewError(models.ErrInvalidRequest, "batch size must be positive")
	}
	session, err := r.Engine.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.CheckImportable(); err != nil {
		return nil, err
	}

	checkpoint := r.checkpointFile(sessionID)
	offset := loadCheckpoint(checkpoint)
	logger.Infof("Starting import run. Session: %s, Batch Size: %d, Start Offset: %d, DryRun: %v",
		sessionID, r.BatchSize, offset, r.DryRun)

	summary := &RunSummary{Status: session.Status}
	if r.DryRun {
		summary.Remaining = session.TotalCount - session.Processed()
		if summary.Remaining < 0 {
			summary.Remaining = 0
		}
		summary.Batches = (summary.Remaining + r.BatchSize - 1) / r.BatchSize
		logger.Infof("[DRY RUN] %d of %d records left, about %d batches",
			summary.Remaining, session.TotalCount, summary.Batches)
		return summary, nil
	}

	startTime := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res, err := r.Engine.ImportBatch(ctx, BatchRequest{
			SessionID: sessionID,
			CompanyID: companyID,
			Skip:      offset,
			Limit:     r.BatchSize,
		})
		if err != nil {
			logger.Errorf("Batch failed at offset %d: %v", offset, err)
			return summary, err
		}

		summary.Batches++
		summary.Status = res.Status
		summary.Delta.Add(models.BatchDelta{
			Imported: res.ImportedCount,
			Skipped:  res.SkippedCount,
			Errors:   res.Errors,
		})
		offset += r.BatchSize

		processed := summary.Delta.Imported + summary.Delta.Skipped + summary.Delta.ErrorCount()
		rate := 0.0
		if d := time.Since(startTime); d.Seconds() > 0 {
			rate = float64(processed) / d.Seconds()
		}
		logger.Infof("Batch done. Total: %d. Rate: %.2f records/sec. New Offset: %d", processed, rate, offset)

		if !res.HasMore {
			break
		}
		if err := saveCheckpoint(checkpoint, offset); err != nil {
			logger.Warnf("Saving checkpoint: %v", err)
		}
	}

	if summary.Status != models.StatusCompleted {
		logger.Warnf("Source exhausted but session %s is %s", sessionID, summary.Status)
	}
	if err := os.Remove(checkpoint); err != nil && !os.IsNotExist(err) {
		logger.Warnf("Removing checkpoint: %v", err)
	}
	logger.Info("Import run finished.")
	return summary, nil
}

func loadCheckpoint(filename string) int {
	data, err := os.ReadFile(filename)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n < 0 {
		logger.Warnf("Ignoring unreadable checkpoint %s", filename)
		return 0
	}
	return n
}

func saveCheckpoint(filename string, offset int) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	return os.WriteFile(filename, []byte(fmt.Sprintf("%d", offset)), 0o644)
}
