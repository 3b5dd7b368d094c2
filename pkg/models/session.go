package models

import (
	"fmt"
	"time"
)

// SessionStatus is the lifecycle state of a migration session.
type SessionStatus string

const (
	StatusPending        SessionStatus = "PENDING"
	StatusInProgress     SessionStatus = "IN_PROGRESS"
	StatusCompleted      SessionStatus = "COMPLETED"
	StatusRolledBack     SessionStatus = "ROLLED_BACK"
	StatusRollbackFailed SessionStatus = "ROLLBACK_FAILED"
)

// Valid reports whether s is one of the known statuses.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusRolledBack, StatusRollbackFailed:
		return true
	}
	return false
}

// EntityType names one sub-import of a session. Sessions run their entity
// types in the order of AllEntityTypes regardless of how they were requested.
type EntityType string

const (
	EntityCategories EntityType = "categories"
	EntityOptions    EntityType = "options"
	EntityUpCharges  EntityType = "upcharges"
	EntityItems      EntityType = "items"
)

// AllEntityTypes is the fixed dependency order of sub-imports.
var AllEntityTypes = []EntityType{EntityCategories, EntityOptions, EntityUpCharges, EntityItems}

// ParseEntityType validates a user supplied entity type name.
func ParseEntityType(s string) (EntityType, error) {
	for _, t := range AllEntityTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", NewError(ErrInvalidMapping, "unknown entity type %q", s)
}

// OrderEntityTypes returns the requested types deduplicated and sorted into
// dependency order. An empty request means every type.
func OrderEntityTypes(requested []EntityType) []EntityType {
	if len(requested) == 0 {
		return append([]EntityType(nil), AllEntityTypes...)
	}
	want := make(map[EntityType]bool, len(requested))
	for _, t := range requested {
		want[t] = true
	}
	out := make([]EntityType, 0, len(want))
	for _, t := range AllEntityTypes {
		if want[t] {
			out = append(out, t)
		}
	}
	return out
}

// SessionError is one captured per-record failure.
type SessionError struct {
	SourceID  string    `json:"sourceId"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// MigrationSession is the persisted progress record of one migration run.
type MigrationSession struct {
	ID              string         `json:"id"`
	CompanyID       string         `json:"companyId"`
	CreatedBy       string         `json:"createdBy"`
	SourceCompanyID string         `json:"sourceCompanyId"`
	EntityTypes     []EntityType   `json:"entityTypes"`
	Status          SessionStatus  `json:"status"`
	TotalCount      int            `json:"totalCount"`
	ImportedCount   int            `json:"importedCount"`
	SkippedCount    int            `json:"skippedCount"`
	ErrorCount      int            `json:"errorCount"`
	Errors          []SessionError `json:"errors"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty"`
}

// NewSession builds a PENDING session with its total fixed up front.
func NewSession(id, companyID, createdBy, sourceCompanyID string, types []EntityType, total int, now time.Time) *MigrationSession {
	return &MigrationSession{
		ID:              id,
		CompanyID:       companyID,
		CreatedBy:       createdBy,
		SourceCompanyID: sourceCompanyID,
		EntityTypes:     OrderEntityTypes(types),
		Status:          StatusPending,
		TotalCount:      total,
		Errors:          []SessionError{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Includes reports whether the session imports entity type t.
func (s *MigrationSession) Includes(t EntityType) bool {
	for _, et := range s.EntityTypes {
		if et == t {
			return true
		}
	}
	return false
}

// Processed is imported + skipped + errored.
func (s *MigrationSession) Processed() int {
	return s.ImportedCount + s.SkippedCount + s.ErrorCount
}

// IsTerminal reports whether no further import batch may run.
func (s *MigrationSession) IsTerminal() bool {
	switch s.Status {
	case StatusCompleted, StatusRolledBack, StatusRollbackFailed:
		return true
	}
	return false
}

// CheckImportable fails unless a batch may run against the session.
func (s *MigrationSession) CheckImportable() error {
	if s.Status == StatusPending || s.Status == StatusInProgress {
		return nil
	}
	return NewError(ErrSessionInvalidState, "session %s is %s", s.ID, s.Status)
}

// CheckRollbackable fails when the session was already rolled back or a
// rollback attempt failed.
func (s *MigrationSession) CheckRollbackable() error {
	if s.Status == StatusRolledBack || s.Status == StatusRollbackFailed {
		return NewError(ErrSessionInvalidState, "session %s is %s", s.ID, s.Status)
	}
	return nil
}

// BatchDelta is what one batch contributes to the session counters.
type BatchDelta struct {
	Imported int
	Skipped  int
	Errors   []SessionError
}

// ErrorCount is the number of captured errors in the delta.
func (d BatchDelta) ErrorCount() int { return len(d.Errors) }

// Add merges o into d.
func (d *BatchDelta) Add(o BatchDelta) {
	d.Imported += o.Imported
	d.Skipped += o.Skipped
	d.Errors = append(d.Errors, o.Errors...)
}

// ApplyBatch moves the session forward after a batch. The first batch always
// enters IN_PROGRESS; completion is evaluated after the counters update and
// needs both the total reached and no further pages.
// It returns true when this call completed the session.
func (s *MigrationSession) ApplyBatch(delta BatchDelta, hasMore bool, now time.Time) (bool, error) {
	if err := s.CheckImportable(); err != nil {
		return false, err
	}
	if s.Status == StatusPending {
		s.Status = StatusInProgress
	}
	s.ImportedCount += delta.Imported
	s.SkippedCount += delta.Skipped
	s.ErrorCount += delta.ErrorCount()
	s.Errors = append(s.Errors, delta.Errors...)
	s.UpdatedAt = now

	if s.Processed() >= s.TotalCount && !hasMore {
		s.Status = StatusCompleted
		s.stampCompleted(now)
		return true, nil
	}
	return false, nil
}

// AppendNote records an error entry that does not count toward ErrorCount,
// used for findings discovered after the records themselves were imported.
func (s *MigrationSession) AppendNote(sourceID, msg string, now time.Time) {
	s.Errors = append(s.Errors, SessionError{SourceID: sourceID, Error: msg, Timestamp: now})
	s.UpdatedAt = now
}

// MarkRolledBack is the terminal transition after a successful rollback.
func (s *MigrationSession) MarkRolledBack(now time.Time) error {
	if err := s.CheckRollbackable(); err != nil {
		return err
	}
	s.Status = StatusRolledBack
	s.UpdatedAt = now
	s.stampCompleted(now)
	return nil
}

// MarkRollbackFailed records a failed rollback attempt.
func (s *MigrationSession) MarkRollbackFailed(cause error, now time.Time) {
	s.Status = StatusRollbackFailed
	s.Errors = append(s.Errors, SessionError{
		SourceID:  s.ID,
		Error:     fmt.Sprintf("rollback failed: %v", cause),
		Timestamp: now,
	})
	s.UpdatedAt = now
}

// completedAt is stamped once; a rollback after completion keeps the
// original completion time.
func (s *MigrationSession) stampCompleted(now time.Time) {
	if s.CompletedAt == nil {
		t := now
		s.CompletedAt = &t
	}
}
