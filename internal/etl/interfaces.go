package etl

import (
	"context"

	"github.com/BartekS5/ida/pkg/models"
)

// SourceReader is tenant scoped read access to the legacy store. Every
// method filters by the legacy company id.
type SourceReader interface {
	Count(ctx context.Context, kind models.SourceKind, companyID string) (int, error)
	QueryPage(ctx context.Context, kind models.SourceKind, companyID string, skip, limit int) ([]models.Document, error)
	QueryByIDs(ctx context.Context, kind models.SourceKind, companyID string, ids []string) ([]models.Document, error)
	// LookupCompanyIDByEmail fails with SOURCE_COMPANY_NOT_FOUND for an
	// unknown address.
	LookupCompanyIDByEmail(ctx context.Context, email string) (string, error)
}

// Filter selects rows written by one session, optionally one category depth.
type Filter struct {
	SessionID string
	Depth     *int
}

// TargetStore owns sessions and hands out transactions.
type TargetStore interface {
	Transactional(ctx context.Context, fn func(tx TargetTx) error) error
	CreateSession(ctx context.Context, s *models.MigrationSession) error
	GetSession(ctx context.Context, id string) (*models.MigrationSession, error)
	UpdateSession(ctx context.Context, s *models.MigrationSession) error
}

// TargetTx is everything the orchestrator and rollback engine do inside one
// transaction.
type TargetTx interface {
	GetSession(ctx context.Context, id string) (*models.MigrationSession, error)
	UpdateSession(ctx context.Context, s *models.MigrationSession) error

	// Exists looks a primary row up by (source id, company).
	Exists(ctx context.Context, kind models.EntityKind, sourceID, companyID string) (string, bool, error)
	Insert(ctx context.Context, kind models.EntityKind, row interface{}) error

	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error

	NativeDelete(ctx context.Context, kind models.EntityKind, f Filter) (int, error)
	Count(ctx context.Context, kind models.EntityKind, f Filter) (int, error)
	// MaxDepth is the deepest category written by the session; false when
	// it wrote none.
	MaxDepth(ctx context.Context, sessionID string) (int, bool, error)

	// SourceIndex maps source id to row id for a primary kind.
	SourceIndex(ctx context.Context, kind models.EntityKind, companyID string) (map[string]string, error)
	Categories(ctx context.Context, companyID string) ([]models.Category, error)
	Offices(ctx context.Context, companyID string) ([]models.Office, error)
	ItemFormulas(ctx context.Context, companyID string) ([]models.ItemFormula, error)
	UpdateItemFormula(ctx context.Context, id string, formula *string) error
}
