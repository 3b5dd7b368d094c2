package etl

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/BartekS5/ida/pkg/logger"
	"github.com/BartekS5/ida/pkg/models"
)

// SQLStore is the relational target. The connection is owned by the caller.
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, dialect: dialectFor(db.DriverName())}
}

// EnsureSchema creates the target tables that do not exist yet. Existing
// tables are left untouched.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	for _, t := range tables {
		for _, stmt := range s.dialect.createTable(t) {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return errors.Wrapf(err, "create %s", t.kind.Table())
			}
		}
		logger.Debugf("Schema ready: %s", t.kind.Table())
	}
	return nil
}

// Transactional runs fn in one transaction, committing only when fn
// returns nil.
func (s *SQLStore) Transactional(ctx context.Context, fn func(tx TargetTx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Errorf("Rollback failed: %v", rbErr)
			}
		}
	}()

	if err = fn(&sqlTx{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

func (s *SQLStore) CreateSession(ctx context.Context, m *models.MigrationSession) error {
	return createSession(ctx, s.db, m)
}

func (s *SQLStore) GetSession(ctx context.Context, id string) (*models.MigrationSession, error) {
	return getSession(ctx, s.db, id)
}

func (s *SQLStore) UpdateSession(ctx context.Context, m *models.MigrationSession) error {
	return updateSession(ctx, s.db, m)
}

// ListSessions returns a company's sessions, newest first.
func (s *SQLStore) ListSessions(ctx context.Context, companyID string) ([]*models.MigrationSession, error) {
	var rows []sessionRow
	q := s.db.Rebind("SELECT * FROM migration_sessions WHERE company_id = ? ORDER BY created_at DESC")
	if err := s.db.SelectContext(ctx, &rows, q, companyID); err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}
	out := make([]*models.MigrationSession, 0, len(rows))
	for _, r := range rows {
		m, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// sessionRow is the flat storage shape of a session.
type sessionRow struct {
	ID              string     `db:"id"`
	CompanyID       string     `db:"company_id"`
	CreatedBy       string     `db:"created_by"`
	SourceCompanyID string     `db:"source_company_id"`
	EntityTypes     string     `db:"entity_types"`
	Status          string     `db:"status"`
	TotalCount      int        `db:"total_count"`
	ImportedCount   int        `db:"imported_count"`
	SkippedCount    int        `db:"skipped_count"`
	ErrorCount      int        `db:"error_count"`
	Errors          string     `db:"errors"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
	CompletedAt     *time.Time `db:"completed_at"`
}

func newSessionRow(m *models.MigrationSession) (sessionRow, error) {
	types, err := json.Marshal(m.EntityTypes)
	if err != nil {
		return sessionRow{}, errors.Wrap(err, "encode entity types")
	}
	errs := m.Errors
	if errs == nil {
		errs = []models.SessionError{}
	}
	errJSON, err := json.Marshal(errs)
	if err != nil {
		return sessionRow{}, errors.Wrap(err, "encode session errors")
	}
	return sessionRow{
		ID:              m.ID,
		CompanyID:       m.CompanyID,
		CreatedBy:       m.CreatedBy,
		SourceCompanyID: m.SourceCompanyID,
		EntityTypes:     string(types),
		Status:          string(m.Status),
		TotalCount:      m.TotalCount,
		ImportedCount:   m.ImportedCount,
		SkippedCount:    m.SkippedCount,
		ErrorCount:      m.ErrorCount,
		Errors:          string(errJSON),
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
		CompletedAt:     utcPtr(m.CompletedAt),
	}, nil
}

func (r sessionRow) toModel() (*models.MigrationSession, error) {
	m := &models.MigrationSession{
		ID:              r.ID,
		CompanyID:       r.CompanyID,
		CreatedBy:       r.CreatedBy,
		SourceCompanyID: r.SourceCompanyID,
		Status:          models.SessionStatus(r.Status),
		TotalCount:      r.TotalCount,
		ImportedCount:   r.ImportedCount,
		SkippedCount:    r.SkippedCount,
		ErrorCount:      r.ErrorCount,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		CompletedAt:     r.CompletedAt,
	}
	if !m.Status.Valid() {
		return nil, fmt.Errorf("session %s has unknown status %q", r.ID, r.Status)
	}
	if err := json.Unmarshal([]byte(r.EntityTypes), &m.EntityTypes); err != nil {
		return nil, errors.Wrapf(err, "decode entity types of session %s", r.ID)
	}
	if err := json.Unmarshal([]byte(r.Errors), &m.Errors); err != nil {
		return nil, errors.Wrapf(err, "decode errors of session %s", r.ID)
	}
	if m.Errors == nil {
		m.Errors = []models.SessionError{}
	}
	return m, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
}

func createSession(ctx context.Context, q queryer, m *models.MigrationSession) error {
	row, err := newSessionRow(m)
	if err != nil {
		return err
	}
	t, _ := tableFor(kindSession)
	if _, err := q.NamedExecContext(ctx, t.insertSQL(), row); err != nil {
		return errors.Wrapf(err, "insert session %s", m.ID)
	}
	return nil
}

func getSession(ctx context.Context, q queryer, id string) (*models.MigrationSession, error) {
	var row sessionRow
	err := q.GetContext(ctx, &row, q.Rebind("SELECT * FROM migration_sessions WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewError(models.ErrSessionNotFound, "session %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load session %s", id)
	}
	return row.toModel()
}

const updateSessionSQL = `UPDATE migration_sessions SET
	status = :status,
	total_count = :total_count,
	imported_count = :imported_count,
	skipped_count = :skipped_count,
	error_count = :error_count,
	errors = :errors,
	updated_at = :updated_at,
	completed_at = :completed_at
WHERE id = :id`

func updateSession(ctx context.Context, q queryer, m *models.MigrationSession) error {
	row, err := newSessionRow(m)
	if err != nil {
		return err
	}
	res, err := q.NamedExecContext(ctx, updateSessionSQL, row)
	if err != nil {
		return errors.Wrapf(err, "update session %s", m.ID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.NewError(models.ErrSessionNotFound, "session %s not found", m.ID)
	}
	return nil
}

type sqlTx struct {
	tx      *sqlx.Tx
	dialect dialect
}

func (t *sqlTx) GetSession(ctx context.Context, id string) (*models.MigrationSession, error) {
	return getSession(ctx, t.tx, id)
}

func (t *sqlTx) UpdateSession(ctx context.Context, m *models.MigrationSession) error {
	return updateSession(ctx, t.tx, m)
}

func (t *sqlTx) Exists(ctx context.Context, kind models.EntityKind, sourceID, companyID string) (string, bool, error) {
	var id string
	q := t.tx.Rebind(fmt.Sprintf("SELECT id FROM %s WHERE company_id = ? AND source_id = ?", kind.Table()))
	err := t.tx.GetContext(ctx, &id, q, companyID, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "lookup %s %s", kind, sourceID)
	}
	return id, true, nil
}

func (t *sqlTx) Insert(ctx context.Context, kind models.EntityKind, row interface{}) error {
	def, err := tableFor(kind)
	if err != nil {
		return err
	}
	if _, err := t.tx.NamedExecContext(ctx, def.insertSQL(), row); err != nil {
		return errors.Wrapf(err, "insert into %s", kind.Table())
	}
	return nil
}

func (t *sqlTx) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, t.dialect.savepoint(name))
	return errors.Wrap(err, "savepoint")
}

func (t *sqlTx) RollbackTo(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, t.dialect.rollbackTo(name))
	return errors.Wrap(err, "rollback to savepoint")
}

func (t *sqlTx) Release(ctx context.Context, name string) error {
	stmt := t.dialect.release(name)
	if stmt == "" {
		return nil
	}
	_, err := t.tx.ExecContext(ctx, stmt)
	return errors.Wrap(err, "release savepoint")
}

func (t *sqlTx) where(kind models.EntityKind, f Filter) (string, []interface{}, error) {
	def, err := tableFor(kind)
	if err != nil {
		return "", nil, err
	}
	if f.SessionID == "" {
		return "", nil, fmt.Errorf("filter on %s needs a session id", kind)
	}
	clauses := []string{"migration_session_id = ?"}
	args := []interface{}{f.SessionID}
	if f.Depth != nil {
		if !def.has("depth") {
			return "", nil, fmt.Errorf("%s has no depth", kind)
		}
		clauses = append(clauses, "depth = ?")
		args = append(args, *f.Depth)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func (t *sqlTx) NativeDelete(ctx context.Context, kind models.EntityKind, f Filter) (int, error) {
	where, args, err := t.where(kind, f)
	if err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind("DELETE FROM "+kind.Table()+where), args...)
	if err != nil {
		return 0, errors.Wrapf(err, "delete from %s", kind.Table())
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrapf(err, "delete from %s", kind.Table())
	}
	return int(n), nil
}

func (t *sqlTx) Count(ctx context.Context, kind models.EntityKind, f Filter) (int, error) {
	where, args, err := t.where(kind, f)
	if err != nil {
		return 0, err
	}
	var n int
	if err := t.tx.GetContext(ctx, &n, t.tx.Rebind("SELECT COUNT(*) FROM "+kind.Table()+where), args...); err != nil {
		return 0, errors.Wrapf(err, "count %s", kind.Table())
	}
	return n, nil
}

func (t *sqlTx) MaxDepth(ctx context.Context, sessionID string) (int, bool, error) {
	var depth sql.NullInt64
	q := t.tx.Rebind("SELECT MAX(depth) FROM categories WHERE migration_session_id = ?")
	if err := t.tx.GetContext(ctx, &depth, q, sessionID); err != nil {
		return 0, false, errors.Wrap(err, "max category depth")
	}
	return int(depth.Int64), depth.Valid, nil
}

func (t *sqlTx) SourceIndex(ctx context.Context, kind models.EntityKind, companyID string) (map[string]string, error) {
	var rows []struct {
		ID       string `db:"id"`
		SourceID string `db:"source_id"`
	}
	q := t.tx.Rebind(fmt.Sprintf("SELECT id, source_id FROM %s WHERE company_id = ?", kind.Table()))
	if err := t.tx.SelectContext(ctx, &rows, q, companyID); err != nil {
		return nil, errors.Wrapf(err, "index %s", kind.Table())
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.SourceID] = r.ID
	}
	return out, nil
}

func (t *sqlTx) Categories(ctx context.Context, companyID string) ([]models.Category, error) {
	var out []models.Category
	q := t.tx.Rebind("SELECT * FROM categories WHERE company_id = ? ORDER BY depth, sort_order, id")
	if err := t.tx.SelectContext(ctx, &out, q, companyID); err != nil {
		return nil, errors.Wrap(err, "load categories")
	}
	return out, nil
}

func (t *sqlTx) Offices(ctx context.Context, companyID string) ([]models.Office, error) {
	var out []models.Office
	q := t.tx.Rebind("SELECT id, company_id, name, source_id FROM offices WHERE company_id = ?")
	if err := t.tx.SelectContext(ctx, &out, q, companyID); err != nil {
		return nil, errors.Wrap(err, "load offices")
	}
	return out, nil
}

func (t *sqlTx) ItemFormulas(ctx context.Context, companyID string) ([]models.ItemFormula, error) {
	var out []models.ItemFormula
	q := t.tx.Rebind(`SELECT id, source_id, formula_id, legacy_formula, formula, migration_session_id
		FROM items WHERE company_id = ? ORDER BY source_id`)
	if err := t.tx.SelectContext(ctx, &out, q, companyID); err != nil {
		return nil, errors.Wrap(err, "load item formulas")
	}
	return out, nil
}

func (t *sqlTx) UpdateItemFormula(ctx context.Context, id string, formula *string) error {
	q := t.tx.Rebind("UPDATE items SET formula = ? WHERE id = ?")
	if _, err := t.tx.ExecContext(ctx, q, formula, id); err != nil {
		return errors.Wrapf(err, "update formula of item %s", id)
	}
	return nil
}
