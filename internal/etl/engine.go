package etl

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/BartekS5/ida/internal/hierarchy"
	"github.com/BartekS5/ida/pkg/logger"
	"github.com/BartekS5/ida/pkg/models"
)

const defaultReadPageSize = 500

// Engine creates sessions, imports batches and rolls sessions back. Callers
// must not run concurrent batches for the same session.
type Engine struct {
	reader      SourceReader
	store       TargetStore
	transformer *Transformer
	validator   *Validator

	now          func() time.Time
	newID        func() string
	readPageSize int
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithReadPageSize sets the page size of full collection reads (category
// configs, offices and the item scan that builds the hierarchy).
func WithReadPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.readPageSize = n
		}
	}
}

func NewEngine(reader SourceReader, store TargetStore, mapping *models.SourceMapping, opts ...Option) *Engine {
	e := &Engine{
		reader:       reader,
		store:        store,
		transformer:  NewTransformer(mapping),
		now:          time.Now,
		newID:        uuid.NewString,
		readPageSize: defaultReadPageSize,
	}
	e.validator = e.transformer.Validator
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type CreateSessionRequest struct {
	CompanyID       string              `json:"companyId" validate:"required"`
	CreatedBy       string              `json:"createdBy" validate:"required"`
	SourceCompanyID string              `json:"sourceCompanyId" validate:"required_without=SourceEmail"`
	SourceEmail     string              `json:"sourceEmail" validate:"omitempty,email"`
	EntityTypes     []models.EntityType `json:"entityTypes" validate:"dive,oneof=categories options upcharges items"`
}

// CreateSession snapshots the source side counts and persists a PENDING
// session.
func (e *Engine) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.MigrationSession, error) {
	if err := e.validator.Struct(req); err != nil {
		return nil, models.WrapError(models.ErrInvalidRequest, err, "create session")
	}

	sourceCompany := strings.TrimSpace(req.SourceCompanyID)
	if sourceCompany == "" {
		id, err := e.reader.LookupCompanyIDByEmail(ctx, req.SourceEmail)
		if err != nil {
			return nil, err
		}
		sourceCompany = id
	}

	types := models.OrderEntityTypes(req.EntityTypes)
	total, err := e.countTotal(ctx, sourceCompany, types)
	if err != nil {
		return nil, err
	}

	s := models.NewSession(e.newID(), req.CompanyID, req.CreatedBy, sourceCompany, types, total, e.now())
	if err := e.store.CreateSession(ctx, s); err != nil {
		return nil, models.WrapError(models.ErrImportFailed, err, "persist session")
	}
	logger.WithFields(logrus.Fields{
		"session":        s.ID,
		"company":        s.CompanyID,
		"source_company": sourceCompany,
		"total":          total,
	}).Infof("Migration session created for %v", types)
	return s, nil
}

func (e *Engine) GetSession(ctx context.Context, id string) (*models.MigrationSession, error) {
	return e.store.GetSession(ctx, id)
}

// countTotal is the number of records the session will process. Categories
// count every distinct path prefix plus declared roots no item uses.
func (e *Engine) countTotal(ctx context.Context, company string, types []models.EntityType) (int, error) {
	total := 0
	for _, t := range types {
		switch t {
		case models.EntityCategories:
			roots, err := e.loadRoots(ctx, company)
			if err != nil {
				return 0, err
			}
			items, err := e.loadItems(ctx, company)
			if err != nil {
				return 0, err
			}
			total += hierarchy.CountUniquePaths(items) + unusedRoots(roots, items)
		case models.EntityOptions, models.EntityUpCharges, models.EntityItems:
			n, err := e.reader.Count(ctx, sourceKindOf(t), company)
			if err != nil {
				return 0, err
			}
			total += n
		}
	}
	return total, nil
}

func sourceKindOf(t models.EntityType) models.SourceKind {
	switch t {
	case models.EntityOptions:
		return models.SourceOptions
	case models.EntityUpCharges:
		return models.SourceUpCharges
	case models.EntityItems:
		return models.SourceItems
	}
	return models.SourceCategoryConfigs
}

func unusedRoots(roots []hierarchy.RootConfig, items []models.LegacyItem) int {
	used := map[string]bool{}
	for _, it := range items {
		if path := hierarchy.PathOf(it); len(path) > 0 {
			used[path[0]] = true
		}
	}
	n := 0
	for _, r := range roots {
		if strings.TrimSpace(r.Name) == "" || used[r.Name] {
			continue
		}
		used[r.Name] = true
		n++
	}
	return n
}

// loadAll pages through every record of kind for the company.
func (e *Engine) loadAll(ctx context.Context, kind models.SourceKind, company string) ([]models.Document, error) {
	var all []models.Document
	for skip := 0; ; skip += e.readPageSize {
		page, err := e.reader.QueryPage(ctx, kind, company, skip, e.readPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < e.readPageSize {
			return all, nil
		}
	}
}

func (e *Engine) loadRoots(ctx context.Context, company string) ([]hierarchy.RootConfig, error) {
	docs, err := e.loadAll(ctx, models.SourceCategoryConfigs, company)
	if err != nil {
		return nil, err
	}
	roots := make([]hierarchy.RootConfig, 0, len(docs))
	for _, doc := range docs {
		cfg, err := e.transformer.CategoryConfig(doc)
		if err != nil {
			logger.Warnf("Ignoring category config %s: %v", e.transformer.SourceID(doc), err)
			continue
		}
		roots = append(roots, hierarchy.RootConfig{
			Name:     cfg.Name,
			Type:     cfg.Type,
			Order:    cfg.Order,
			SourceID: cfg.SourceID,
		})
	}
	return roots, nil
}

// loadItems reads every item of the company. Records that fail to
// transform do not contribute categories.
func (e *Engine) loadItems(ctx context.Context, company string) ([]models.LegacyItem, error) {
	docs, err := e.loadAll(ctx, models.SourceItems, company)
	if err != nil {
		return nil, err
	}
	items := make([]models.LegacyItem, 0, len(docs))
	for _, doc := range docs {
		it, err := e.transformer.Item(doc)
		if err != nil {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

func (e *Engine) loadOffices(ctx context.Context, company string) ([]models.LegacyOffice, error) {
	docs, err := e.loadAll(ctx, models.SourceOffices, company)
	if err != nil {
		return nil, err
	}
	out := make([]models.LegacyOffice, 0, len(docs))
	for _, doc := range docs {
		o, err := e.transformer.Office(doc)
		if err != nil {
			logger.Warnf("Ignoring office %s: %v", e.transformer.SourceID(doc), err)
			continue
		}
		out = append(out, o)
	}
	return out, nil
}
