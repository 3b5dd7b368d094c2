package etl

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BartekS5/ida/pkg/database"
	"github.com/BartekS5/ida/pkg/models"
)

const (
	sourceCompany = "legacyCo"
	targetCompany = "company-1"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeReader serves documents of a single legacy company from memory.
type fakeReader struct {
	company string
	docs    map[models.SourceKind][]models.Document
	emails  map[string]string
	err     error
	pages   int
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		company: sourceCompany,
		docs:    map[models.SourceKind][]models.Document{},
		emails:  map[string]string{},
	}
}

func (f *fakeReader) scoped(kind models.SourceKind, companyID string) []models.Document {
	if companyID != f.company {
		return nil
	}
	return f.docs[kind]
}

func (f *fakeReader) Count(_ context.Context, kind models.SourceKind, companyID string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(f.scoped(kind, companyID)), nil
}

func (f *fakeReader) QueryPage(_ context.Context, kind models.SourceKind, companyID string, skip, limit int) ([]models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.pages++
	docs := f.scoped(kind, companyID)
	if skip >= len(docs) {
		return nil, nil
	}
	return docs[skip:min(skip+limit, len(docs))], nil
}

func (f *fakeReader) QueryByIDs(_ context.Context, kind models.SourceKind, companyID string, ids []string) ([]models.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Document
	for _, d := range f.scoped(kind, companyID) {
		if want[d["_id"].(string)] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeReader) LookupCompanyIDByEmail(_ context.Context, email string) (string, error) {
	id, ok := f.emails[strings.ToLower(email)]
	if !ok {
		return "", models.NewError(models.ErrSourceCompanyNotFound, "no legacy user with email %s", email)
	}
	return id, nil
}

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "ida.db") + "?_pragma=foreign_keys(1)"
	db, err := database.ConnectSQL(database.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewSQLStore(db)
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func newTestEngine(t *testing.T, reader SourceReader, store TargetStore) *Engine {
	t.Helper()
	n := 0
	return NewEngine(reader, store, models.DefaultMapping(),
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%04d", n)
		}),
		WithReadPageSize(2),
	)
}

// seedOffice stores a pre-existing target office.
func seedOffice(t *testing.T, store *SQLStore, office models.Office) {
	t.Helper()
	err := store.Transactional(context.Background(), func(tx TargetTx) error {
		return tx.Insert(context.Background(), models.KindOffice, office)
	})
	require.NoError(t, err)
}

func option(id, name string, price float64, image string) models.Document {
	d := models.Document{
		"_id":          id,
		"_p_company":   "Company$" + sourceCompany,
		"displayTitle": name,
		"itemPrices": []interface{}{
			map[string]interface{}{"total": price, "officeId": "Office$o1"},
			map[string]interface{}{"total": price, "officeId": "unknown-office"},
		},
	}
	if image != "" {
		d["image"] = map[string]interface{}{"url": image}
	}
	return d
}

func item(id, name, category, sub, subSub, formulaID, formula string, options ...string) models.Document {
	opts := make([]interface{}, len(options))
	for i, o := range options {
		opts[i] = o
	}
	return models.Document{
		"_id":              id,
		"_p_company":       "Company$" + sourceCompany,
		"itemName":         name,
		"category":         category,
		"subCategory":      sub,
		"subSubCategories": subSub,
		"formulaID":        formulaID,
		"qtyFormula":       formula,
		"items":            opts,
		"includedOffices":  []interface{}{"o1", "o1", "nowhere"},
		"additionalDetailObjects": []interface{}{
			map[string]interface{}{"objectId": "x1", "title": "Color", "inputType": "text"},
			map[string]interface{}{"title": "no id"},
		},
	}
}

// catalog is a small but complete legacy catalog.
func catalog() *fakeReader {
	f := newFakeReader()
	f.docs[models.SourceCategoryConfigs] = []models.Document{
		{"_id": "cc1", "name": "Windows", "type": "detail", "order": 1},
		{"_id": "cc2", "name": "Doors", "order": 2},
	}
	f.docs[models.SourceOffices] = []models.Document{
		{"_id": "o1", "name": "Main Office"},
	}
	f.docs[models.SourceOptions] = []models.Document{
		option("p1", "Vinyl", 10.5, "http://img/shared.png"),
		option("p2", "Wood", 20, "http://img/shared.png"),
		option("p3", "Steel", 30, ""),
	}
	f.docs[models.SourceUpCharges] = []models.Document{
		{
			"_id":             "u1",
			"displayTitle":    "Grids",
			"isAccessory":     true,
			"disabledParents": []interface{}{"p1", "p1", "p404"},
			"itemPrices":      []interface{}{map[string]interface{}{"total": "5.25", "officeId": "o1"}},
		},
	}
	f.docs[models.SourceItems] = []models.Document{
		item("i1", "Double Hung", "Windows", "Vinyl", "Double > Hung", "F1", "[F2]*2", "p1", "p2", "p1"),
		item("i2", "Casement", "Windows", "", "", "F2", "[i1]+1"),
		item("i3", "Entry", "Doors", "Steel", "", "", "", "p3"),
	}
	f.emails["owner@legacy.example"] = sourceCompany
	return f
}

func countRows(t *testing.T, store *SQLStore, kind models.EntityKind, sessionID string) int {
	t.Helper()
	var n int
	err := store.Transactional(context.Background(), func(tx TargetTx) error {
		var err error
		n, err = tx.Count(context.Background(), kind, Filter{SessionID: sessionID})
		return err
	})
	require.NoError(t, err)
	return n
}

// storedCategories loads every category of the target company.
func storedCategories(t *testing.T, store *SQLStore) []models.Category {
	t.Helper()
	var cats []models.Category
	err := store.Transactional(context.Background(), func(tx TargetTx) error {
		var err error
		cats, err = tx.Categories(context.Background(), targetCompany)
		return err
	})
	require.NoError(t, err)
	return cats
}

// itemCategories maps item source ids to their category ids.
func itemCategories(t *testing.T, store *SQLStore) map[string]string {
	t.Helper()
	var rows []struct {
		SourceID   string `db:"source_id"`
		CategoryID string `db:"category_id"`
	}
	q := store.db.Rebind("SELECT source_id, category_id FROM items WHERE company_id = ?")
	require.NoError(t, store.db.Select(&rows, q, targetCompany))
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.SourceID] = r.CategoryID
	}
	return out
}
