package etl

import (
	"fmt"
	"strings"

	"github.com/BartekS5/ida/pkg/models"
)

// kindSession is the sessions table; it is not an entity the engine imports.
const kindSession models.EntityKind = "migration_sessions"

type column struct {
	name     string
	typ      colType
	nullable bool
	ref      models.EntityKind
}

type tableDef struct {
	kind    models.EntityKind
	columns []column
	indexes [][]string
}

func pkCol() column { return column{name: "id", typ: colID} }

func companyCol() column { return column{name: "company_id", typ: colID} }

func sourceCol() column { return column{name: "source_id", typ: colText} }

func sessionCol() column {
	return column{name: "migration_session_id", typ: colID, nullable: true}
}

// tables is in creation order: every referenced table comes first.
var tables = []tableDef{
	{
		kind: kindSession,
		columns: []column{
			pkCol(), companyCol(),
			{name: "created_by", typ: colText},
			{name: "source_company_id", typ: colText},
			{name: "entity_types", typ: colLongText},
			{name: "status", typ: colText},
			{name: "total_count", typ: colInt},
			{name: "imported_count", typ: colInt},
			{name: "skipped_count", typ: colInt},
			{name: "error_count", typ: colInt},
			{name: "errors", typ: colLongText},
			{name: "created_at", typ: colTime},
			{name: "updated_at", typ: colTime},
			{name: "completed_at", typ: colTime, nullable: true},
		},
		indexes: [][]string{{"company_id"}},
	},
	{
		kind: models.KindOffice,
		columns: []column{
			pkCol(), companyCol(),
			{name: "name", typ: colText},
			{name: "source_id", typ: colText, nullable: true},
		},
		indexes: [][]string{{"company_id"}},
	},
	{
		kind: models.KindImage,
		columns: []column{
			pkCol(), companyCol(),
			{name: "url", typ: colLongText},
			sourceCol(), sessionCol(),
		},
		indexes: [][]string{{"company_id", "source_id"}, {"migration_session_id"}},
	},
	{
		kind: models.KindCategory,
		columns: []column{
			pkCol(), companyCol(),
			{name: "parent_id", typ: colID, nullable: true, ref: models.KindCategory},
			{name: "name", typ: colText},
			{name: "category_type", typ: colText},
			{name: "sort_order", typ: colSortKey},
			{name: "depth", typ: colInt},
			sourceCol(), sessionCol(),
		},
		indexes: [][]string{{"company_id", "source_id"}, {"migration_session_id", "depth"}},
	},
	{
		kind: models.KindPriceOption,
		columns: []column{
			pkCol(), companyCol(),
			{name: "name", typ: colText},
			{name: "brand", typ: colText},
			{name: "model", typ: colText},
			{name: "image_id", typ: colID, nullable: true, ref: models.KindImage},
			sourceCol(), sessionCol(),
		},
		indexes: [][]string{{"company_id", "source_id"}, {"migration_session_id"}},
	},
	{
		kind: models.KindUpCharge,
		columns: []column{
			pkCol(), companyCol(),
			{name: "name", typ: colText},
			{name: "note", typ: colLongText},
			{name: "image_id", typ: colID, nullable: true, ref: models.KindImage},
			sourceCol(), sessionCol(),
		},
		indexes: [][]string{{"company_id", "source_id"}, {"migration_session_id"}},
	},
	{
		kind: models.KindExtraField,
		columns: []column{
			pkCol(), companyCol(),
			{name: "title", typ: colText},
			{name: "input_type", typ: colText},
			sourceCol(), sessionCol(),
		},
		indexes: [][]string{{"company_id", "source_id"}, {"migration_session_id"}},
	},
	{
		kind: models.KindItem,
		columns: []column{
			pkCol(), companyCol(),
			{name: "category_id", typ: colID, ref: models.KindCategory},
			{name: "name", typ: colText},
			{name: "note", typ: colLongText},
			{name: "measurement_type", typ: colText},
			{name: "formula_id", typ: colText, nullable: true},
			{name: "legacy_formula", typ: colLongText, nullable: true},
			{name: "formula", typ: colLongText, nullable: true},
			{name: "sort_order", typ: colInt},
			{name: "image_id", typ: colID, nullable: true, ref: models.KindImage},
			sourceCol(), sessionCol(),
		},
		indexes: [][]string{{"company_id", "source_id"}, {"migration_session_id"}},
	},
	{
		kind: models.KindPrice,
		columns: []column{
			pkCol(), companyCol(),
			{name: "owner_kind", typ: colText},
			{name: "owner_id", typ: colID},
			{name: "office_id", typ: colID, ref: models.KindOffice},
			{name: "amount", typ: colDecimal},
			sessionCol(),
		},
		indexes: [][]string{{"owner_id"}, {"migration_session_id"}},
	},
	{
		kind: models.KindItemOption,
		columns: []column{
			pkCol(),
			{name: "item_id", typ: colID, ref: models.KindItem},
			{name: "option_id", typ: colID, ref: models.KindPriceOption},
			{name: "sort_order", typ: colInt},
			sessionCol(),
		},
		indexes: [][]string{{"migration_session_id"}},
	},
	{
		kind: models.KindItemOffice,
		columns: []column{
			pkCol(),
			{name: "item_id", typ: colID, ref: models.KindItem},
			{name: "office_id", typ: colID, ref: models.KindOffice},
			sessionCol(),
		},
		indexes: [][]string{{"migration_session_id"}},
	},
	{
		kind: models.KindItemExtraField,
		columns: []column{
			pkCol(),
			{name: "item_id", typ: colID, ref: models.KindItem},
			{name: "extra_field_id", typ: colID, ref: models.KindExtraField},
			{name: "sort_order", typ: colInt},
			sessionCol(),
		},
		indexes: [][]string{{"migration_session_id"}},
	},
	{
		kind: models.KindUpChargeDisabledOption,
		columns: []column{
			pkCol(),
			{name: "upcharge_id", typ: colID, ref: models.KindUpCharge},
			{name: "option_id", typ: colID, ref: models.KindPriceOption},
			sessionCol(),
		},
		indexes: [][]string{{"migration_session_id"}},
	},
}

func tableFor(kind models.EntityKind) (tableDef, error) {
	for _, t := range tables {
		if t.kind == kind {
			return t, nil
		}
	}
	return tableDef{}, fmt.Errorf("unknown table %q", kind)
}

func (t tableDef) has(col string) bool {
	for _, c := range t.columns {
		if c.name == col {
			return true
		}
	}
	return false
}

// insertSQL is a named INSERT over every column of t.
func (t tableDef) insertSQL() string {
	names := make([]string, len(t.columns))
	params := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.name
		params[i] = ":" + c.name
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.kind.Table(), strings.Join(names, ", "), strings.Join(params, ", "))
}
