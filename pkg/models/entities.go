package models

import (
	"github.com/shopspring/decimal"
)

// EntityKind identifies a target table the engine writes, counts or deletes.
type EntityKind string

const (
	KindCategory               EntityKind = "categories"
	KindImage                  EntityKind = "images"
	KindPriceOption            EntityKind = "price_options"
	KindUpCharge               EntityKind = "up_charges"
	KindExtraField             EntityKind = "extra_fields"
	KindItem                   EntityKind = "items"
	KindPrice                  EntityKind = "prices"
	KindItemOption             EntityKind = "item_options"
	KindItemOffice             EntityKind = "item_offices"
	KindItemExtraField         EntityKind = "item_extra_fields"
	KindUpChargeDisabledOption EntityKind = "upcharge_disabled_options"
	KindOffice                 EntityKind = "offices"
)

// Table is the SQL table backing the kind.
func (k EntityKind) Table() string { return string(k) }

// Price owner kinds.
const (
	PriceOwnerOption   = "option"
	PriceOwnerUpCharge = "upcharge"
)

// Category types.
const (
	CategoryDefault       = "DEFAULT"
	CategoryDetail        = "DETAIL"
	CategoryDeepDrillDown = "DEEP_DRILL_DOWN"
)

type Category struct {
	ID           string  `db:"id"`
	CompanyID    string  `db:"company_id"`
	ParentID     *string `db:"parent_id"`
	Name         string  `db:"name"`
	CategoryType string  `db:"category_type"`
	SortOrder    string  `db:"sort_order"`
	Depth        int     `db:"depth"`
	SourceID     string  `db:"source_id"`
	SessionID    *string `db:"migration_session_id"`
}

type Image struct {
	ID        string  `db:"id"`
	CompanyID string  `db:"company_id"`
	URL       string  `db:"url"`
	SourceID  string  `db:"source_id"`
	SessionID *string `db:"migration_session_id"`
}

type PriceOption struct {
	ID        string  `db:"id"`
	CompanyID string  `db:"company_id"`
	Name      string  `db:"name"`
	Brand     string  `db:"brand"`
	Model     string  `db:"model"`
	ImageID   *string `db:"image_id"`
	SourceID  string  `db:"source_id"`
	SessionID *string `db:"migration_session_id"`
}

type UpCharge struct {
	ID        string  `db:"id"`
	CompanyID string  `db:"company_id"`
	Name      string  `db:"name"`
	Note      string  `db:"note"`
	ImageID   *string `db:"image_id"`
	SourceID  string  `db:"source_id"`
	SessionID *string `db:"migration_session_id"`
}

type ExtraField struct {
	ID        string  `db:"id"`
	CompanyID string  `db:"company_id"`
	Title     string  `db:"title"`
	InputType string  `db:"input_type"`
	SourceID  string  `db:"source_id"`
	SessionID *string `db:"migration_session_id"`
}

type Item struct {
	ID              string  `db:"id"`
	CompanyID       string  `db:"company_id"`
	CategoryID      string  `db:"category_id"`
	Name            string  `db:"name"`
	Note            string  `db:"note"`
	MeasurementType string  `db:"measurement_type"`
	FormulaID       *string `db:"formula_id"`
	LegacyFormula   *string `db:"legacy_formula"`
	Formula         *string `db:"formula"`
	SortOrder       int     `db:"sort_order"`
	ImageID         *string `db:"image_id"`
	SourceID        string  `db:"source_id"`
	SessionID       *string `db:"migration_session_id"`
}

type Price struct {
	ID        string          `db:"id"`
	CompanyID string          `db:"company_id"`
	OwnerKind string          `db:"owner_kind"`
	OwnerID   string          `db:"owner_id"`
	OfficeID  string          `db:"office_id"`
	Amount    decimal.Decimal `db:"amount"`
	SessionID *string         `db:"migration_session_id"`
}

type ItemOption struct {
	ID        string  `db:"id"`
	ItemID    string  `db:"item_id"`
	OptionID  string  `db:"option_id"`
	SortOrder int     `db:"sort_order"`
	SessionID *string `db:"migration_session_id"`
}

type ItemOffice struct {
	ID        string  `db:"id"`
	ItemID    string  `db:"item_id"`
	OfficeID  string  `db:"office_id"`
	SessionID *string `db:"migration_session_id"`
}

type ItemExtraField struct {
	ID           string  `db:"id"`
	ItemID       string  `db:"item_id"`
	ExtraFieldID string  `db:"extra_field_id"`
	SortOrder    int     `db:"sort_order"`
	SessionID    *string `db:"migration_session_id"`
}

type UpChargeDisabledOption struct {
	ID         string  `db:"id"`
	UpChargeID string  `db:"upcharge_id"`
	OptionID   string  `db:"option_id"`
	SessionID  *string `db:"migration_session_id"`
}

// Office is a pre-existing target office. The engine only reads offices.
type Office struct {
	ID        string  `db:"id"`
	CompanyID string  `db:"company_id"`
	Name      string  `db:"name"`
	SourceID  *string `db:"source_id"`
}

// ItemFormula is the projection used by the formula resolution pass.
type ItemFormula struct {
	ID            string  `db:"id"`
	SourceID      string  `db:"source_id"`
	FormulaID     *string `db:"formula_id"`
	LegacyFormula *string `db:"legacy_formula"`
	Formula       *string `db:"formula"`
	SessionID     *string `db:"migration_session_id"`
}

// Ptr returns a pointer to s, or nil for the empty string.
func Ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns *p or "".
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
