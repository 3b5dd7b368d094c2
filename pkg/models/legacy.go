package models

import "github.com/shopspring/decimal"

// Document is a raw record read from the legacy store.
type Document = map[string]interface{}

// LegacyCategoryConfig is one declared root category.
type LegacyCategoryConfig struct {
	SourceID string `validate:"required"`
	Name     string `validate:"required"`
	Type     string `validate:"omitempty,oneof=DEFAULT DETAIL DEEP_DRILL_DOWN"`
	Order    float64
}

type LegacyOffice struct {
	SourceID string `validate:"required"`
	Name     string
}

type LegacyPrice struct {
	OfficeID string
	Total    decimal.Decimal
}

// LegacyPricedItem is a price guide entry: an option, or an up-charge when
// IsAccessory is set.
type LegacyPricedItem struct {
	SourceID        string `validate:"required"`
	Name            string `validate:"required"`
	Brand           string
	Model           string
	Note            string
	ImageURL        string
	IsAccessory     bool
	Prices          []LegacyPrice
	DisabledParents []string
}

type LegacyExtraField struct {
	SourceID  string
	Title     string
	InputType string
}

// LegacyItem is a categorized (measure sheet) item.
type LegacyItem struct {
	SourceID         string `validate:"required"`
	Category         string `validate:"required"`
	SubCategory      string
	SubSubCategories string
	Name             string `validate:"required"`
	Note             string
	MeasurementType  string
	FormulaID        string
	Formula          string
	SortOrder        int
	ImageURL         string
	IncludedOffices  []string
	OptionIDs        []string
	ExtraFields      []LegacyExtraField
}

// CategoryTriplet exposes the category path fields for the hierarchy builder.
func (i LegacyItem) CategoryTriplet() (string, string, string) {
	return i.Category, i.SubCategory, i.SubSubCategories
}
