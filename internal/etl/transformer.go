package etl

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/BartekS5/ida/pkg/models"
	"github.com/BartekS5/ida/pkg/utils"
)

// Transformer turns raw legacy documents into typed records using the
// field names of the source mapping.
type Transformer struct {
	Mapping   *models.SourceMapping
	Validator *Validator
}

func NewTransformer(mapping *models.SourceMapping) *Transformer {
	return &Transformer{Mapping: mapping, Validator: NewValidator()}
}

func (t *Transformer) collection(kind models.SourceKind) (models.CollectionConfig, error) {
	return t.Mapping.Collection(kind)
}

// SourceID reads the legacy id of a document.
func (t *Transformer) SourceID(doc models.Document) string {
	return utils.IDString(doc[t.Mapping.IDField])
}

func (t *Transformer) CategoryConfig(doc models.Document) (models.LegacyCategoryConfig, error) {
	c, err := t.collection(models.SourceCategoryConfigs)
	if err != nil {
		return models.LegacyCategoryConfig{}, err
	}
	rec := models.LegacyCategoryConfig{
		SourceID: t.SourceID(doc),
		Name:     utils.GetString(doc, c.Field("name")),
		Type:     strings.ToUpper(utils.GetString(doc, c.Field("type"))),
	}
	if raw, ok := doc[c.Field("order")]; ok && raw != nil {
		order, err := utils.ConvertToFloat(raw)
		if err != nil {
			return rec, errors.Wrap(err, "order")
		}
		rec.Order = order
	}
	return rec, t.Validator.Struct(rec)
}

func (t *Transformer) Office(doc models.Document) (models.LegacyOffice, error) {
	c, err := t.collection(models.SourceOffices)
	if err != nil {
		return models.LegacyOffice{}, err
	}
	rec := models.LegacyOffice{
		SourceID: t.SourceID(doc),
		Name:     utils.GetString(doc, c.Field("name")),
	}
	return rec, t.Validator.Struct(rec)
}

// PricedItem reads an option or up-charge; kind picks the field mapping.
func (t *Transformer) PricedItem(kind models.SourceKind, doc models.Document) (models.LegacyPricedItem, error) {
	c, err := t.collection(kind)
	if err != nil {
		return models.LegacyPricedItem{}, err
	}
	rec := models.LegacyPricedItem{
		SourceID:        t.SourceID(doc),
		Name:            utils.GetString(doc, c.Field("name")),
		Brand:           utils.GetString(doc, c.Field("brand")),
		Model:           utils.GetString(doc, c.Field("model")),
		Note:            utils.GetString(doc, c.Field("note")),
		ImageURL:        utils.GetFileURL(doc, c.Field("image")),
		IsAccessory:     utils.GetBool(doc, c.Field("isAccessory")),
		DisabledParents: utils.GetStringSlice(doc, c.Field("disabledParents")),
	}
	for i, p := range utils.GetDocs(doc, c.Field("prices")) {
		amount, err := utils.ConvertToDecimal(p["total"])
		if err != nil {
			return rec, errors.Wrapf(err, "price %d", i)
		}
		rec.Prices = append(rec.Prices, models.LegacyPrice{
			OfficeID: utils.PointerID(utils.GetString(p, "officeId")),
			Total:    amount,
		})
	}
	return rec, t.Validator.Struct(rec)
}

func (t *Transformer) Item(doc models.Document) (models.LegacyItem, error) {
	c, err := t.collection(models.SourceItems)
	if err != nil {
		return models.LegacyItem{}, err
	}
	rec := models.LegacyItem{
		SourceID:         t.SourceID(doc),
		Category:         utils.GetString(doc, c.Field("category")),
		SubCategory:      utils.GetString(doc, c.Field("subCategory")),
		SubSubCategories: utils.GetString(doc, c.Field("subSubCategories")),
		Name:             utils.GetString(doc, c.Field("name")),
		Note:             utils.GetString(doc, c.Field("note")),
		MeasurementType:  utils.GetString(doc, c.Field("measurementType")),
		FormulaID:        utils.GetString(doc, c.Field("formulaId")),
		Formula:          utils.GetString(doc, c.Field("formula")),
		ImageURL:         utils.GetFileURL(doc, c.Field("image")),
		IncludedOffices:  utils.GetStringSlice(doc, c.Field("offices")),
		OptionIDs:        utils.GetStringSlice(doc, c.Field("options")),
	}
	if raw, ok := doc[c.Field("sortOrder")]; ok && raw != nil {
		n, err := utils.ConvertToInt(raw)
		if err != nil {
			return rec, errors.Wrap(err, "sortOrder")
		}
		rec.SortOrder = n
	}
	for _, f := range utils.GetDocs(doc, c.Field("extraFields")) {
		rec.ExtraFields = append(rec.ExtraFields, models.LegacyExtraField{
			SourceID:  utils.GetString(f, "objectId"),
			Title:     utils.GetString(f, "title"),
			InputType: utils.GetString(f, "inputType"),
		})
	}
	return rec, t.Validator.Struct(rec)
}
