package models

import (
	"encoding/json"
	"sort"
)

// SourceKind is a logical collection of the legacy store.
type SourceKind string

const (
	SourceCategoryConfigs SourceKind = "categoryConfigs"
	SourceOffices         SourceKind = "offices"
	SourceOptions         SourceKind = "options"
	SourceUpCharges       SourceKind = "upcharges"
	SourceItems           SourceKind = "items"
)

// SourceMapping describes where the legacy records live and which document
// keys carry each logical field.
type SourceMapping struct {
	Database            string                          `json:"database"`
	IDField             string                          `json:"idField"`
	TenantField         string                          `json:"tenantField"`
	TenantPointerPrefix string                          `json:"tenantPointerPrefix"`
	Collections         map[SourceKind]CollectionConfig `json:"collections"`
	Users               UserLookup                      `json:"users"`
}

type CollectionConfig struct {
	Collection string                 `json:"collection"`
	Filter     map[string]interface{} `json:"filter,omitempty"`
	Fields     map[string]FieldConfig `json:"fields"`
}

// FieldConfig maps a logical field to a legacy document key.
type FieldConfig struct {
	Source string `json:"source"`
	Type   string `json:"type"`
	Format string `json:"format,omitempty"`
}

type UserLookup struct {
	Collection string `json:"collection"`
	EmailField string `json:"emailField"`
}

// DefaultMapping is the layout of the Parse-backed legacy catalog.
func DefaultMapping() *SourceMapping {
	priced := map[string]FieldConfig{
		"name":            {Source: "displayTitle", Type: "string"},
		"brand":           {Source: "brand", Type: "string"},
		"model":           {Source: "model", Type: "string"},
		"note":            {Source: "note", Type: "string"},
		"image":           {Source: "image", Type: "file"},
		"isAccessory":     {Source: "isAccessory", Type: "bool"},
		"prices":          {Source: "itemPrices", Type: "prices"},
		"disabledParents": {Source: "disabledParents", Type: "ids"},
	}
	return &SourceMapping{
		Database:            "mydb",
		IDField:             "_id",
		TenantField:         "_p_company",
		TenantPointerPrefix: "Company$",
		Collections: map[SourceKind]CollectionConfig{
			SourceCategoryConfigs: {
				Collection: "CustomConfig",
				Fields: map[string]FieldConfig{
					"name":  {Source: "name", Type: "string"},
					"type":  {Source: "type", Type: "string"},
					"order": {Source: "order", Type: "number"},
				},
			},
			SourceOffices: {
				Collection: "Office",
				Fields: map[string]FieldConfig{
					"name": {Source: "name", Type: "string"},
				},
			},
			SourceOptions: {
				Collection: "PriceGuide",
				Filter:     map[string]interface{}{"isAccessory": map[string]interface{}{"$ne": true}},
				Fields:     priced,
			},
			SourceUpCharges: {
				Collection: "PriceGuide",
				Filter:     map[string]interface{}{"isAccessory": true},
				Fields:     priced,
			},
			SourceItems: {
				Collection: "MeasureSheetItem",
				Fields: map[string]FieldConfig{
					"category":         {Source: "category", Type: "string"},
					"subCategory":      {Source: "subCategory", Type: "string"},
					"subSubCategories": {Source: "subSubCategories", Type: "string"},
					"name":             {Source: "itemName", Type: "string"},
					"note":             {Source: "itemNote", Type: "string"},
					"measurementType":  {Source: "measurementType", Type: "string"},
					"formulaId":        {Source: "formulaID", Type: "string"},
					"formula":          {Source: "qtyFormula", Type: "string"},
					"sortOrder":        {Source: "sortOrder", Type: "int"},
					"image":            {Source: "image", Type: "file"},
					"offices":          {Source: "includedOffices", Type: "ids"},
					"options":          {Source: "items", Type: "ids"},
					"extraFields":      {Source: "additionalDetailObjects", Type: "objects"},
				},
			},
		},
		Users: UserLookup{Collection: "_User", EmailField: "email"},
	}
}

// Collection returns the configuration of kind.
func (m *SourceMapping) Collection(kind SourceKind) (CollectionConfig, error) {
	c, ok := m.Collections[kind]
	if !ok || c.Collection == "" {
		return CollectionConfig{}, NewError(ErrInvalidMapping, "no collection configured for %s", kind)
	}
	return c, nil
}

// Field returns the legacy key of a logical field, falling back to the
// logical name itself when the mapping does not rename it.
func (c CollectionConfig) Field(name string) string {
	if f, ok := c.Fields[name]; ok && f.Source != "" {
		return f.Source
	}
	return name
}

// TenantValue is the stored tenant key for a legacy company id.
func (m *SourceMapping) TenantValue(companyID string) string {
	return m.TenantPointerPrefix + companyID
}

// Merge fills every unset part of m from base.
func (m *SourceMapping) Merge(base *SourceMapping) {
	if m.Database == "" {
		m.Database = base.Database
	}
	if m.IDField == "" {
		m.IDField = base.IDField
	}
	if m.TenantField == "" {
		m.TenantField = base.TenantField
		if m.TenantPointerPrefix == "" {
			m.TenantPointerPrefix = base.TenantPointerPrefix
		}
	}
	if m.Collections == nil {
		m.Collections = map[SourceKind]CollectionConfig{}
	}
	for kind, c := range base.Collections {
		cur, ok := m.Collections[kind]
		if !ok {
			m.Collections[kind] = c
			continue
		}
		if cur.Collection == "" {
			cur.Collection = c.Collection
		}
		if cur.Filter == nil {
			cur.Filter = c.Filter
		}
		if cur.Fields == nil {
			cur.Fields = map[string]FieldConfig{}
		}
		for name, f := range c.Fields {
			if _, set := cur.Fields[name]; !set {
				cur.Fields[name] = f
			}
		}
		m.Collections[kind] = cur
	}
	if m.Users.Collection == "" {
		m.Users.Collection = base.Users.Collection
	}
	if m.Users.EmailField == "" {
		m.Users.EmailField = base.Users.EmailField
	}
}

// Validate checks that every source kind the engine reads is configured.
func (m *SourceMapping) Validate() error {
	if m.Database == "" {
		return NewError(ErrInvalidMapping, "database is required")
	}
	if m.TenantField == "" {
		return NewError(ErrInvalidMapping, "tenantField is required")
	}
	var missing []string
	for _, kind := range []SourceKind{SourceCategoryConfigs, SourceOffices, SourceOptions, SourceUpCharges, SourceItems} {
		if c, ok := m.Collections[kind]; !ok || c.Collection == "" {
			missing = append(missing, string(kind))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return NewError(ErrInvalidMapping, "collections not configured: %v", missing)
	}
	if m.Users.Collection == "" || m.Users.EmailField == "" {
		return NewError(ErrInvalidMapping, "users collection and emailField are required")
	}
	return nil
}

// LoadMapping parses a mapping document and completes it with the defaults.
func LoadMapping(data []byte) (*SourceMapping, error) {
	var m SourceMapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, WrapError(ErrInvalidMapping, err, "parse mapping")
	}
	m.Merge(DefaultMapping())
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (k SourceKind) String() string { return string(k) }
