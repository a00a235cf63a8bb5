// Package entity declares the static projection table: which entity types exist,
// where they live in the system of record and how they map into the search index.
package entity

import (
	"fmt"
	"regexp"
)

var identRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// IDField is the implicit identifier every entity carries, in the store and in the index.
const IDField = "id"

// Rule selects how a field is carried from a row into an indexed document.
type Rule string

// Projection rules.
const (
	// Scalar values are copied verbatim.
	Scalar Rule = "scalar"
	// Reference fields hold the id of a related entity.
	Reference Rule = "reference"
)

// Kind is the value type of a field, used to pick the index attribute type.
type Kind string

// Field kinds.
const (
	Text    Kind = "text"
	Tag     Kind = "tag"
	Numeric Kind = "numeric"
	Bool    Kind = "bool"
	Time    Kind = "time"
)

// Field is a single projected column.
type Field struct {
	Name   string // document key
	Column string // store column, defaults to Name
	Rule   Rule
	Kind   Kind
}

// ColumnName returns the store column backing the field.
func (f Field) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// Relation is a one-to-one relation whose scalar fields are flattened into the parent document.
type Relation struct {
	Name     string
	Table    string
	FKColumn string // column on the parent table holding the related id
	Fields   []Field
}

// Attribute is a resolved document key: the field and, for flattened keys, the owning relation.
type Attribute struct {
	Field    Field
	Relation *Relation
}

// Flattened reports whether the attribute comes from a flattened relation.
func (a Attribute) Flattened() bool { return a.Relation != nil }

// Descriptor is the static declaration of one entity type.
type Descriptor struct {
	Name        string
	Table       string
	Index       string
	TenantField string
	// BrandField, when set, further limits restricted subjects to their brands.
	BrandField     string
	SearchFields   []string
	OrderingFields []string
	Fields         []Field
	Relations      []Relation
}

var idAttribute = Attribute{Field: Field{Name: IDField, Rule: Scalar, Kind: Numeric}}

// Lookup resolves a document key. Own fields win over flattened ones; among
// flattened relations the last declared wins.
func (d *Descriptor) Lookup(name string) (Attribute, bool) {
	if name == IDField {
		return idAttribute, true
	}
	for _, f := range d.Fields {
		if f.Name == name {
			return Attribute{Field: f}, true
		}
	}
	var (
		found Attribute
		ok    bool
	)
	for i := range d.Relations {
		rel := &d.Relations[i]
		for _, f := range rel.Fields {
			if f.Name == name {
				found, ok = Attribute{Field: f, Relation: rel}, true
			}
		}
	}
	return found, ok
}

// Attributes lists every document key in projection order: id, own fields, flattened fields.
// Flattened keys shadowed by an own field or a later relation are omitted.
func (d *Descriptor) Attributes() []Attribute {
	out := []Attribute{idAttribute}
	seen := map[string]bool{IDField: true}
	for _, f := range d.Fields {
		out = append(out, Attribute{Field: f})
		seen[f.Name] = true
	}
	for i := range d.Relations {
		for _, f := range d.Relations[i].Fields {
			if seen[f.Name] {
				continue
			}
			attr, _ := d.Lookup(f.Name)
			out = append(out, attr)
			seen[f.Name] = true
		}
	}
	return out
}

// Columns returns the store columns of the entity's own fields, id first.
func (d *Descriptor) Columns() []string {
	cols := make([]string, 0, len(d.Fields)+1)
	cols = append(cols, IDField)
	for _, f := range d.Fields {
		cols = append(cols, f.ColumnName())
	}
	return cols
}

// IsOrderable reports whether the field may be used in an ordering clause.
func (d *Descriptor) IsOrderable(name string) bool {
	for _, f := range d.OrderingFields {
		if f == name {
			return true
		}
	}
	return false
}

// Validate checks the descriptor for internal consistency.
func (d *Descriptor) Validate() error {
	if !identRegex.MatchString(d.Name) {
		return fmt.Errorf("entity name %q must match %s", d.Name, identRegex)
	}
	if !identRegex.MatchString(d.Table) {
		return fmt.Errorf("%s: table %q must match %s", d.Name, d.Table, identRegex)
	}
	if d.Index == "" {
		return fmt.Errorf("%s: index name is required", d.Name)
	}

	seen := map[string]bool{IDField: true}
	for _, f := range d.Fields {
		if err := validateField(d.Name, f); err != nil {
			return err
		}
		if seen[f.Name] {
			return fmt.Errorf("%s: duplicate field %q", d.Name, f.Name)
		}
		seen[f.Name] = true
		if f.Rule == Reference && f.Kind != Numeric {
			return fmt.Errorf("%s: reference field %q must be numeric", d.Name, f.Name)
		}
	}

	relNames := make(map[string]bool, len(d.Relations))
	for _, rel := range d.Relations {
		if relNames[rel.Name] {
			return fmt.Errorf("%s: duplicate relation %q", d.Name, rel.Name)
		}
		relNames[rel.Name] = true
		if !identRegex.MatchString(rel.Table) || !identRegex.MatchString(rel.FKColumn) {
			return fmt.Errorf("%s: relation %q needs a valid table and fk column", d.Name, rel.Name)
		}
		if len(rel.Fields) == 0 {
			return fmt.Errorf("%s: relation %q flattens no fields", d.Name, rel.Name)
		}
		for _, f := range rel.Fields {
			if err := validateField(d.Name+"."+rel.Name, f); err != nil {
				return err
			}
			if f.Rule != Scalar {
				return fmt.Errorf("%s: relation %q field %q must be scalar (one level only)", d.Name, rel.Name, f.Name)
			}
		}
	}

	if _, ok := d.Lookup(d.TenantField); !ok {
		return fmt.Errorf("%s: tenant field %q is not declared", d.Name, d.TenantField)
	}
	if d.BrandField != "" {
		if _, ok := d.Lookup(d.BrandField); !ok {
			return fmt.Errorf("%s: brand field %q is not declared", d.Name, d.BrandField)
		}
	}
	for _, name := range d.SearchFields {
		attr, ok := d.Lookup(name)
		if !ok {
			return fmt.Errorf("%s: search field %q is not declared", d.Name, name)
		}
		if attr.Field.Kind != Text {
			return fmt.Errorf("%s: search field %q must be text, got %s", d.Name, name, attr.Field.Kind)
		}
	}
	for _, name := range d.OrderingFields {
		attr, ok := d.Lookup(name)
		if !ok || attr.Flattened() {
			return fmt.Errorf("%s: ordering field %q must be an own field", d.Name, name)
		}
	}
	return nil
}

func validateField(owner string, f Field) error {
	if !identRegex.MatchString(f.Name) {
		return fmt.Errorf("%s: field name %q must match %s", owner, f.Name, identRegex)
	}
	if !identRegex.MatchString(f.ColumnName()) {
		return fmt.Errorf("%s: column %q must match %s", owner, f.ColumnName(), identRegex)
	}
	switch f.Rule {
	case Scalar, Reference:
	default:
		return fmt.Errorf("%s: field %q has unknown rule %q", owner, f.Name, f.Rule)
	}
	switch f.Kind {
	case Text, Tag, Numeric, Bool, Time:
	default:
		return fmt.Errorf("%s: field %q has unknown kind %q", owner, f.Name, f.Kind)
	}
	return nil
}

// Row is a canonical entity as read from or written to the system of record.
type Row struct {
	ID        int64
	Values    map[string]any            // column -> value
	Relations map[string]map[string]any // relation name -> column -> value
}
