package db

import (
	"errors"
	"strconv"
)

// StorageType defines the document storage backend for FT indexes (HASH or JSON).
type StorageType string

const (
	// StorageHash stores documents as Redis hashes.
	StorageHash StorageType = "HASH"
	// StorageJSON stores documents as JSON.
	StorageJSON StorageType = "JSON"
)

// IndexFieldType enumerates supported FT index field types.
type IndexFieldType int

const (
	// IndexFieldNumeric is a numeric field.
	IndexFieldNumeric IndexFieldType = iota
	// IndexFieldTag is a tag field.
	IndexFieldTag
	// IndexFieldText is a text field.
	IndexFieldText
)

func (t IndexFieldType) String() string {
	switch t {
	case IndexFieldNumeric:
		return "NUMERIC"
	case IndexFieldTag:
		return "TAG"
	case IndexFieldText:
		return "TEXT"
	}
	return "UNKNOWN"
}

// IndexField describes a single field in an FT index schema.
type IndexField struct {
	Name     string
	Alias    string // AS alias in FT.CREATE SCHEMA
	Type     IndexFieldType
	Sortable bool

	// TAG options
	TagSeparator     string
	TagCaseSensitive bool
}

// Attribute returns the name the field is queried by.
func (f *IndexField) Attribute() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// IndexDefinition is a complete FT index definition used by FT.CREATE.
type IndexDefinition struct {
	Name        string
	StorageType StorageType
	Prefixes    []string
	Fields      []IndexField
}

// Schema maps queryable attribute names to their field types.
func (idx *IndexDefinition) Schema() map[string]IndexFieldType {
	m := make(map[string]IndexFieldType, len(idx.Fields))
	for i := range idx.Fields {
		m[idx.Fields[i].Attribute()] = idx.Fields[i].Type
	}
	return m
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIdentifier(idx.Name) {
		return errors.New("index name contains invalid characters")
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]bool)
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return errors.New("field name is required at index " + strconv.Itoa(i))
		}
		key := f.Attribute()
		if seen[key] {
			return errors.New("duplicate field name: " + key)
		}
		seen[key] = true
	}

	return nil
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == ':' || r == '-'
		if !isAlpha && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}
