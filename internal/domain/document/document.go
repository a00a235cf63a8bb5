// Package document is the flat, index-ready projection of a canonical entity.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"

	"github.com/kailas-cloud/scopedex/internal/domain/entity"
)

// Document is an indexed projection (immutable value object).
// It shares its id with the canonical entity.
type Document struct {
	id     int64
	fields map[string]any
}

// New creates a Document. The "id" key in fields is ignored; id is authoritative.
func New(id int64, fields map[string]any) Document {
	f := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == entity.IDField {
			continue
		}
		f[k] = v
	}
	return Document{id: id, fields: f}
}

// ID returns the entity id.
func (d Document) ID() int64 { return d.id }

// Fields returns a copy of the non-id fields.
func (d Document) Fields() map[string]any { return maps.Clone(d.fields) }

// Get returns a single field value; "id" resolves to the id.
func (d Document) Get(key string) (any, bool) {
	if key == entity.IDField {
		return d.id, true
	}
	v, ok := d.fields[key]
	return v, ok
}

// Int returns a field as an integer when it holds a whole number.
func (d Document) Int(key string) (int64, bool) {
	v, ok := d.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

// MarshalJSON encodes a flat object with sorted keys, "id" included.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.fields)+1)
	maps.Copy(out, d.fields)
	out[entity.IDField] = d.id
	return json.Marshal(out)
}

// UnmarshalJSON decodes a flat object; whole numbers become int64, others float64.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	idRaw, ok := raw[entity.IDField]
	if !ok {
		return fmt.Errorf("document has no %q", entity.IDField)
	}
	id, ok := normalize(idRaw).(int64)
	if !ok {
		return fmt.Errorf("document id %v is not an integer", idRaw)
	}
	for k, v := range raw {
		raw[k] = normalize(v)
	}
	*d = New(id, raw)
	return nil
}

// Decode parses a JSON-encoded document.
func Decode(data []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	return d, nil
}
