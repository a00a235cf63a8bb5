package index

import (
	"fmt"

	"github.com/kailas-cloud/scopedex/internal/db"
	"github.com/kailas-cloud/scopedex/internal/domain"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
)

// Name returns the FT index name of an entity type.
func Name(desc *entity.Descriptor) string {
	return fmt.Sprintf("%sidx:%s", domain.KeyPrefix, desc.Index)
}

// Prefix returns the key prefix every document of an entity type shares.
func Prefix(desc *entity.Descriptor) string {
	return fmt.Sprintf("%s%s:", domain.KeyPrefix, desc.Index)
}

func docKey(desc *entity.Descriptor, id int64) string {
	return fmt.Sprintf("%s%d", Prefix(desc), id)
}

// fieldType maps an entity kind onto an FT attribute type.
// Booleans and timestamps are TAGs: exact match only, RFC3339 sorts lexically.
func fieldType(k entity.Kind) (db.IndexFieldType, error) {
	switch k {
	case entity.Text:
		return db.IndexFieldText, nil
	case entity.Tag, entity.Bool, entity.Time:
		return db.IndexFieldTag, nil
	case entity.Numeric:
		return db.IndexFieldNumeric, nil
	}
	return 0, fmt.Errorf("unknown field kind %q", k)
}

// Definition derives the FT index definition of an entity type from its descriptor.
// The id and every ordering field are SORTABLE.
func Definition(desc *entity.Descriptor) (*db.IndexDefinition, error) {
	b := db.NewIndex(Name(desc)).OnJSON().Prefix(Prefix(desc))
	for _, attr := range desc.Attributes() {
		t, err := fieldType(attr.Field.Kind)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", desc.Name, err)
		}
		name := attr.Field.Name
		switch {
		case name == entity.IDField || desc.IsOrderable(name):
			b.Sortable(name, t)
		case t == db.IndexFieldText:
			b.Text(name)
		case t == db.IndexFieldTag:
			b.Tag(name)
		default:
			b.Numeric(name)
		}
	}
	return b.Build()
}
