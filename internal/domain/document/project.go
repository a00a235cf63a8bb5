package document

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/scopedex/internal/domain/entity"
)

// Project builds the indexed document for a row. The result depends only on
// desc and the row state, so projecting the same state twice yields equal bytes.
func Project(desc *entity.Descriptor, row entity.Row) Document {
	fields := make(map[string]any, len(desc.Fields))

	for _, f := range desc.Fields {
		v, ok := row.Values[f.ColumnName()]
		if !ok {
			continue
		}
		if f.Rule == entity.Reference {
			v = referenceID(v)
		}
		fields[f.Name] = normalize(v)
	}

	for _, rel := range desc.Relations {
		values, ok := row.Relations[rel.Name]
		if !ok {
			continue
		}
		for _, f := range rel.Fields {
			if isOwnField(desc, f.Name) {
				continue
			}
			v, ok := values[f.ColumnName()]
			if !ok {
				continue
			}
			// last write wins between relations sharing a field name
			fields[f.Name] = normalize(v)
		}
	}

	return New(row.ID, fields)
}

func isOwnField(desc *entity.Descriptor, name string) bool {
	for _, f := range desc.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// referenceID unwraps an embedded related object to its id.
func referenceID(v any) any {
	if m, ok := v.(map[string]any); ok {
		return m[entity.IDField]
	}
	return v
}

func normalize(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int64, float64:
		return x
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x) //nolint:gosec // ids fit in int64
	case float32:
		return float64(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC().Format(time.RFC3339)
	case []byte:
		return string(x)
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
