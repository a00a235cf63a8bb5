package record

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/scopedex/internal/db"
	"github.com/kailas-cloud/scopedex/internal/domain/entity"
	"github.com/kailas-cloud/scopedex/internal/domain/query"
)

// selectColumns lists own columns plus every relation foreign key, id first.
func selectColumns(desc *entity.Descriptor) []string {
	cols := desc.Columns()
	for _, rel := range desc.Relations {
		if !containsString(cols, rel.FKColumn) {
			cols = append(cols, rel.FKColumn)
		}
	}
	return cols
}

func containsString(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func selectClause(desc *entity.Descriptor) string {
	cols := selectColumns(desc)
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quote(tableAlias, c)
	}
	return fmt.Sprintf("SELECT %s FROM %s %s", strings.Join(quoted, ", "), quote(desc.Table), tableAlias)
}

func buildList(desc *entity.Descriptor, q query.Compiled, offset, limit int) (string, []any, []Dropped) {
	b := &selectBuilder{desc: desc}
	for _, c := range q.Clauses {
		b.addClause(c)
	}
	b.addSearch(q.Search)

	var sb strings.Builder
	sb.WriteString(selectClause(desc))
	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(b.where, " AND "))
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(b.orderBy(q.Ordering))
	sb.WriteString(" LIMIT " + b.arg(limit))
	sb.WriteString(" OFFSET " + b.arg(offset))
	return sb.String(), b.args, b.dropped
}

func getOne(ctx context.Context, q db.Querier, desc *entity.Descriptor, id int64) (entity.Row, error) {
	sql := selectClause(desc) + fmt.Sprintf(" WHERE %s = $1", quote(tableAlias, entity.IDField))
	rows, err := readRows(ctx, q, sql, []any{id})
	if err != nil {
		return entity.Row{}, err
	}
	if len(rows) == 0 {
		return entity.Row{}, db.ErrNoRows
	}
	if err := loadRelations(ctx, q, desc, rows); err != nil {
		return entity.Row{}, err
	}
	return rows[0], nil
}

func readRows(ctx context.Context, q db.Querier, sql string, args []any) ([]entity.Row, error) {
	rs, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	cols := rs.Columns()
	var out []entity.Row
	for rs.Next() {
		vals, err := rs.Values()
		if err != nil {
			return nil, err
		}
		row, err := toRow(cols, vals)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func toRow(cols []string, vals []any) (entity.Row, error) {
	row := entity.Row{Values: make(map[string]any, len(cols))}
	for i, c := range cols {
		if i >= len(vals) {
			break
		}
		if c == entity.IDField {
			id, ok := asInt64(vals[i])
			if !ok {
				return entity.Row{}, fmt.Errorf("row id %v is not an integer", vals[i])
			}
			row.ID = id
			continue
		}
		row.Values[c] = vals[i]
	}
	return row, nil
}

// loadRelations batch-loads every one-to-one relation of the rows with one query per relation.
func loadRelations(ctx context.Context, q db.Querier, desc *entity.Descriptor, rows []entity.Row) error {
	for _, rel := range desc.Relations {
		ids := make([]int64, 0, len(rows))
		seen := make(map[int64]bool, len(rows))
		for _, r := range rows {
			id, ok := asInt64(r.Values[rel.FKColumn])
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			continue
		}

		cols := make([]string, 0, len(rel.Fields)+1)
		cols = append(cols, quote(entity.IDField))
		for _, f := range rel.Fields {
			cols = append(cols, quote(f.ColumnName()))
		}
		sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ANY($1)",
			strings.Join(cols, ", "), quote(rel.Table), quote(entity.IDField))
		related, err := readRows(ctx, q, sql, []any{ids})
		if err != nil {
			return fmt.Errorf("load %s: %w", rel.Name, err)
		}

		byID := make(map[int64]map[string]any, len(related))
		for _, r := range related {
			byID[r.ID] = r.Values
		}
		for i := range rows {
			id, ok := asInt64(rows[i].Values[rel.FKColumn])
			if !ok {
				continue
			}
			values, ok := byID[id]
			if !ok {
				continue
			}
			if rows[i].Relations == nil {
				rows[i].Relations = make(map[string]map[string]any, len(desc.Relations))
			}
			rows[i].Relations[rel.Name] = values
		}
	}
	return nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case int16:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

// coerceWrite converts a decoded JSON payload value into the Go type the column kind expects.
func coerceWrite(kind entity.Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case entity.Numeric:
		switch n := v.(type) {
		case float64:
			if n == float64(int64(n)) {
				return int64(n), nil
			}
			return n, nil
		case int64, int:
			return n, nil
		case string:
			return coerce(kind, n)
		}
	case entity.Bool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return coerce(kind, b)
		}
	case entity.Time:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			return coerce(kind, t)
		}
	case entity.Text, entity.Tag:
		switch s := v.(type) {
		case string:
			return s, nil
		case map[string]any, []any:
			// json/jsonb columns accept the structured value as-is
			return s, nil
		case float64, bool, int64:
			return fmt.Sprint(s), nil
		}
	}
	return nil, fmt.Errorf("unsupported value %T for %s field", v, kind)
}
